package action

import (
	"strings"

	"github.com/pkg/errors"
)

// MotionType is how the robot interpolates between two targets.
type MotionType int

const (
	// Linear moves the TCP along a straight line.
	Linear MotionType = iota
	// Joint interpolates every joint independently.
	Joint
)

func (mt MotionType) String() string {
	switch mt {
	case Linear:
		return "linear"
	case Joint:
		return "joint"
	}
	return "unknown"
}

// ParseMotionType parses "linear" or "joint", ignoring case.
func ParseMotionType(s string) (MotionType, error) {
	switch strings.ToLower(s) {
	case "linear":
		return Linear, nil
	case "joint":
		return Joint, nil
	}
	return Linear, errors.Errorf("unknown motion type %q", s)
}

// ReferenceCS is the coordinate system relative actions are expressed in.
type ReferenceCS int

const (
	// World axes are fixed to the robot base.
	World ReferenceCS = iota
	// Local axes move with the TCP.
	Local
)

func (cs ReferenceCS) String() string {
	switch cs {
	case World:
		return "world"
	case Local:
		return "local"
	}
	return "unknown"
}

// ParseReferenceCS parses "world" or "local", ignoring case.
func ParseReferenceCS(s string) (ReferenceCS, error) {
	switch strings.ToLower(s) {
	case "world", "global":
		return World, nil
	case "local", "tool":
		return Local, nil
	}
	return World, errors.Errorf("unknown reference coordinate system %q", s)
}

// RobotPart is a device part that temperature requests can target.
type RobotPart int

// The known robot parts.
const (
	Extruder RobotPart = iota
	Bed
	Chamber
)

func (p RobotPart) String() string {
	switch p {
	case Extruder:
		return "extruder"
	case Bed:
		return "bed"
	case Chamber:
		return "chamber"
	}
	return "unknown"
}

// SupportsHeating reports whether the part has a heater temperature requests can drive.
func (p RobotPart) SupportsHeating() bool {
	return p == Extruder || p == Bed
}

// ParseRobotPart parses a part name, ignoring case.
func ParseRobotPart(s string) (RobotPart, error) {
	switch strings.ToLower(s) {
	case "extruder", "hotend", "nozzle":
		return Extruder, nil
	case "bed":
		return Bed, nil
	case "chamber":
		return Chamber, nil
	}
	return Extruder, errors.Errorf("unknown robot part %q", s)
}
