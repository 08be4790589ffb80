package cursor

import (
	"github.com/golang/geo/r3"

	"go.viam.com/machina/action"
	"go.viam.com/machina/spatialmath"
)

// Settings are the values PushSettings saves and PopSettings restores.
type Settings struct {
	Speed         float64
	Precision     float64
	MotionType    action.MotionType
	ReferenceCS   action.ReferenceCS
	ExtrusionRate float64
}

// State is a full snapshot of what a cursor knows about the robot. Position, Rotation and Joints
// are nil while unknown: moving the joints makes the pose unknown and the other way around, since
// this package does no kinematics.
type State struct {
	Position *r3.Vector
	Rotation *spatialmath.Rotation
	Joints   *spatialmath.Joints
	Settings

	Tool              *action.Tool
	Extruding         bool
	Temperatures      map[action.RobotPart]float64
	DeviceInitialized bool

	DigitalOutputs []bool
	DigitalNames   []string
	AnalogOutputs  []float64
	AnalogNames    []string

	settingsStack []Settings
}

// PoseKnown reports whether both position and rotation are known.
func (s State) PoseKnown() bool {
	return s.Position != nil && s.Rotation != nil
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	if s.Position != nil {
		p := *s.Position
		out.Position = &p
	}
	if s.Rotation != nil {
		r := *s.Rotation
		out.Rotation = &r
	}
	if s.Joints != nil {
		j := *s.Joints
		out.Joints = &j
	}
	if s.Tool != nil {
		t := *s.Tool
		out.Tool = &t
	}
	out.Temperatures = make(map[action.RobotPart]float64, len(s.Temperatures))
	for part, temp := range s.Temperatures {
		out.Temperatures[part] = temp
	}
	out.DigitalOutputs = append([]bool(nil), s.DigitalOutputs...)
	out.DigitalNames = append([]string(nil), s.DigitalNames...)
	out.AnalogOutputs = append([]float64(nil), s.AnalogOutputs...)
	out.AnalogNames = append([]string(nil), s.AnalogNames...)
	out.settingsStack = append([]Settings(nil), s.settingsStack...)
	return out
}

// SettingsDepth is the number of pushed settings.
func (s State) SettingsDepth() int {
	return len(s.settingsStack)
}
