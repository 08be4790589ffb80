// Package action defines the closed set of commands that can be issued to a robot. Actions are
// plain immutable values; the cursor package decides what each of them does to robot state.
package action

import (
	"strconv"

	"go.uber.org/atomic"
)

// Type discriminates the concrete action variants.
type Type int

// The known action types.
const (
	TypeSpeed Type = iota
	TypePrecision
	TypeMotionMode
	TypeReferenceFrame
	TypePushSettings
	TypePopSettings
	TypeTemperature
	TypeExtrudeToggle
	TypeExtrusionRate
	TypeTranslate
	TypeRotate
	TypeTranslateAndRotate
	TypeSetJoints
	TypeMessage
	TypeWait
	TypeComment
	TypeAttachTool
	TypeDetachTool
	TypeDigitalWrite
	TypeAnalogWrite
	TypeInitializeDevice
)

var typeNames = map[Type]string{
	TypeSpeed:              "speed",
	TypePrecision:          "precision",
	TypeMotionMode:         "motion_type",
	TypeReferenceFrame:     "reference_cs",
	TypePushSettings:       "push_settings",
	TypePopSettings:        "pop_settings",
	TypeTemperature:        "temperature",
	TypeExtrudeToggle:      "extrude",
	TypeExtrusionRate:      "extrusion_rate",
	TypeTranslate:          "translate",
	TypeRotate:             "rotate",
	TypeTranslateAndRotate: "transform",
	TypeSetJoints:          "joints",
	TypeMessage:            "message",
	TypeWait:               "wait",
	TypeComment:            "comment",
	TypeAttachTool:         "attach_tool",
	TypeDetachTool:         "detach_tool",
	TypeDigitalWrite:       "digital_write",
	TypeAnalogWrite:        "analog_write",
	TypeInitializeDevice:   "initialize",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(t)) + ")"
}

// Action is a single command. The set of implementations is closed: only this package can
// add variants.
type Action interface {
	// ID is unique per process and increases with creation order.
	ID() int64
	Type() Type
	// String is a human readable description, e.g. "Move to [0, 0, 100] mm".
	String() string

	isAction()
}

var lastID = atomic.NewInt64(0)

type base struct {
	id int64
}

func newBase() base {
	return base{id: lastID.Inc()}
}

func (b base) ID() int64 {
	return b.id
}

func (base) isAction() {}
