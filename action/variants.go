package action

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"

	"go.viam.com/machina/spatialmath"
)

// Speed sets the TCP speed in mm/s, or changes it by Value when Relative.
type Speed struct {
	base
	Value    float64
	Relative bool
}

// NewSpeed returns a Speed action.
func NewSpeed(value float64, relative bool) Speed {
	return Speed{newBase(), value, relative}
}

// Type returns TypeSpeed.
func (Speed) Type() Type { return TypeSpeed }

func (a Speed) String() string {
	if a.Relative {
		return fmt.Sprintf("%s speed by %s mm/s", increaseOrDecrease(a.Value), FormatNumber(math.Abs(a.Value)))
	}
	return fmt.Sprintf("Set speed to %s mm/s", FormatNumber(a.Value))
}

// Precision sets the approach radius in mm, or changes it by Value when Relative.
type Precision struct {
	base
	Value    float64
	Relative bool
}

// NewPrecision returns a Precision action.
func NewPrecision(value float64, relative bool) Precision {
	return Precision{newBase(), value, relative}
}

// Type returns TypePrecision.
func (Precision) Type() Type { return TypePrecision }

func (a Precision) String() string {
	if a.Relative {
		return fmt.Sprintf("%s precision radius by %s mm", increaseOrDecrease(a.Value), FormatNumber(math.Abs(a.Value)))
	}
	return fmt.Sprintf("Set precision radius to %s mm", FormatNumber(a.Value))
}

// MotionMode changes how following moves are interpolated.
type MotionMode struct {
	base
	Kind MotionType
}

// NewMotionMode returns a MotionMode action.
func NewMotionMode(kind MotionType) MotionMode {
	return MotionMode{newBase(), kind}
}

// Type returns TypeMotionMode.
func (MotionMode) Type() Type { return TypeMotionMode }

func (a MotionMode) String() string {
	return fmt.Sprintf("Set motion type to '%s'", a.Kind)
}

// ReferenceFrame changes the coordinate system relative moves are expressed in.
type ReferenceFrame struct {
	base
	Kind ReferenceCS
}

// NewReferenceFrame returns a ReferenceFrame action.
func NewReferenceFrame(kind ReferenceCS) ReferenceFrame {
	return ReferenceFrame{newBase(), kind}
}

// Type returns TypeReferenceFrame.
func (ReferenceFrame) Type() Type { return TypeReferenceFrame }

func (a ReferenceFrame) String() string {
	return fmt.Sprintf("Set reference coordinate system to '%s'", a.Kind)
}

// PushSettings saves the current settings on a stack.
type PushSettings struct {
	base
}

// NewPushSettings returns a PushSettings action.
func NewPushSettings() PushSettings {
	return PushSettings{newBase()}
}

// Type returns TypePushSettings.
func (PushSettings) Type() Type { return TypePushSettings }

func (PushSettings) String() string {
	return "Push settings to buffer"
}

// PopSettings restores the most recently pushed settings.
type PopSettings struct {
	base
}

// NewPopSettings returns a PopSettings action.
func NewPopSettings() PopSettings {
	return PopSettings{newBase()}
}

// Type returns TypePopSettings.
func (PopSettings) Type() Type { return TypePopSettings }

func (PopSettings) String() string {
	return "Pop settings from buffer"
}

// Temperature sets the target temperature of a heated part in °C.
type Temperature struct {
	base
	Value       float64
	Part        RobotPart
	WaitToReach bool
	Relative    bool
}

// NewTemperature returns a Temperature action.
func NewTemperature(value float64, part RobotPart, waitToReach, relative bool) Temperature {
	return Temperature{newBase(), value, part, waitToReach, relative}
}

// Type returns TypeTemperature.
func (Temperature) Type() Type { return TypeTemperature }

func (a Temperature) String() string {
	var desc string
	if a.Relative {
		desc = fmt.Sprintf("%s %s temperature by %s C",
			increaseOrDecrease(a.Value), a.Part, FormatNumber(math.Abs(a.Value)))
	} else {
		desc = fmt.Sprintf("Set %s temperature to %s C", a.Part, FormatNumber(a.Value))
	}
	if a.WaitToReach {
		desc += " and wait until reached"
	}
	return desc
}

// ExtrudeToggle turns material extrusion on or off for following moves.
type ExtrudeToggle struct {
	base
	On bool
}

// NewExtrudeToggle returns an ExtrudeToggle action.
func NewExtrudeToggle(on bool) ExtrudeToggle {
	return ExtrudeToggle{newBase(), on}
}

// Type returns TypeExtrudeToggle.
func (ExtrudeToggle) Type() Type { return TypeExtrudeToggle }

func (a ExtrudeToggle) String() string {
	if a.On {
		return "Turn extrusion on"
	}
	return "Turn extrusion off"
}

// ExtrusionRate sets the extruded filament length per mm travelled.
type ExtrusionRate struct {
	base
	Value    float64
	Relative bool
}

// NewExtrusionRate returns an ExtrusionRate action.
func NewExtrusionRate(value float64, relative bool) ExtrusionRate {
	return ExtrusionRate{newBase(), value, relative}
}

// Type returns TypeExtrusionRate.
func (ExtrusionRate) Type() Type { return TypeExtrusionRate }

func (a ExtrusionRate) String() string {
	if a.Relative {
		return fmt.Sprintf("%s extrusion rate by %s mm/mm", increaseOrDecrease(a.Value), FormatNumber(math.Abs(a.Value)))
	}
	return fmt.Sprintf("Set extrusion rate to %s mm/mm", FormatNumber(a.Value))
}

// Translate moves the TCP, to an absolute position or by a relative offset, in mm.
type Translate struct {
	base
	Vector   r3.Vector
	Relative bool
}

// NewTranslate returns a Translate action.
func NewTranslate(vector r3.Vector, relative bool) Translate {
	return Translate{newBase(), vector, relative}
}

// Type returns TypeTranslate.
func (Translate) Type() Type { return TypeTranslate }

func (a Translate) String() string {
	if a.Relative {
		return fmt.Sprintf("Move %s mm along %s", FormatNumber(a.Vector.Norm()), FormatVector(a.Vector))
	}
	return fmt.Sprintf("Move to %s mm", FormatVector(a.Vector))
}

// Rotate reorients the TCP without moving it.
type Rotate struct {
	base
	Rotation spatialmath.Rotation
	Relative bool
}

// NewRotate returns a Rotate action.
func NewRotate(rotation spatialmath.Rotation, relative bool) Rotate {
	return Rotate{newBase(), rotation, relative}
}

// Type returns TypeRotate.
func (Rotate) Type() Type { return TypeRotate }

func (a Rotate) String() string {
	if a.Relative {
		return "Rotate " + formatAxisAngle(a.Rotation)
	}
	return "Rotate to " + FormatRotation(a.Rotation)
}

// TranslateAndRotate combines a translation and a rotation in a single move. For relative moves in
// the local frame, TranslationFirst decides whether the offset is expressed in the frame before or
// after the rotation.
type TranslateAndRotate struct {
	base
	Vector           r3.Vector
	Rotation         spatialmath.Rotation
	Relative         bool
	TranslationFirst bool
}

// NewTranslateAndRotate returns a TranslateAndRotate action.
func NewTranslateAndRotate(vector r3.Vector, rotation spatialmath.Rotation, relative, translationFirst bool) TranslateAndRotate {
	return TranslateAndRotate{newBase(), vector, rotation, relative, translationFirst}
}

// Type returns TypeTranslateAndRotate.
func (TranslateAndRotate) Type() Type { return TypeTranslateAndRotate }

func (a TranslateAndRotate) String() string {
	if !a.Relative {
		return fmt.Sprintf("Move to %s mm and rotate to %s", FormatVector(a.Vector), FormatRotation(a.Rotation))
	}
	move := fmt.Sprintf("move %s mm along %s", FormatNumber(a.Vector.Norm()), FormatVector(a.Vector))
	rotate := "rotate " + formatAxisAngle(a.Rotation)
	if a.TranslationFirst {
		return capitalize(move) + " and " + rotate
	}
	return capitalize(rotate) + " and " + move
}

// SetJoints moves every joint, to absolute angles or by relative increments, in degrees.
type SetJoints struct {
	base
	Joints   spatialmath.Joints
	Relative bool
}

// NewSetJoints returns a SetJoints action.
func NewSetJoints(joints spatialmath.Joints, relative bool) SetJoints {
	return SetJoints{newBase(), joints, relative}
}

// Type returns TypeSetJoints.
func (SetJoints) Type() Type { return TypeSetJoints }

func (a SetJoints) String() string {
	if a.Relative {
		return fmt.Sprintf("Increase joint rotations by %s deg", formatJoints(a.Joints))
	}
	return fmt.Sprintf("Set joint rotations to %s deg", formatJoints(a.Joints))
}

// Message displays text on the controller.
type Message struct {
	base
	Text string
}

// NewMessage returns a Message action.
func NewMessage(text string) Message {
	return Message{newBase(), text}
}

// Type returns TypeMessage.
func (Message) Type() Type { return TypeMessage }

func (a Message) String() string {
	return fmt.Sprintf("Display message %q", a.Text)
}

// Wait pauses execution.
type Wait struct {
	base
	Millis int64
}

// NewWait returns a Wait action.
func NewWait(millis int64) Wait {
	return Wait{newBase(), millis}
}

// Type returns TypeWait.
func (Wait) Type() Type { return TypeWait }

func (a Wait) String() string {
	return fmt.Sprintf("Wait %d ms", a.Millis)
}

// Comment adds a comment to the compiled program.
type Comment struct {
	base
	Text string
}

// NewComment returns a Comment action.
func NewComment(text string) Comment {
	return Comment{newBase(), text}
}

// Type returns TypeComment.
func (Comment) Type() Type { return TypeComment }

func (a Comment) String() string {
	return fmt.Sprintf("Comment %q", a.Text)
}

// AttachTool mounts a tool on the flange, moving the TCP to the tool tip.
type AttachTool struct {
	base
	Tool Tool
}

// NewAttachTool returns an AttachTool action.
func NewAttachTool(tool Tool) AttachTool {
	return AttachTool{newBase(), tool}
}

// Type returns TypeAttachTool.
func (AttachTool) Type() Type { return TypeAttachTool }

func (a AttachTool) String() string {
	return fmt.Sprintf("Attach tool %q", a.Tool.Name)
}

// DetachTool removes the current tool, moving the TCP back to the flange.
type DetachTool struct {
	base
}

// NewDetachTool returns a DetachTool action.
func NewDetachTool() DetachTool {
	return DetachTool{newBase()}
}

// Type returns TypeDetachTool.
func (DetachTool) Type() Type { return TypeDetachTool }

func (DetachTool) String() string {
	return "Detach all tools"
}

// DigitalWrite turns a digital output on or off.
type DigitalWrite struct {
	base
	Pin int
	On  bool
}

// NewDigitalWrite returns a DigitalWrite action.
func NewDigitalWrite(pin int, on bool) DigitalWrite {
	return DigitalWrite{newBase(), pin, on}
}

// Type returns TypeDigitalWrite.
func (DigitalWrite) Type() Type { return TypeDigitalWrite }

func (a DigitalWrite) String() string {
	if a.On {
		return fmt.Sprintf("Turn digital IO %d on", a.Pin)
	}
	return fmt.Sprintf("Turn digital IO %d off", a.Pin)
}

// AnalogWrite sets an analog output.
type AnalogWrite struct {
	base
	Pin   int
	Value float64
}

// NewAnalogWrite returns an AnalogWrite action.
func NewAnalogWrite(pin int, value float64) AnalogWrite {
	return AnalogWrite{newBase(), pin, value}
}

// Type returns TypeAnalogWrite.
func (AnalogWrite) Type() Type { return TypeAnalogWrite }

func (a AnalogWrite) String() string {
	return fmt.Sprintf("Set analog IO %d to %s", a.Pin, FormatNumber(a.Value))
}

// InitializeDevice runs the device's start up (On) or shut down routine.
type InitializeDevice struct {
	base
	On bool
}

// NewInitializeDevice returns an InitializeDevice action.
func NewInitializeDevice(on bool) InitializeDevice {
	return InitializeDevice{newBase(), on}
}

// Type returns TypeInitializeDevice.
func (InitializeDevice) Type() Type { return TypeInitializeDevice }

func (a InitializeDevice) String() string {
	if a.On {
		return "Initialize device"
	}
	return "Terminate device"
}

// FormatNumber renders a value with at most 3 decimals and no trailing zeros.
func FormatNumber(v float64) string {
	rounded := math.Round(v*1000) / 1000
	if rounded == 0 {
		// avoid "-0"
		rounded = 0
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

// FormatVector renders a vector as "[x, y, z]".
func FormatVector(v r3.Vector) string {
	return fmt.Sprintf("[%s, %s, %s]", FormatNumber(v.X), FormatNumber(v.Y), FormatNumber(v.Z))
}

// FormatRotation renders a rotation as its Euler angles.
func FormatRotation(r spatialmath.Rotation) string {
	ea := r.EulerAngles()
	return fmt.Sprintf("[yaw %s, pitch %s, roll %s] deg", FormatNumber(ea.Yaw), FormatNumber(ea.Pitch), FormatNumber(ea.Roll))
}

func formatAxisAngle(r spatialmath.Rotation) string {
	aa := r.AxisAngle()
	return fmt.Sprintf("%s deg around %s", FormatNumber(aa.Theta), FormatVector(aa.Axis()))
}

func formatJoints(j spatialmath.Joints) string {
	out := "["
	for i, v := range j {
		if i > 0 {
			out += ", "
		}
		out += FormatNumber(v)
	}
	return out + "]"
}

func increaseOrDecrease(v float64) string {
	if v < 0 {
		return "Decrease"
	}
	return "Increase"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
