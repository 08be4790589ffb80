package cursor

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/machina/action"
	"go.viam.com/machina/spatialmath"
)

// TableCollisionPolicy is what happens when a move would take the TCP below the table limit.
type TableCollisionPolicy int

const (
	// TableCollisionReject rejects the move.
	TableCollisionReject TableCollisionPolicy = iota
	// TableCollisionClampAndWarn accepts the move with z raised to the limit, and logs a warning.
	TableCollisionClampAndWarn
	// TableCollisionDisabled skips the check.
	TableCollisionDisabled
)

func (p TableCollisionPolicy) String() string {
	switch p {
	case TableCollisionReject:
		return "reject"
	case TableCollisionClampAndWarn:
		return "clamp"
	case TableCollisionDisabled:
		return "disabled"
	}
	return "unknown"
}

// Safety configures the table collision guard.
type Safety struct {
	Policy TableCollisionPolicy
	// TableZLimit is the lowest z, in mm, the TCP may reach.
	TableZLimit float64
}

// applyResult is the outcome of applying one action to a state.
type applyResult struct {
	state   State
	clamped bool
}

// apply computes the state after act. s is never modified: on error the caller keeps s as is.
//
//nolint:gocyclo
func apply(s State, act action.Action, safety Safety) (applyResult, error) {
	next := s.Clone()
	movesTCP := false

	switch a := act.(type) {
	case action.Speed:
		next.Speed = relOrAbs(s.Speed, a.Value, a.Relative)
		if next.Speed < 0 {
			return applyResult{}, errors.Wrapf(ErrInvalidValue, "speed cannot be negative (%v)", next.Speed)
		}
	case action.Precision:
		next.Precision = relOrAbs(s.Precision, a.Value, a.Relative)
		if next.Precision < 0 {
			return applyResult{}, errors.Wrapf(ErrInvalidValue, "precision cannot be negative (%v)", next.Precision)
		}
	case action.MotionMode:
		next.MotionType = a.Kind
	case action.ReferenceFrame:
		next.ReferenceCS = a.Kind
	case action.PushSettings:
		next.settingsStack = append(next.settingsStack, s.Settings)
	case action.PopSettings:
		depth := len(next.settingsStack)
		if depth == 0 {
			return applyResult{}, ErrEmptySettingsStack
		}
		next.Settings = next.settingsStack[depth-1]
		next.settingsStack = next.settingsStack[:depth-1]
	case action.Temperature:
		if !a.Part.SupportsHeating() {
			return applyResult{}, errors.Wrapf(ErrPartCannotHeat, "%s", a.Part)
		}
		next.Temperatures[a.Part] = relOrAbs(s.Temperatures[a.Part], a.Value, a.Relative)
	case action.ExtrudeToggle:
		next.Extruding = a.On
	case action.ExtrusionRate:
		next.ExtrusionRate = relOrAbs(s.ExtrusionRate, a.Value, a.Relative)
		if next.ExtrusionRate < 0 {
			return applyResult{}, errors.Wrapf(ErrInvalidValue, "extrusion rate cannot be negative (%v)", next.ExtrusionRate)
		}
	case action.Translate:
		if err := applyTranslate(&next, a.Vector, a.Relative); err != nil {
			return applyResult{}, err
		}
		movesTCP = true
	case action.Rotate:
		if err := applyRotate(&next, a.Rotation, a.Relative); err != nil {
			return applyResult{}, err
		}
		movesTCP = true
	case action.TranslateAndRotate:
		if err := applyTransform(&next, a); err != nil {
			return applyResult{}, err
		}
		movesTCP = true
	case action.SetJoints:
		if a.Relative {
			if s.Joints == nil {
				return applyResult{}, ErrUnknownJoints
			}
			sum := s.Joints.Add(a.Joints)
			next.Joints = &sum
		} else {
			joints := a.Joints
			next.Joints = &joints
		}
		next.Position, next.Rotation = nil, nil
	case action.Message, action.Comment:
	case action.Wait:
		if a.Millis < 0 {
			return applyResult{}, errors.Wrapf(ErrInvalidValue, "wait cannot be negative (%d ms)", a.Millis)
		}
	case action.AttachTool:
		if next.Tool != nil {
			removeToolOffset(&next)
		}
		tool := a.Tool
		tcpRot, err := unitRotation(tool.TCPRotation)
		if err != nil {
			return applyResult{}, errors.Wrapf(err, "tool %q", tool.Name)
		}
		tool.TCPRotation = tcpRot
		next.Tool = &tool
		if next.PoseKnown() {
			pos := next.Position.Add(next.Rotation.RotateVector(tool.TCPPosition))
			rot := next.Rotation.Multiply(tool.TCPRotation)
			next.Position, next.Rotation = &pos, &rot
		}
	case action.DetachTool:
		if next.Tool == nil {
			return applyResult{}, ErrNoToolAttached
		}
		removeToolOffset(&next)
		next.Tool = nil
	case action.DigitalWrite:
		if a.Pin < 0 || a.Pin >= len(next.DigitalOutputs) {
			return applyResult{}, errors.Wrapf(ErrPinOutOfRange, "digital pin %d, have %d", a.Pin, len(next.DigitalOutputs))
		}
		next.DigitalOutputs[a.Pin] = a.On
	case action.AnalogWrite:
		if a.Pin < 0 || a.Pin >= len(next.AnalogOutputs) {
			return applyResult{}, errors.Wrapf(ErrPinOutOfRange, "analog pin %d, have %d", a.Pin, len(next.AnalogOutputs))
		}
		next.AnalogOutputs[a.Pin] = a.Value
	case action.InitializeDevice:
		next.DeviceInitialized = a.On
	default:
		return applyResult{}, errors.Errorf("unsupported action type %T", act)
	}

	res := applyResult{state: next}
	if movesTCP && safety.Policy != TableCollisionDisabled && next.Position != nil && next.Position.Z < safety.TableZLimit {
		if safety.Policy == TableCollisionReject {
			return applyResult{}, errors.Wrapf(ErrTableCollision, "target z %.3f mm is below the limit of %.3f mm",
				next.Position.Z, safety.TableZLimit)
		}
		clamped := *next.Position
		clamped.Z = safety.TableZLimit
		res.state.Position = &clamped
		res.clamped = true
	}
	return res, nil
}

func relOrAbs(current, value float64, relative bool) float64 {
	if relative {
		return current + value
	}
	return value
}

func applyTranslate(s *State, v r3.Vector, relative bool) error {
	if !s.PoseKnown() {
		return errors.Wrap(ErrUnknownPose, "cannot translate")
	}
	var pos r3.Vector
	switch {
	case !relative:
		pos = v
	case s.ReferenceCS == action.Local:
		pos = s.Position.Add(s.Rotation.RotateVector(v))
	default:
		pos = s.Position.Add(v)
	}
	s.Position = &pos
	s.Joints = nil
	return nil
}

// unitRotation normalizes r. Zero and non-finite quaternions do not describe an orientation.
func unitRotation(r spatialmath.Rotation) (spatialmath.Rotation, error) {
	norm := r.Norm()
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return spatialmath.Rotation{}, errors.Wrapf(ErrInvalidValue, "rotation %v is not a valid quaternion", r)
	}
	return spatialmath.NewRotation(r.W, r.X, r.Y, r.Z), nil
}

func applyRotate(s *State, r spatialmath.Rotation, relative bool) error {
	if !s.PoseKnown() {
		return errors.Wrap(ErrUnknownPose, "cannot rotate")
	}
	r, err := unitRotation(r)
	if err != nil {
		return err
	}
	var rot spatialmath.Rotation
	switch {
	case !relative:
		rot = r
	case s.ReferenceCS == action.Local:
		rot = s.Rotation.Multiply(r)
	default:
		rot = r.Multiply(*s.Rotation)
	}
	s.Rotation = &rot
	s.Joints = nil
	return nil
}

func applyTransform(s *State, a action.TranslateAndRotate) error {
	if !a.Relative {
		if err := applyRotate(s, a.Rotation, false); err != nil {
			return err
		}
		return applyTranslate(s, a.Vector, false)
	}
	// In the world frame a translation does not depend on the orientation, so order is irrelevant.
	if a.TranslationFirst || s.ReferenceCS == action.World {
		if err := applyTranslate(s, a.Vector, true); err != nil {
			return err
		}
		return applyRotate(s, a.Rotation, true)
	}
	if err := applyRotate(s, a.Rotation, true); err != nil {
		return err
	}
	return applyTranslate(s, a.Vector, true)
}

// removeToolOffset moves the TCP from the tool tip back to the flange.
func removeToolOffset(s *State) {
	if !s.PoseKnown() || s.Tool == nil {
		return
	}
	rot := s.Rotation.Multiply(s.Tool.TCPRotation.Inverse())
	pos := s.Position.Sub(rot.RotateVector(s.Tool.TCPPosition))
	s.Position, s.Rotation = &pos, &rot
}
