package action

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/machina/spatialmath"
)

// typeKey is the map key naming the action type, e.g. {"type": "translate", "z": 100}.
const typeKey = "type"

type valueArgs struct {
	Value    float64 `mapstructure:"value"`
	Relative bool    `mapstructure:"relative"`
}

type kindArgs struct {
	Kind string `mapstructure:"kind"`
}

type temperatureArgs struct {
	Value       float64 `mapstructure:"value"`
	Part        string  `mapstructure:"part"`
	WaitToReach bool    `mapstructure:"wait"`
	Relative    bool    `mapstructure:"relative"`
}

type toggleArgs struct {
	On bool `mapstructure:"on"`
}

// rotationFromArgs accepts either an axis and angle or yaw/pitch/roll, all in degrees.
func rotationFromArgs(axisValues []float64, angle, yaw, pitch, roll float64) (spatialmath.Rotation, error) {
	if axisValues == nil {
		return spatialmath.EulerAngles{Yaw: yaw, Pitch: pitch, Roll: roll}.Rotation(), nil
	}
	if len(axisValues) != 3 {
		return spatialmath.Rotation{}, errors.Errorf("rotation axis needs 3 values but got %d", len(axisValues))
	}
	if yaw != 0 || pitch != 0 || roll != 0 {
		return spatialmath.Rotation{}, errors.New("give either axis and angle or yaw, pitch and roll, not both")
	}
	axis := r3.Vector{X: axisValues[0], Y: axisValues[1], Z: axisValues[2]}
	if axis.Norm() == 0 {
		return spatialmath.Rotation{}, errors.New("rotation axis cannot be zero")
	}
	return spatialmath.NewRotationFromAxisAngle(axis, angle), nil
}

type translateArgs struct {
	X        float64 `mapstructure:"x"`
	Y        float64 `mapstructure:"y"`
	Z        float64 `mapstructure:"z"`
	Relative bool    `mapstructure:"relative"`
}

type rotateArgs struct {
	Axis     []float64 `mapstructure:"axis"`
	Angle    float64   `mapstructure:"angle"`
	Yaw      float64   `mapstructure:"yaw"`
	Pitch    float64   `mapstructure:"pitch"`
	Roll     float64   `mapstructure:"roll"`
	Relative bool      `mapstructure:"relative"`
}

func (args rotateArgs) rotation() (spatialmath.Rotation, error) {
	return rotationFromArgs(args.Axis, args.Angle, args.Yaw, args.Pitch, args.Roll)
}

type transformArgs struct {
	X                float64   `mapstructure:"x"`
	Y                float64   `mapstructure:"y"`
	Z                float64   `mapstructure:"z"`
	Axis             []float64 `mapstructure:"axis"`
	Angle            float64   `mapstructure:"angle"`
	Yaw              float64   `mapstructure:"yaw"`
	Pitch            float64   `mapstructure:"pitch"`
	Roll             float64   `mapstructure:"roll"`
	Relative         bool      `mapstructure:"relative"`
	TranslationFirst bool      `mapstructure:"translation_first"`
}

type jointsArgs struct {
	Joints   []float64 `mapstructure:"joints"`
	Relative bool      `mapstructure:"relative"`
}

type textArgs struct {
	Text string `mapstructure:"text"`
}

type waitArgs struct {
	Millis int64 `mapstructure:"ms"`
}

type toolArgs struct {
	Name   string    `mapstructure:"name"`
	X      float64   `mapstructure:"x"`
	Y      float64   `mapstructure:"y"`
	Z      float64   `mapstructure:"z"`
	Axis   []float64 `mapstructure:"axis"`
	Angle  float64   `mapstructure:"angle"`
	Yaw    float64   `mapstructure:"yaw"`
	Pitch  float64   `mapstructure:"pitch"`
	Roll   float64   `mapstructure:"roll"`
	Weight float64   `mapstructure:"weight"`
}

type pinArgs struct {
	Pin   int     `mapstructure:"pin"`
	On    bool    `mapstructure:"on"`
	Value float64 `mapstructure:"value"`
}

func decodeArgs(in map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(in)
}

// FromMap builds an action from its generic map form, as found in JSON action scripts. The "type"
// key selects the variant and the remaining keys are its arguments; unknown keys are an error.
func FromMap(m map[string]interface{}) (Action, error) {
	typeName, ok := m[typeKey].(string)
	if !ok {
		return nil, errors.Errorf("action is missing a string %q field", typeKey)
	}
	args := lo.OmitByKeys(m, []string{typeKey})

	act, err := fromArgs(typeName, args)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %q action", typeName)
	}
	return act, nil
}

//nolint:gocyclo
func fromArgs(typeName string, args map[string]interface{}) (Action, error) {
	switch typeName {
	case TypeSpeed.String(), TypePrecision.String(), TypeExtrusionRate.String():
		var v valueArgs
		if err := decodeArgs(args, &v); err != nil {
			return nil, err
		}
		switch typeName {
		case TypeSpeed.String():
			return NewSpeed(v.Value, v.Relative), nil
		case TypePrecision.String():
			return NewPrecision(v.Value, v.Relative), nil
		default:
			return NewExtrusionRate(v.Value, v.Relative), nil
		}
	case TypeMotionMode.String():
		var v kindArgs
		if err := decodeArgs(args, &v); err != nil {
			return nil, err
		}
		kind, err := ParseMotionType(v.Kind)
		if err != nil {
			return nil, err
		}
		return NewMotionMode(kind), nil
	case TypeReferenceFrame.String():
		var v kindArgs
		if err := decodeArgs(args, &v); err != nil {
			return nil, err
		}
		kind, err := ParseReferenceCS(v.Kind)
		if err != nil {
			return nil, err
		}
		return NewReferenceFrame(kind), nil
	case TypePushSettings.String():
		return NewPushSettings(), decodeArgs(args, &struct{}{})
	case TypePopSettings.String():
		return NewPopSettings(), decodeArgs(args, &struct{}{})
	case TypeTemperature.String():
		var v temperatureArgs
		if err := decodeArgs(args, &v); err != nil {
			return nil, err
		}
		part, err := ParseRobotPart(v.Part)
		if err != nil {
			return nil, err
		}
		return NewTemperature(v.Value, part, v.WaitToReach, v.Relative), nil
	case TypeExtrudeToggle.String(), TypeInitializeDevice.String():
		var v toggleArgs
		if err := decodeArgs(args, &v); err != nil {
			return nil, err
		}
		if typeName == TypeExtrudeToggle.String() {
			return NewExtrudeToggle(v.On), nil
		}
		return NewInitializeDevice(v.On), nil
	case TypeTranslate.String():
		var v translateArgs
		if err := decodeArgs(args, &v); err != nil {
			return nil, err
		}
		return NewTranslate(r3.Vector{X: v.X, Y: v.Y, Z: v.Z}, v.Relative), nil
	case TypeRotate.String():
		var v rotateArgs
		if err := decodeArgs(args, &v); err != nil {
			return nil, err
		}
		rot, err := v.rotation()
		if err != nil {
			return nil, err
		}
		return NewRotate(rot, v.Relative), nil
	case TypeTranslateAndRotate.String():
		var v transformArgs
		if err := decodeArgs(args, &v); err != nil {
			return nil, err
		}
		rot, err := rotationFromArgs(v.Axis, v.Angle, v.Yaw, v.Pitch, v.Roll)
		if err != nil {
			return nil, err
		}
		return NewTranslateAndRotate(r3.Vector{X: v.X, Y: v.Y, Z: v.Z}, rot, v.Relative, v.TranslationFirst), nil
	case TypeSetJoints.String():
		var v jointsArgs
		if err := decodeArgs(args, &v); err != nil {
			return nil, err
		}
		joints, err := spatialmath.NewJoints(v.Joints)
		if err != nil {
			return nil, err
		}
		return NewSetJoints(joints, v.Relative), nil
	case TypeMessage.String(), TypeComment.String():
		var v textArgs
		if err := decodeArgs(args, &v); err != nil {
			return nil, err
		}
		if typeName == TypeMessage.String() {
			return NewMessage(v.Text), nil
		}
		return NewComment(v.Text), nil
	case TypeWait.String():
		var v waitArgs
		if err := decodeArgs(args, &v); err != nil {
			return nil, err
		}
		return NewWait(v.Millis), nil
	case TypeAttachTool.String():
		var v toolArgs
		if err := decodeArgs(args, &v); err != nil {
			return nil, err
		}
		rot, err := rotationFromArgs(v.Axis, v.Angle, v.Yaw, v.Pitch, v.Roll)
		if err != nil {
			return nil, err
		}
		tool, err := NewTool(v.Name, r3.Vector{X: v.X, Y: v.Y, Z: v.Z}, rot, v.Weight)
		if err != nil {
			return nil, err
		}
		return NewAttachTool(tool), nil
	case TypeDetachTool.String():
		return NewDetachTool(), decodeArgs(args, &struct{}{})
	case TypeDigitalWrite.String(), TypeAnalogWrite.String():
		var v pinArgs
		if err := decodeArgs(args, &v); err != nil {
			return nil, err
		}
		if typeName == TypeDigitalWrite.String() {
			return NewDigitalWrite(v.Pin, v.On), nil
		}
		return NewAnalogWrite(v.Pin, v.Value), nil
	}
	return nil, errors.Errorf("unknown action type %q", typeName)
}
