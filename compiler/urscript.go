package compiler

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/golang/geo/r3"

	"go.viam.com/machina/action"
	"go.viam.com/machina/cursor"
	"go.viam.com/machina/spatialmath"
	"go.viam.com/machina/utils"
)

const (
	urIndent      = "  "
	urLinearAccel = 1.2  // m/s^2
	urJointAccel  = 1.4  // rad/s^2
	urJointSpeed  = 1.05 // rad/s
)

// URScript renders programs for Universal Robots controllers. Poses are written in meters with
// rotation vectors in radians.
type URScript struct{}

// Program renders a "def name(): ... end" program. Unless targets are inlined, every target is
// declared at the top of the program as targetN, N being the step index.
func (u *URScript) Program(start cursor.State, steps []cursor.Step, opts cursor.ProgramOptions) []string {
	name := urIdentifier(opts.Name)
	lines := []string{fmt.Sprintf("def %s():", name)}

	if !opts.InlineTargets {
		declared := 0
		for i, step := range steps {
			if target, ok := urTarget(step); ok {
				lines = append(lines, fmt.Sprintf("%s%s = %s", urIndent, urTargetName(i), target))
				declared++
			}
		}
		if declared > 0 {
			lines = append(lines, "")
		}
	}

	for i, step := range steps {
		targetName := ""
		if !opts.InlineTargets {
			targetName = urTargetName(i)
		}
		for _, line := range u.instructions(step, opts, targetName) {
			lines = append(lines, urIndent+line)
		}
	}
	return append(lines, "end")
}

// Instructions renders a single step with its target inlined.
func (u *URScript) Instructions(step cursor.Step, opts cursor.ProgramOptions) []string {
	return u.instructions(step, opts, "")
}

func (u *URScript) instructions(step cursor.Step, opts cursor.ProgramOptions, targetName string) []string {
	var lines []string
	if opts.HumanComments {
		lines = append(lines, "# "+step.Action.String())
	}

	s := step.State
	target := func() string {
		if targetName != "" {
			return targetName
		}
		t, _ := urTarget(step)
		return t
	}
	blend := formatFloat(s.Precision/1000, 5)

	switch a := step.Action.(type) {
	case action.Translate, action.Rotate, action.TranslateAndRotate:
		if s.MotionType == action.Joint {
			lines = append(lines, fmt.Sprintf("movej(%s, a=%s, v=%s, r=%s)",
				target(), formatFloat(urJointAccel, 2), formatFloat(urJointSpeed, 2), blend))
		} else {
			lines = append(lines, fmt.Sprintf("movel(%s, a=%s, v=%s, r=%s)",
				target(), formatFloat(urLinearAccel, 2), formatFloat(s.Speed/1000, 5), blend))
		}
	case action.SetJoints:
		lines = append(lines, fmt.Sprintf("movej(%s, a=%s, v=%s, r=%s)",
			target(), formatFloat(urJointAccel, 2), formatFloat(urJointSpeed, 2), blend))
	case action.Message:
		lines = append(lines, fmt.Sprintf("textmsg(%s)", urString(a.Text)))
	case action.Wait:
		lines = append(lines, fmt.Sprintf("sleep(%s)", formatFloat(float64(a.Millis)/1000, 3)))
	case action.Comment:
		lines = append(lines, "# "+a.Text)
	case action.AttachTool:
		lines = append(lines,
			fmt.Sprintf("set_tcp(%s)", urPose(a.Tool.TCPPosition, a.Tool.TCPRotation)),
			fmt.Sprintf("set_payload(%s)", formatFloat(a.Tool.Weight, 3)))
	case action.DetachTool:
		lines = append(lines,
			fmt.Sprintf("set_tcp(%s)", urPose(r3.Vector{}, spatialmath.IdentityRotation)),
			"set_payload(0)")
	case action.DigitalWrite:
		lines = append(lines, fmt.Sprintf("set_standard_digital_out(%d, %s)", a.Pin, urBool(a.On)))
	case action.AnalogWrite:
		lines = append(lines, fmt.Sprintf("set_standard_analog_out(%d, %s)", a.Pin, formatFloat(a.Value, 3)))
	}
	return lines
}

// urTarget is the motion target of a step, if it moves the robot.
func urTarget(step cursor.Step) (string, bool) {
	s := step.State
	switch step.Action.(type) {
	case action.Translate, action.Rotate, action.TranslateAndRotate:
		if s.PoseKnown() {
			return urPose(*s.Position, *s.Rotation), true
		}
	case action.SetJoints:
		if s.Joints != nil {
			rads := s.Joints.Radians()
			vals := make([]string, len(rads))
			for i, r := range rads {
				vals[i] = formatFloat(r, 5)
			}
			return "[" + strings.Join(vals, ", ") + "]", true
		}
	}
	return "", false
}

func urPose(pos r3.Vector, rot spatialmath.Rotation) string {
	aa := rot.AxisAngle().Normalize()
	rv := r3.Vector{X: aa.RX, Y: aa.RY, Z: aa.RZ}.Mul(utils.DegToRad(aa.Theta))
	return fmt.Sprintf("p[%s, %s, %s, %s, %s, %s]",
		formatFloat(pos.X/1000, 5), formatFloat(pos.Y/1000, 5), formatFloat(pos.Z/1000, 5),
		formatFloat(rv.X, 5), formatFloat(rv.Y, 5), formatFloat(rv.Z, 5))
}

func urTargetName(i int) string {
	return fmt.Sprintf("target%d", i)
}

func urBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func urString(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `'`) + `"`
}

// urIdentifier turns name into a valid URScript function name.
func urIdentifier(name string) string {
	var sb strings.Builder
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				sb.WriteRune('_')
			}
			sb.WriteRune(r)
		case r <= unicode.MaxASCII:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "program"
	}
	return sb.String()
}
