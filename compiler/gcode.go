package compiler

import (
	"fmt"
	"math"

	"go.viam.com/machina/action"
	"go.viam.com/machina/cursor"
)

// GCode renders programs for extruder based machines. Moves use relative extrusion (M83): each
// extruding move feeds the distance travelled times the extrusion rate. Rotations and joint
// moves have no G-code equivalent and render nothing.
type GCode struct{}

// Program renders the setup header followed by every step.
func (g *GCode) Program(start cursor.State, steps []cursor.Step, opts cursor.ProgramOptions) []string {
	var lines []string
	if opts.Name != "" {
		lines = append(lines, "; "+opts.Name)
	}
	lines = append(lines,
		"G21 ; millimeters",
		"G90 ; absolute positioning",
		"M83 ; relative extrusion",
	)
	for _, step := range steps {
		lines = append(lines, g.Instructions(step, opts)...)
	}
	return lines
}

// Instructions renders a single step.
func (g *GCode) Instructions(step cursor.Step, opts cursor.ProgramOptions) []string {
	var lines []string
	if opts.HumanComments {
		lines = append(lines, "; "+step.Action.String())
	}

	s := step.State
	switch a := step.Action.(type) {
	case action.Translate, action.TranslateAndRotate:
		if s.Position != nil {
			lines = append(lines, gcodeMove(step))
		}
	case action.Temperature:
		lines = append(lines, gcodeTemperature(a.Part, a.WaitToReach, s.Temperatures[a.Part]))
	case action.Message:
		lines = append(lines, "M117 "+a.Text)
	case action.Wait:
		lines = append(lines, fmt.Sprintf("G4 P%d", a.Millis))
	case action.Comment:
		lines = append(lines, "; "+a.Text)
	case action.DigitalWrite:
		value := 0
		if a.On {
			value = 255
		}
		lines = append(lines, fmt.Sprintf("M42 P%d S%d", a.Pin, value))
	case action.AnalogWrite:
		value := math.Round(math.Max(0, math.Min(255, a.Value)))
		lines = append(lines, fmt.Sprintf("M42 P%d S%d", a.Pin, int(value)))
	case action.InitializeDevice:
		if a.On {
			lines = append(lines, "G28 ; home all axes")
		} else {
			lines = append(lines, "M84 ; disable motors")
		}
	}
	return lines
}

func gcodeMove(step cursor.Step) string {
	s := step.State
	cmd := "G1"
	if s.MotionType == action.Joint {
		cmd = "G0"
	}
	line := fmt.Sprintf("%s X%s Y%s Z%s F%s", cmd,
		formatFloat(s.Position.X, 3), formatFloat(s.Position.Y, 3), formatFloat(s.Position.Z, 3),
		formatFloat(s.Speed*60, 1))
	if s.Extruding && s.ExtrusionRate > 0 && step.Before.Position != nil {
		length := s.Position.Sub(*step.Before.Position).Norm() * s.ExtrusionRate
		if length > 0 {
			line += " E" + formatFloat(length, 5)
		}
	}
	return line
}

func gcodeTemperature(part action.RobotPart, wait bool, value float64) string {
	var code string
	switch {
	case part == action.Bed && wait:
		code = "M190"
	case part == action.Bed:
		code = "M140"
	case wait:
		code = "M109"
	default:
		code = "M104"
	}
	return fmt.Sprintf("%s S%s", code, formatFloat(value, 1))
}
