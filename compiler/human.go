package compiler

import (
	"go.viam.com/machina/cursor"
)

// Human renders one readable description per action. It is used when no brand is configured.
type Human struct{}

// Program renders every step's description, preceded by the program name when set.
func (h *Human) Program(start cursor.State, steps []cursor.Step, opts cursor.ProgramOptions) []string {
	lines := make([]string, 0, len(steps)+1)
	if opts.HumanComments && opts.Name != "" {
		lines = append(lines, "// "+opts.Name)
	}
	for _, step := range steps {
		lines = append(lines, h.Instructions(step, opts)...)
	}
	return lines
}

// Instructions renders the step's description.
func (h *Human) Instructions(step cursor.Step, opts cursor.ProgramOptions) []string {
	return []string{step.Action.String()}
}
