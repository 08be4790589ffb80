package cursor

import "go.viam.com/machina/action"

// Step is an action released by a cursor, together with the cursor state right before and right
// after applying it. Compilers render targets from State, so clamped or composed values are what
// gets emitted.
type Step struct {
	Action action.Action
	Before State
	State  State
}

// ProgramOptions control how a program is rendered.
type ProgramOptions struct {
	// Name of the program, for dialects that have one.
	Name string
	// InlineTargets writes targets into each motion instruction instead of declaring them first.
	InlineTargets bool
	// HumanComments appends the human description of each action as a comment.
	HumanComments bool
}

// A Compiler renders released actions as program text for one controller dialect.
type Compiler interface {
	// Program renders a complete program for the steps. start is the state before the first step.
	Program(start State, steps []Step, opts ProgramOptions) []string
	// Instructions renders a single step as standalone instructions, for streaming.
	Instructions(step Step, opts ProgramOptions) []string
}
