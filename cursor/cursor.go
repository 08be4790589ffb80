// Package cursor implements RobotCursor, a state machine holding one temporal view of a robot:
// what has been requested (virtual), what has been written to the device (write) and what the
// device has executed (motion). Cursors are chained so that each accepted action flows on to the
// next cursor.
package cursor

import (
	"fmt"
	"strings"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/machina/action"
	"go.viam.com/machina/logging"
	"go.viam.com/machina/spatialmath"
)

// Config describes a cursor.
type Config struct {
	Name string
	// ApplyImmediately cursors apply and forward actions as they are issued. Other cursors buffer
	// them and only apply and forward them once released by compilation or streaming.
	ApplyImmediately bool
	Safety           Safety
	// Compiler renders released actions. It may be nil for cursors that never produce programs.
	Compiler       Compiler
	DigitalOutputs int
	AnalogOutputs  int
}

type bufferEntry struct {
	act   action.Action
	after State
}

// RobotCursor is one view of robot state plus the ordered buffer of actions it accepted.
type RobotCursor struct {
	name             string
	logger           logging.Logger
	applyImmediately bool
	safety           Safety
	compiler         Compiler

	// releaseMu serializes releases so released actions reach the child in buffer order.
	releaseMu sync.Mutex

	mu    sync.Mutex
	ready bool
	// state reflects released actions only; buffered ones are in the entries' snapshots.
	state State
	// buffer holds every accepted action. buffer[:released] have been applied to state.
	buffer   []bufferEntry
	released int
	// blockEnds are the frozen block boundaries not yet released, ascending.
	blockEnds []int
	child     *RobotCursor
}

// New returns an uninitialized cursor.
func New(cfg Config, logger logging.Logger) *RobotCursor {
	state := State{
		Temperatures:   map[action.RobotPart]float64{},
		DigitalOutputs: make([]bool, cfg.DigitalOutputs),
		DigitalNames:   make([]string, cfg.DigitalOutputs),
		AnalogOutputs:  make([]float64, cfg.AnalogOutputs),
		AnalogNames:    make([]string, cfg.AnalogOutputs),
	}
	for i := range state.DigitalNames {
		state.DigitalNames[i] = fmt.Sprintf("DO_%d", i)
	}
	for i := range state.AnalogNames {
		state.AnalogNames[i] = fmt.Sprintf("AO_%d", i)
	}
	return &RobotCursor{
		name:             cfg.Name,
		logger:           logger.Sublogger(cfg.Name),
		applyImmediately: cfg.ApplyImmediately,
		safety:           cfg.Safety,
		compiler:         cfg.Compiler,
		state:            state,
	}
}

// Name returns the cursor name.
func (c *RobotCursor) Name() string {
	return c.name
}

// SetChild links the cursor that receives this cursor's applied actions. Pass nil to unlink.
func (c *RobotCursor) SetChild(child *RobotCursor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.child = child
}

// Child returns the linked child cursor, if any.
func (c *RobotCursor) Child() *RobotCursor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.child
}

// Initialize moves the cursor to Ready with the given pose and settings. Any of position,
// rotation and joints may be nil when unknown.
func (c *RobotCursor) Initialize(
	position *r3.Vector,
	rotation *spatialmath.Rotation,
	joints *spatialmath.Joints,
	settings Settings,
) error {
	if settings.Speed < 0 || settings.Precision < 0 || settings.ExtrusionRate < 0 {
		return errors.Wrap(ErrInvalidValue, "speed, precision and extrusion rate cannot be negative")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return errors.Wrap(ErrCursorAlreadyInitialized, c.name)
	}

	next := c.state.Clone()
	if position != nil {
		p := *position
		next.Position = &p
	}
	if rotation != nil {
		r := spatialmath.NewRotation(rotation.W, rotation.X, rotation.Y, rotation.Z)
		next.Rotation = &r
	}
	if joints != nil {
		j := *joints
		next.Joints = &j
	}
	next.Settings = settings
	c.state = next
	c.ready = true
	c.logger.Debugw("initialized", "position", position, "rotation", rotation, "joints", joints)
	return nil
}

// Ready reports whether Initialize succeeded.
func (c *RobotCursor) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Issue validates act against the cursor state and accepts it. An immediate cursor applies it and
// forwards it to its child right away; a deferred cursor buffers it until it is released.
// Forwarding failures are logged, not returned: the result only covers this cursor.
func (c *RobotCursor) Issue(act action.Action) error {
	c.mu.Lock()
	if !c.ready {
		c.mu.Unlock()
		return errors.Wrap(ErrCursorNotReady, c.name)
	}

	res, err := apply(c.lookaheadLocked(), act, c.safety)
	if err != nil {
		c.mu.Unlock()
		c.logger.Debugw("rejected action", "action", act.String(), "error", err)
		return err
	}
	if res.clamped {
		c.logger.Warnw("move clamped to the table limit", "action", act.String(), "z", c.safety.TableZLimit)
	}

	c.buffer = append(c.buffer, bufferEntry{act: act, after: res.state})
	child := c.child
	if !c.applyImmediately {
		c.mu.Unlock()
		return nil
	}
	c.state = res.state
	c.released = len(c.buffer)
	c.mu.Unlock()

	c.forward(child, act)
	return nil
}

// lookaheadLocked is the state after every accepted action, released or not.
func (c *RobotCursor) lookaheadLocked() State {
	if len(c.buffer) == 0 {
		return c.state
	}
	return c.buffer[len(c.buffer)-1].after
}

func (c *RobotCursor) forward(child *RobotCursor, act action.Action) {
	if child == nil {
		return
	}
	if err := child.Issue(act); err != nil {
		c.logger.Errorw("child cursor rejected action", "child", child.Name(), "action", act.String(), "error", err)
	}
}

// QueueActions freezes the actions buffered so far into a block that ProgramFromBlock will
// release. Actions issued afterwards belong to the next block.
func (c *RobotCursor) QueueActions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	last := c.released
	if n := len(c.blockEnds); n > 0 {
		last = c.blockEnds[n-1]
	}
	if len(c.buffer) > last {
		c.blockEnds = append(c.blockEnds, len(c.buffer))
	}
}

// AreActionsPending reports whether some accepted actions have not been released yet.
func (c *RobotCursor) AreActionsPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released < len(c.buffer)
}

// BlockPending reports whether a frozen block is waiting for ProgramFromBlock.
func (c *RobotCursor) BlockPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.blockEnds) > 0
}

// ProgramFromBuffer releases every pending action and renders them as a complete program.
func (c *RobotCursor) ProgramFromBuffer(opts ProgramOptions) []string {
	start, steps := c.release(func() int {
		c.blockEnds = nil
		return len(c.buffer)
	})
	return c.program(start, steps, opts)
}

// ProgramFromBlock releases the next frozen block and renders it as a complete program. It
// returns nil when no block is frozen.
func (c *RobotCursor) ProgramFromBlock(opts ProgramOptions) []string {
	start, steps := c.release(func() int {
		if len(c.blockEnds) == 0 {
			return c.released
		}
		end := c.blockEnds[0]
		c.blockEnds = c.blockEnds[1:]
		return end
	})
	if len(steps) == 0 {
		return nil
	}
	return c.program(start, steps, opts)
}

// StreamNext releases the next pending action and renders it as standalone instructions. ok is
// false when nothing is pending.
func (c *RobotCursor) StreamNext(humanComments bool) (lines []string, ok bool, err error) {
	if !c.Ready() {
		return nil, false, errors.Wrap(ErrCursorNotReady, c.name)
	}
	_, steps := c.release(func() int {
		if c.released == len(c.buffer) {
			return c.released
		}
		return c.released + 1
	})
	if len(steps) == 0 {
		return nil, false, nil
	}
	if c.compiler == nil {
		return nil, true, nil
	}
	return c.compiler.Instructions(steps[0], ProgramOptions{HumanComments: humanComments}), true, nil
}

// ApplyPending releases every pending action without rendering anything. The motion cursor uses
// this once the device reports that a program has run.
func (c *RobotCursor) ApplyPending() int {
	_, steps := c.release(func() int {
		c.blockEnds = nil
		return len(c.buffer)
	})
	return len(steps)
}

// ApplyThrough releases the pending actions among the first end accepted ones and returns how
// many it released.
func (c *RobotCursor) ApplyThrough(end int) int {
	_, steps := c.release(func() int {
		if end > len(c.buffer) {
			end = len(c.buffer)
		}
		if end < c.released {
			return c.released
		}
		return end
	})
	return len(steps)
}

// Accepted returns how many actions the cursor has accepted, released or not.
func (c *RobotCursor) Accepted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

// release applies buffer[released:end] to the state, where end is chosen by pick under the lock,
// then forwards the released actions to the child in order. It returns the state before the
// first released action and the released steps.
func (c *RobotCursor) release(pick func() int) (State, []Step) {
	c.releaseMu.Lock()
	defer c.releaseMu.Unlock()

	c.mu.Lock()
	start := c.state.Clone()
	end := pick()
	// frozen boundaries already passed by a partial release are dropped
	for len(c.blockEnds) > 0 && c.blockEnds[0] <= end {
		c.blockEnds = c.blockEnds[1:]
	}
	steps := make([]Step, 0, end-c.released)
	before := start
	for _, entry := range c.buffer[c.released:end] {
		steps = append(steps, Step{Action: entry.act, Before: before, State: entry.after})
		before = entry.after
	}
	if len(steps) > 0 {
		c.state = steps[len(steps)-1].State
		c.released = end
	}
	child := c.child
	c.mu.Unlock()

	for _, step := range steps {
		c.forward(child, step.Action)
	}
	return start, steps
}

func (c *RobotCursor) program(start State, steps []Step, opts ProgramOptions) []string {
	if c.compiler == nil {
		c.logger.Warnw("no compiler set, program not rendered", "actions", len(steps))
		return nil
	}
	return c.compiler.Program(start, steps, opts)
}

// Snapshot returns a copy of the current state, that is the state after released actions.
func (c *RobotCursor) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Committed returns every action this cursor accepted, in order.
func (c *RobotCursor) Committed() []action.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]action.Action, len(c.buffer))
	for i, entry := range c.buffer {
		out[i] = entry.act
	}
	return out
}

// Released returns the accepted actions that have been applied to the state, in order.
func (c *RobotCursor) Released() []action.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]action.Action, c.released)
	for i, entry := range c.buffer[:c.released] {
		out[i] = entry.act
	}
	return out
}

// SetIOName renames an output pin.
func (c *RobotCursor) SetIOName(name string, pin int, digital bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := c.state.AnalogNames
	if digital {
		names = c.state.DigitalNames
	}
	if pin < 0 || pin >= len(names) {
		return errors.Wrapf(ErrPinOutOfRange, "pin %d, have %d", pin, len(names))
	}
	names[pin] = name
	// pending snapshots carry the names too
	for i := c.released; i < len(c.buffer); i++ {
		if digital {
			c.buffer[i].after.DigitalNames[pin] = name
		} else {
			c.buffer[i].after.AnalogNames[pin] = name
		}
	}
	return nil
}

// LogBufferedActions logs every buffered action, marking the ones still pending.
func (c *RobotCursor) LogBufferedActions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, entry := range c.buffer {
		c.logger.Infow(entry.act.String(), "index", i, "id", entry.act.ID(), "pending", i >= c.released)
	}
}

func (c *RobotCursor) String() string {
	s := c.Snapshot()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s cursor: ", c.name)
	if s.Position != nil {
		fmt.Fprintf(&sb, "position %s mm, ", action.FormatVector(*s.Position))
	} else {
		sb.WriteString("position unknown, ")
	}
	if s.Rotation != nil {
		fmt.Fprintf(&sb, "rotation %s, ", action.FormatRotation(*s.Rotation))
	} else {
		sb.WriteString("rotation unknown, ")
	}
	if s.Joints != nil {
		fmt.Fprintf(&sb, "joints %s, ", s.Joints)
	} else {
		sb.WriteString("joints unknown, ")
	}
	fmt.Fprintf(&sb, "speed %s mm/s, precision %s mm, %s motion, %s frame",
		action.FormatNumber(s.Speed), action.FormatNumber(s.Precision), s.MotionType, s.ReferenceCS)
	if s.Tool != nil {
		fmt.Fprintf(&sb, ", tool %q", s.Tool.Name)
	}
	return sb.String()
}
