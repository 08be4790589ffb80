// Package control is the entry point for programming a robot. A Control owns three chained
// cursors: the virtual cursor takes every request, the write cursor follows what has been
// compiled or streamed to the device, and the motion cursor follows what the device executed.
// Depending on the control mode, actions are exported as a program (Offline), compiled and run
// block by block on a controller (Execute), or streamed instruction by instruction (Stream).
package control

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/machina/compiler"
	"go.viam.com/machina/config"
	"go.viam.com/machina/cursor"
	"go.viam.com/machina/driver"
	"go.viam.com/machina/logging"
	"go.viam.com/machina/operation"
	"go.viam.com/machina/spatialmath"
	"go.viam.com/machina/utils"
)

// Cursor names, as they show in logs and debug tables.
const (
	VirtualCursorName = "virtual"
	WriteCursorName   = "write"
	MotionCursorName  = "motion"
)

const idlePollInterval = 10 * time.Millisecond

// Control orchestrates the cursors and the device driver.
type Control struct {
	logger   logging.Logger
	conf     config.Config
	compiler cursor.Compiler
	safety   cursor.Safety
	settings cursor.Settings

	// execMu is held by the execute worker for a whole block, and by mode changes so the driver
	// and cursors are never swapped under a running worker. Take it before mu.
	execMu sync.Mutex

	mu                 sync.RWMutex
	controlMode        config.ControlMode
	runMode            config.RunMode
	drv                driver.Driver
	virtualCursor      *cursor.RobotCursor
	writeCursor        *cursor.RobotCursor
	motionCursor       *cursor.RobotCursor
	cursorsInitialized bool
	workerErr          error
	// startedBlocks holds, per block started on the device and not yet completed, how many
	// actions the motion cursor had accepted once the block was uploaded.
	startedBlocks []int

	workerActive atomic.Bool
	ops          *operation.Tracker
	idle         operation.Exclusive

	// streamErr is the send error that stalled the stream queue, nil while it flows.
	streamErr atomic.Error

	cancelCtx               context.Context
	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
}

// New returns a Control for conf, in the configured control mode. A nil conf means the defaults.
func New(conf *config.Config, logger logging.Logger) (*Control, error) {
	if conf == nil {
		conf = config.Default()
	}
	if err := conf.Validate(""); err != nil {
		return nil, err
	}
	comp, err := compiler.ForBrand(conf.Brand)
	if err != nil {
		return nil, err
	}
	settings, err := conf.Defaults.Settings()
	if err != nil {
		return nil, err
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	c := &Control{
		logger:    logger,
		conf:      *conf,
		compiler:  comp,
		safety:    conf.Safety.CursorSafety(),
		settings:  settings,
		runMode:   conf.RunMode,
		ops:       operation.NewTracker(logger),
		cancelCtx: cancelCtx,
		cancel:    cancel,
	}
	if err := c.SetControlMode(context.Background(), conf.ControlMode); err != nil {
		cancel()
		return nil, err
	}
	return c, nil
}

// Reset drops buffered actions and the driver, and goes back to the configured control and run
// modes.
func (c *Control) Reset(ctx context.Context) error {
	c.mu.Lock()
	c.runMode = c.conf.RunMode
	c.mu.Unlock()
	return c.SetControlMode(ctx, c.conf.ControlMode)
}

// ControlMode returns the current control mode.
func (c *Control) ControlMode() config.ControlMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.controlMode
}

// RunMode returns the current run mode.
func (c *Control) RunMode() config.RunMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runMode
}

// SetControlMode switches modes. The cursor chain is rebuilt and any buffered action is
// dropped. Offline initializes the cursors to the origin with the tool pointing down; Execute and
// Stream create the driver of the configured brand and wait for ConnectToDevice to know the
// robot pose.
func (c *Control) SetControlMode(ctx context.Context, mode config.ControlMode) error {
	mode, err := config.ParseControlMode(string(mode))
	if err != nil {
		return err
	}

	var newDriver driver.Driver
	if mode != config.Offline {
		if newDriver, err = driver.New(c.conf.Brand, c.conf.Driver, c.logger); err != nil {
			return err
		}
		if notifier, ok := newDriver.(driver.CompletionNotifier); ok {
			notifier.SetCompletionCallback(c.onProgramComplete)
		}
	}

	c.execMu.Lock()
	c.mu.Lock()
	oldDriver := c.drv
	c.drv = newDriver
	c.controlMode = mode
	c.workerErr = nil
	c.buildChainLocked()
	switch mode {
	case config.Offline:
		origin := r3.Vector{}
		err = c.initializeCursorsLocked(&origin, &spatialmath.FlippedAroundY, nil)
	default:
		err = newDriver.SetRunMode(c.runMode)
	}
	c.mu.Unlock()
	c.execMu.Unlock()

	// closed outside the locks: a closing driver may still report completion
	if oldDriver != nil {
		err = multierr.Combine(err, oldDriver.Close(ctx))
	}
	c.logger.CInfof(ctx, "control mode set to %s", mode)
	return err
}

// buildChainLocked replaces the cursors with a fresh, uninitialized virtual, write and motion
// chain.
func (c *Control) buildChainLocked() {
	if c.writeCursor != nil && c.writeCursor.AreActionsPending() {
		c.logger.Warn("dropping actions that were not executed")
	}
	newCursor := func(name string, immediate bool, comp cursor.Compiler) *cursor.RobotCursor {
		return cursor.New(cursor.Config{
			Name:             name,
			ApplyImmediately: immediate,
			Safety:           c.safety,
			Compiler:         comp,
			DigitalOutputs:   c.conf.IO.DigitalOutputs,
			AnalogOutputs:    c.conf.IO.AnalogOutputs,
		}, c.logger)
	}
	c.virtualCursor = newCursor(VirtualCursorName, true, nil)
	c.writeCursor = newCursor(WriteCursorName, false, c.compiler)
	c.motionCursor = newCursor(MotionCursorName, false, nil)
	c.virtualCursor.SetChild(c.writeCursor)
	c.writeCursor.SetChild(c.motionCursor)
	c.cursorsInitialized = false
	c.startedBlocks = nil
	c.streamErr.Store(nil)

	if c.controlMode == config.Stream && c.drv != nil {
		c.drv.LinkWriteCursor(c.writeCursor)
	}
}

func (c *Control) initializeCursorsLocked(
	position *r3.Vector,
	rotation *spatialmath.Rotation,
	joints *spatialmath.Joints,
) error {
	for _, cur := range []*cursor.RobotCursor{c.virtualCursor, c.writeCursor, c.motionCursor} {
		if err := cur.Initialize(position, rotation, joints, c.settings); err != nil {
			return err
		}
	}
	c.cursorsInitialized = true
	return nil
}

// InitializeRobotCursors rebuilds the cursor chain at the given pose. Any of the arguments may
// be nil when unknown.
func (c *Control) InitializeRobotCursors(
	position *r3.Vector,
	rotation *spatialmath.Rotation,
	joints *spatialmath.Joints,
) error {
	c.execMu.Lock()
	defer c.execMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buildChainLocked()
	return c.initializeCursorsLocked(position, rotation, joints)
}

// SetRunMode sets whether programs run once or loop. It has no effect in Offline mode.
func (c *Control) SetRunMode(mode config.RunMode) error {
	mode, err := config.ParseRunMode(string(mode))
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runMode = mode
	if c.controlMode == config.Offline || c.drv == nil {
		c.logger.Warnw("run mode has no effect in offline mode", "run_mode", mode)
		return nil
	}
	return c.drv.SetRunMode(mode)
}

// device returns the driver, or an error in Offline mode.
func (c *Control) device(op string) (driver.Driver, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.controlMode == config.Offline || c.drv == nil {
		return nil, wrongMode(op, c.controlMode)
	}
	return c.drv, nil
}

// ConnectToDevice connects the driver and initializes the cursors from the pose the device
// reports. Parts of the pose the device cannot report stay unknown.
func (c *Control) ConnectToDevice(ctx context.Context, address string) error {
	drv, err := c.device("connect")
	if err != nil {
		return err
	}
	if err := drv.ConnectToDevice(ctx, address); err != nil {
		return err
	}

	var (
		position *r3.Vector
		rotation *spatialmath.Rotation
		joints   *spatialmath.Joints
	)
	if p, err := drv.CurrentPosition(ctx); err == nil {
		position = &p
	} else {
		c.logger.CDebugw(ctx, "device position unknown", "error", err)
	}
	if r, err := drv.CurrentRotation(ctx); err == nil {
		rotation = &r
	} else {
		c.logger.CDebugw(ctx, "device rotation unknown", "error", err)
	}
	if j, err := drv.CurrentJoints(ctx); err == nil {
		joints = &j
	} else {
		c.logger.CDebugw(ctx, "device joints unknown", "error", err)
	}

	if err := c.InitializeRobotCursors(position, rotation, joints); err != nil {
		return err
	}
	c.logger.CInfof(ctx, "connected to device at %s", drv.IP())
	return nil
}

// DisconnectFromDevice disconnects the driver. A running program is stopped right away first
// when the safety section asks for it.
func (c *Control) DisconnectFromDevice(ctx context.Context) error {
	drv, err := c.device("disconnect")
	if err != nil {
		return err
	}
	if c.conf.Safety.StopImmediateOnDisconnect && drv.IsConnected() && drv.IsRunning() {
		if err := drv.StopProgramExecution(ctx, true); err != nil {
			c.logger.CDebugw(ctx, "cannot stop program before disconnecting", "error", err)
		}
	}
	return drv.DisconnectFromDevice(ctx)
}

// IsConnectedToDevice reports whether a driver is connected. It is always false in Offline mode.
func (c *Control) IsConnectedToDevice() bool {
	drv, err := c.device("is connected")
	return err == nil && drv.IsConnected()
}

// ControllerIP returns the address of the connected device.
func (c *Control) ControllerIP() (string, error) {
	drv, err := c.device("controller ip")
	if err != nil {
		return "", err
	}
	if !drv.IsConnected() {
		return "", driver.ErrNotConnected
	}
	return drv.IP(), nil
}

// LoadProgramToDevice loads lines as the program of the device, replacing the loaded one.
func (c *Control) LoadProgramToDevice(ctx context.Context, lines []string) error {
	drv, err := c.device("load program")
	if err != nil {
		return err
	}
	return drv.LoadProgramToController(ctx, lines)
}

// LoadFileToDevice loads the program stored at path.
func (c *Control) LoadFileToDevice(ctx context.Context, path string) error {
	drv, err := c.device("load file")
	if err != nil {
		return err
	}
	dir, name, ext := splitProgramPath(path)
	if name == "" {
		return errors.Errorf("%q is not a program file", path)
	}
	return drv.LoadFileToController(ctx, dir, name, ext)
}

// StartProgramOnDevice runs the loaded program.
func (c *Control) StartProgramOnDevice(ctx context.Context) error {
	drv, err := c.device("start program")
	if err != nil {
		return err
	}
	return drv.StartProgramExecution(ctx)
}

// StopProgramOnDevice stops the running program after the current instruction, or right away
// when immediate is set. It does not wait for the execute worker.
func (c *Control) StopProgramOnDevice(ctx context.Context, immediate bool) error {
	drv, err := c.device("stop program")
	if err != nil {
		return err
	}
	if err := drv.StopProgramExecution(ctx, immediate); err != nil {
		return err
	}
	// a stopped block never completes
	c.mu.Lock()
	c.startedBlocks = nil
	c.mu.Unlock()
	return nil
}

// Execute freezes the actions issued so far into a block and runs it on the device as soon as
// the device is idle. Later blocks run when the previous program completes.
func (c *Control) Execute() error {
	c.mu.RLock()
	mode, ready, write := c.controlMode, c.cursorsInitialized, c.writeCursor
	c.mu.RUnlock()
	if mode != config.Execute {
		return wrongMode("execute", mode)
	}
	if !ready {
		return ErrCursorsNotInitialized
	}
	write.QueueActions()
	c.TickWriteCursor()
	return nil
}

// TickWriteCursor starts the execute worker when the device is idle, the cursors are
// initialized, a block is waiting and no worker is alive. Otherwise it does nothing.
func (c *Control) TickWriteCursor() {
	if c.cancelCtx.Err() != nil {
		return
	}
	c.mu.RLock()
	mode, drv, ready, write := c.controlMode, c.drv, c.cursorsInitialized, c.writeCursor
	c.mu.RUnlock()
	if mode != config.Execute || drv == nil || !ready {
		return
	}
	if drv.IsRunning() || !write.BlockPending() {
		return
	}
	if !c.workerActive.CompareAndSwap(false, true) {
		return
	}

	c.activeBackgroundWorkers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer c.activeBackgroundWorkers.Done()
		func() {
			defer c.workerActive.Store(false)
			c.executeBlock()
		}()
		// the program may have completed before the flag was cleared
		c.TickWriteCursor()
	})
}

// executeBlock compiles the next frozen block, uploads it and starts it.
func (c *Control) executeBlock() {
	c.execMu.Lock()
	defer c.execMu.Unlock()

	c.mu.RLock()
	drv, write, motion, opts := c.drv, c.writeCursor, c.motionCursor, c.conf.Program.ProgramOptions()
	c.mu.RUnlock()
	if drv == nil {
		return
	}

	ctx, done := c.ops.Start(c.cancelCtx, "execute_block")
	defer done()

	lines := write.ProgramFromBlock(opts)
	if len(lines) == 0 {
		return
	}
	c.logger.CDebugf(ctx, "uploading block of %d lines", len(lines))
	err := drv.LoadProgramToController(ctx, lines)
	if err == nil {
		// recorded before starting since the device may complete the block right away
		c.mu.Lock()
		c.startedBlocks = append(c.startedBlocks, motion.Accepted())
		c.mu.Unlock()
		if err = drv.StartProgramExecution(ctx); err != nil {
			c.mu.Lock()
			if n := len(c.startedBlocks); n > 0 {
				c.startedBlocks = c.startedBlocks[:n-1]
			}
			c.mu.Unlock()
		}
	}
	if err != nil {
		c.logger.Errorw("failed to execute block", "error", err)
		c.mu.Lock()
		c.workerErr = multierr.Combine(c.workerErr, err)
		c.mu.Unlock()
	}
}

// onProgramComplete is called by the driver once a started program has run. Only the actions of
// the oldest started block are released to the motion cursor: a later block may already be
// uploaded when the callback runs.
func (c *Control) onProgramComplete() {
	c.mu.Lock()
	motion := c.motionCursor
	end, ok := -1, len(c.startedBlocks) > 0
	if ok {
		end = c.startedBlocks[0]
		c.startedBlocks = c.startedBlocks[1:]
	}
	c.mu.Unlock()
	if ok {
		if n := motion.ApplyThrough(end); n > 0 {
			c.logger.Debugw("program completed", "actions", n)
		}
	}
	c.TickWriteCursor()
}

// WaitUntilIdle waits until every frozen block has been uploaded and the device stopped
// running. It returns the errors the execute worker ran into since the last call.
func (c *Control) WaitUntilIdle(ctx context.Context) error {
	err := c.idle.PollUntil(ctx, idlePollInterval, func(ctx context.Context) (bool, error) {
		c.mu.RLock()
		drv, write := c.drv, c.writeCursor
		c.mu.RUnlock()
		if c.workerActive.Load() || write.BlockPending() {
			return false, nil
		}
		return drv == nil || !drv.IsRunning(), nil
	})
	c.mu.Lock()
	err = multierr.Combine(err, c.workerErr)
	c.workerErr = nil
	c.mu.Unlock()
	return err
}

// CurrentOps returns the operations currently running, such as block uploads.
func (c *Control) CurrentOps() []*operation.Operation {
	return c.ops.Running()
}

// Export releases every buffered action and renders them as one program. Only available in
// Offline mode.
func (c *Control) Export(inlineTargets, humanComments bool) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.controlMode != config.Offline {
		return nil, wrongMode("export", c.controlMode)
	}
	if !c.cursorsInitialized {
		return nil, ErrCursorsNotInitialized
	}
	opts := c.conf.Program.ProgramOptions()
	opts.InlineTargets = inlineTargets
	opts.HumanComments = humanComments
	return c.writeCursor.ProgramFromBuffer(opts), nil
}

// ExportToFile exports the program to path. Vendor programs are written as ASCII.
func (c *Control) ExportToFile(path string, inlineTargets, humanComments bool) error {
	lines, err := c.Export(inlineTargets, humanComments)
	if err != nil {
		return err
	}
	return utils.SaveLinesToFile(path, lines, c.conf.Brand != config.BrandUndefined)
}

// SetIOName names an output pin in programs and debug output.
func (c *Control) SetIOName(name string, pin int, digital bool) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.virtualCursor.SetIOName(name, pin, digital); err != nil {
		return err
	}
	return c.writeCursor.SetIOName(name, pin, digital)
}

// Close stops the execute worker and closes the driver.
func (c *Control) Close(ctx context.Context) error {
	c.ops.CancelAll()
	c.cancel()
	c.activeBackgroundWorkers.Wait()

	c.mu.Lock()
	drv := c.drv
	c.drv = nil
	c.mu.Unlock()
	if drv == nil {
		return nil
	}
	return drv.Close(ctx)
}
