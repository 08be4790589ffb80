// Package fake implements a simulated controller. It accepts programs and streamed instructions,
// records them, and reports a configurable pose.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/machina/config"
	"go.viam.com/machina/driver"
	"go.viam.com/machina/logging"
	"go.viam.com/machina/spatialmath"
)

// IP is the address the simulated controller reports.
const IP = "127.0.0.1"

func init() {
	driver.Register(config.BrandUndefined, func(attrs config.AttributeMap, logger logging.Logger) (driver.Driver, error) {
		return NewDriver(attrs, logger)
	})
}

// Config is the attributes of a fake driver.
type Config struct {
	// Position is the reported TCP position in mm.
	Position []float64 `json:"position,omitempty"`
	// Orientation is the reported TCP rotation as yaw, pitch and roll in degrees. It defaults to
	// the tool pointing down.
	Orientation []float64 `json:"orientation_ypr,omitempty"`
	Joints      []float64 `json:"joints,omitempty"`
	// RunTimeMs is how long a started program runs. Zero means until FinishProgram is called.
	RunTimeMs int `json:"run_time_ms,omitempty"`
}

// Validate checks the attribute sizes.
func (conf *Config) Validate() error {
	if conf.Position != nil && len(conf.Position) != 3 {
		return errors.Errorf("position needs 3 values, got %d", len(conf.Position))
	}
	if conf.Orientation != nil && len(conf.Orientation) != 3 {
		return errors.Errorf("orientation_ypr needs 3 values, got %d", len(conf.Orientation))
	}
	if conf.Joints != nil && len(conf.Joints) != spatialmath.NumJoints {
		return errors.Errorf("joints needs %d values, got %d", spatialmath.NumJoints, len(conf.Joints))
	}
	if conf.RunTimeMs < 0 {
		return errors.New("run_time_ms cannot be negative")
	}
	return nil
}

// Driver is a simulated controller.
type Driver struct {
	logger    logging.Logger
	connected atomic.Bool
	running   atomic.Bool

	mu         sync.Mutex
	clock      clock.Clock
	runTime    time.Duration
	timer      *clock.Timer
	address    string
	position   r3.Vector
	rotation   spatialmath.Rotation
	joints     spatialmath.Joints
	runMode    config.RunMode
	program    []string
	programs   [][]string
	runs       int
	source     driver.StreamSource
	streamed   []string
	onComplete func()
}

// NewDriver returns a disconnected fake driver.
func NewDriver(attrs config.AttributeMap, logger logging.Logger) (*Driver, error) {
	conf, err := config.TransformAttributeMap[*Config](attrs)
	if err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	d := &Driver{
		logger:   logger.Sublogger("fake"),
		clock:    clock.New(),
		runTime:  time.Duration(conf.RunTimeMs) * time.Millisecond,
		rotation: spatialmath.FlippedAroundY,
		runMode:  config.Once,
	}
	if conf.Position != nil {
		d.position = r3.Vector{X: conf.Position[0], Y: conf.Position[1], Z: conf.Position[2]}
	}
	if conf.Orientation != nil {
		d.rotation = spatialmath.EulerAngles{
			Yaw: conf.Orientation[0], Pitch: conf.Orientation[1], Roll: conf.Orientation[2],
		}.Rotation()
	}
	if conf.Joints != nil {
		if d.joints, err = spatialmath.NewJoints(conf.Joints); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// SetClock replaces the clock timing simulated programs.
func (d *Driver) SetClock(c clock.Clock) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clock = c
}

// ConnectToDevice connects to the simulated controller.
func (d *Driver) ConnectToDevice(ctx context.Context, address string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if address == "" {
		address = IP
	}
	d.address = address
	d.connected.Store(true)
	d.logger.CInfof(ctx, "connected to simulated controller at %s", address)
	return nil
}

// DisconnectFromDevice stops any running program and disconnects.
func (d *Driver) DisconnectFromDevice(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopInLock()
	d.connected.Store(false)
	return nil
}

// IsConnected reports whether ConnectToDevice was called.
func (d *Driver) IsConnected() bool {
	return d.connected.Load()
}

// IP returns the connected address.
func (d *Driver) IP() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected.Load() {
		return ""
	}
	return d.address
}

// CurrentPosition returns the configured position.
func (d *Driver) CurrentPosition(ctx context.Context) (r3.Vector, error) {
	if !d.IsConnected() {
		return r3.Vector{}, driver.ErrNotConnected
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position, nil
}

// CurrentRotation returns the configured rotation.
func (d *Driver) CurrentRotation(ctx context.Context) (spatialmath.Rotation, error) {
	if !d.IsConnected() {
		return spatialmath.Rotation{}, driver.ErrNotConnected
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rotation, nil
}

// CurrentJoints returns the configured joints.
func (d *Driver) CurrentJoints(ctx context.Context) (spatialmath.Joints, error) {
	if !d.IsConnected() {
		return spatialmath.Joints{}, driver.ErrNotConnected
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.joints, nil
}

// LoadProgramToController stores the program.
func (d *Driver) LoadProgramToController(ctx context.Context, lines []string) error {
	if !d.IsConnected() {
		return driver.ErrNotConnected
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.program = append([]string(nil), lines...)
	d.programs = append(d.programs, d.program)
	d.logger.CDebugf(ctx, "loaded program of %d lines", len(lines))
	return nil
}

// LoadFileToController loads the program stored at dir/name.ext.
func (d *Driver) LoadFileToController(ctx context.Context, dir, name, ext string) error {
	lines, err := driver.ReadProgramFile(dir, name, ext)
	if err != nil {
		return err
	}
	return d.LoadProgramToController(ctx, lines)
}

// StartProgramExecution runs the loaded program.
func (d *Driver) StartProgramExecution(ctx context.Context) error {
	if !d.IsConnected() {
		return driver.ErrNotConnected
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.program == nil {
		return errors.New("no program loaded")
	}
	if d.running.Load() {
		return errors.New("a program is already running")
	}
	d.runs++
	d.running.Store(true)
	if d.runTime > 0 {
		d.timer = d.clock.AfterFunc(d.runTime, d.FinishProgram)
	}
	return nil
}

// StopProgramExecution stops the running program. The completion callback is not called.
func (d *Driver) StopProgramExecution(ctx context.Context, immediate bool) error {
	if !d.IsConnected() {
		return driver.ErrNotConnected
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopInLock()
	return nil
}

func (d *Driver) stopInLock() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.running.Store(false)
}

// FinishProgram simulates the running program reaching its end. In Loop mode the program starts
// over instead.
func (d *Driver) FinishProgram() {
	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	if d.runMode == config.Loop {
		d.runs++
		if d.runTime > 0 {
			d.timer = d.clock.AfterFunc(d.runTime, d.FinishProgram)
		}
		d.mu.Unlock()
		return
	}
	d.running.Store(false)
	onComplete := d.onComplete
	d.mu.Unlock()

	if onComplete != nil {
		onComplete()
	}
}

// IsRunning reports whether a program is running.
func (d *Driver) IsRunning() bool {
	return d.running.Load()
}

// SetRunMode sets how many times programs run.
func (d *Driver) SetRunMode(mode config.RunMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runMode = mode
	return nil
}

// LinkWriteCursor sets the source of streamed instructions.
func (d *Driver) LinkWriteCursor(src driver.StreamSource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.source = src
}

// TickStreamQueue pulls instructions from the linked source and records them as sent.
func (d *Driver) TickStreamQueue(ctx context.Context, drain bool) error {
	if !d.IsConnected() {
		return driver.ErrNotConnected
	}
	d.mu.Lock()
	src := d.source
	d.mu.Unlock()
	if src == nil {
		return errors.New("no write cursor linked")
	}

	for {
		lines, ok, err := src.StreamNext(false)
		if err != nil || !ok {
			return err
		}
		d.mu.Lock()
		d.streamed = append(d.streamed, lines...)
		d.mu.Unlock()
		if !drain {
			return nil
		}
	}
}

// SetCompletionCallback sets the function called when a program finishes.
func (d *Driver) SetCompletionCallback(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onComplete = f
}

// Programs returns every loaded program, oldest first.
func (d *Driver) Programs() [][]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]string(nil), d.programs...)
}

// Runs returns how many times a program was started.
func (d *Driver) Runs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runs
}

// StreamedLines returns every streamed instruction line.
func (d *Driver) StreamedLines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.streamed...)
}

// Close disconnects.
func (d *Driver) Close(ctx context.Context) error {
	return d.DisconnectFromDevice(ctx)
}
