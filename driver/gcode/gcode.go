// Package gcode implements a driver for extruder machines that take G-code over a serial port,
// such as Marlin based printers. Every line is sent and acknowledged with "ok" before the next.
package gcode

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"golang.org/x/time/rate"

	"go.viam.com/machina/config"
	"go.viam.com/machina/driver"
	"go.viam.com/machina/logging"
	"go.viam.com/machina/operation"
	"go.viam.com/machina/serial"
	"go.viam.com/machina/spatialmath"
)

const (
	defaultBaudRate      = 115200
	defaultReadTimeoutMs = 100
	defaultOKTimeoutMs   = 30000
)

// ErrOKTimeout is returned when the firmware does not acknowledge a line in time.
var ErrOKTimeout = errors.New("timed out waiting for ok")

func init() {
	for _, brand := range []config.Brand{config.BrandZMorph, config.BrandMarlin} {
		driver.Register(brand, func(attrs config.AttributeMap, logger logging.Logger) (driver.Driver, error) {
			return NewDriver(attrs, logger)
		})
	}
}

// Config is the attributes of a G-code driver.
type Config struct {
	Port          string `json:"port"`
	BaudRate      int    `json:"baud_rate,omitempty"`
	ReadTimeoutMs int    `json:"read_timeout_ms,omitempty"`
	// OKTimeoutMs bounds the wait for each acknowledgement. "busy" keepalives restart it.
	OKTimeoutMs int `json:"ok_timeout_ms,omitempty"`
	// LinesPerSecond throttles sending when positive.
	LinesPerSecond float64 `json:"lines_per_second,omitempty"`
}

// Validate fills in defaults and checks values.
func (conf *Config) Validate() error {
	if conf.BaudRate == 0 {
		conf.BaudRate = defaultBaudRate
	}
	if conf.ReadTimeoutMs == 0 {
		conf.ReadTimeoutMs = defaultReadTimeoutMs
	}
	if conf.OKTimeoutMs == 0 {
		conf.OKTimeoutMs = defaultOKTimeoutMs
	}
	if conf.BaudRate < 0 || conf.ReadTimeoutMs < 0 || conf.OKTimeoutMs < 0 || conf.LinesPerSecond < 0 {
		return errors.New("baud_rate, read_timeout_ms, ok_timeout_ms and lines_per_second cannot be negative")
	}
	return nil
}

// Driver streams G-code to a serial device.
type Driver struct {
	logger  logging.Logger
	conf    Config
	limiter *rate.Limiter

	connected atomic.Bool
	running   atomic.Bool
	job       operation.Exclusive
	workers   sync.WaitGroup

	// lineMu serializes line exchanges with the firmware.
	lineMu  sync.Mutex
	pending []byte

	mu         sync.Mutex
	port       io.ReadWriteCloser
	address    string
	program    []string
	runMode    config.RunMode
	source     driver.StreamSource
	onComplete func()
}

// NewDriver returns a disconnected driver.
func NewDriver(attrs config.AttributeMap, logger logging.Logger) (*Driver, error) {
	conf, err := config.TransformAttributeMap[*Config](attrs)
	if err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{
		logger:  logger.Sublogger("gcode"),
		conf:    *conf,
		runMode: config.Once,
	}
	if conf.LinesPerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(conf.LinesPerSecond), 1)
	}
	return d, nil
}

// ConnectToDevice opens the serial port at address, or the configured port when empty.
func (d *Driver) ConnectToDevice(ctx context.Context, address string) error {
	if d.IsConnected() {
		return errors.New("already connected")
	}
	if address == "" {
		address = d.conf.Port
	}
	opts := serial.DefaultOptions()
	opts.BaudRate = d.conf.BaudRate
	opts.ReadTimeout = time.Duration(d.conf.ReadTimeoutMs) * time.Millisecond
	port, err := serial.Open(address, opts)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.port = port
	d.address = address
	d.mu.Unlock()
	d.lineMu.Lock()
	d.pending = nil
	d.lineMu.Unlock()
	d.connected.Store(true)

	// reset the line numbering, which also checks the firmware answers
	if _, err := d.sendLine(ctx, "M110 N0"); err != nil {
		return multierr.Combine(errors.Wrap(err, "firmware did not answer"), d.closePort())
	}
	d.logger.CInfof(ctx, "connected to %s", address)
	return nil
}

// DisconnectFromDevice stops streaming and closes the port.
func (d *Driver) DisconnectFromDevice(ctx context.Context) error {
	if !d.IsConnected() {
		return nil
	}
	d.stopWorker(ctx)
	return d.closePort()
}

func (d *Driver) closePort() error {
	d.connected.Store(false)
	d.mu.Lock()
	port := d.port
	d.port = nil
	d.mu.Unlock()
	if port == nil {
		return nil
	}
	return port.Close()
}

// IsConnected reports whether the port is open.
func (d *Driver) IsConnected() bool {
	return d.connected.Load()
}

// IP returns the serial port path.
func (d *Driver) IP() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.address
}

// CurrentPosition queries the position with M114.
func (d *Driver) CurrentPosition(ctx context.Context) (r3.Vector, error) {
	resp, err := d.sendLine(ctx, "M114")
	if err != nil {
		return r3.Vector{}, err
	}
	for _, line := range resp {
		if pos, ok := parsePosition(line); ok {
			return pos, nil
		}
	}
	return r3.Vector{}, errors.Errorf("no position in M114 response %q", resp)
}

// CurrentRotation returns the fixed rotation of a cartesian printer head, pointing down.
func (d *Driver) CurrentRotation(ctx context.Context) (spatialmath.Rotation, error) {
	if !d.IsConnected() {
		return spatialmath.Rotation{}, driver.ErrNotConnected
	}
	return spatialmath.FlippedAroundY, nil
}

// CurrentJoints is not supported: cartesian machines have no joint angles.
func (d *Driver) CurrentJoints(ctx context.Context) (spatialmath.Joints, error) {
	return spatialmath.Joints{}, driver.ErrNotSupported
}

// LoadProgramToController keeps the program until it is started.
func (d *Driver) LoadProgramToController(ctx context.Context, lines []string) error {
	if !d.IsConnected() {
		return driver.ErrNotConnected
	}
	if d.IsRunning() {
		return errors.New("cannot load a program while one is running")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.program = append([]string(nil), lines...)
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

// StartProgramExecution streams the loaded program in the background.
func (d *Driver) StartProgramExecution(ctx context.Context) error {
	if !d.IsConnected() {
		return driver.ErrNotConnected
	}
	d.mu.Lock()
	program := d.program
	loop := d.runMode == config.Loop
	d.mu.Unlock()
	if program == nil {
		return errors.New("no program loaded")
	}
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("a program is already running")
	}

	runCtx, done := d.job.Begin(context.Background())
	d.workers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer d.workers.Done()
		defer done()
		d.runProgram(runCtx, program, loop)
	})
	return nil
}

func (d *Driver) runProgram(ctx context.Context, program []string, loop bool) {
	for {
		for i, line := range program {
			if err := ctx.Err(); err != nil {
				d.running.Store(false)
				return
			}
			if _, err := d.sendLine(ctx, line); err != nil {
				d.running.Store(false)
				if !errors.Is(err, context.Canceled) {
					d.logger.Errorw("program stopped", "line", i+1, "error", err)
				}
				return
			}
		}
		if !loop {
			break
		}
	}

	d.running.Store(false)
	d.mu.Lock()
	onComplete := d.onComplete
	d.mu.Unlock()
	if onComplete != nil {
		onComplete()
	}
}

// StopProgramExecution stops streaming. When immediate, M112 also halts the machine, which then
// needs a reset.
func (d *Driver) StopProgramExecution(ctx context.Context, immediate bool) error {
	if !d.IsConnected() {
		return driver.ErrNotConnected
	}
	d.stopWorker(ctx)
	if !immediate {
		return nil
	}
	d.lineMu.Lock()
	defer d.lineMu.Unlock()
	return d.writeLineInLock("M112")
}

func (d *Driver) stopWorker(ctx context.Context) {
	d.job.Preempt(ctx)
	d.workers.Wait()
	d.running.Store(false)
}

// IsRunning reports whether a program is being streamed.
func (d *Driver) IsRunning() bool {
	return d.running.Load()
}

// SetRunMode sets whether started programs repeat.
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

// TickStreamQueue sends pending instructions from the linked source.
func (d *Driver) TickStreamQueue(ctx context.Context, drain bool) error {
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
		for _, line := range lines {
			if _, err := d.sendLine(ctx, line); err != nil {
				return err
			}
		}
		if !drain {
			return nil
		}
	}
}

// SetCompletionCallback sets the function called when a program was fully sent.
func (d *Driver) SetCompletionCallback(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onComplete = f
}

// Close disconnects.
func (d *Driver) Close(ctx context.Context) error {
	return d.DisconnectFromDevice(ctx)
}

// sendLine sends one line and waits for its acknowledgement, returning the lines the firmware
// answered before "ok". Comments and blank lines are not sent.
func (d *Driver) sendLine(ctx context.Context, line string) ([]string, error) {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if !d.IsConnected() {
		return nil, driver.ErrNotConnected
	}
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	d.lineMu.Lock()
	defer d.lineMu.Unlock()
	if err := d.writeLineInLock(line); err != nil {
		return nil, err
	}

	okTimeout := time.Duration(d.conf.OKTimeoutMs) * time.Millisecond
	deadline := time.Now().Add(okTimeout)
	var resp []string
	for {
		got, err := d.readLineInLock(ctx, deadline)
		if err != nil {
			return resp, errors.Wrapf(err, "sending %q", line)
		}
		lower := strings.ToLower(got)
		switch {
		case got == "":
		case strings.HasPrefix(lower, "ok"):
			return resp, nil
		case strings.HasPrefix(lower, "error"), strings.HasPrefix(got, "!!"):
			return resp, errors.Errorf("firmware rejected %q: %s", line, got)
		case strings.HasPrefix(lower, "busy:"), strings.HasPrefix(lower, "echo:busy"):
			deadline = time.Now().Add(okTimeout)
		default:
			resp = append(resp, got)
		}
	}
}

func (d *Driver) writeLineInLock(line string) error {
	d.mu.Lock()
	port := d.port
	d.mu.Unlock()
	if port == nil {
		return driver.ErrNotConnected
	}
	d.logger.Debugw("send", "line", line)
	_, err := port.Write([]byte(line + "\n"))
	return err
}

// readLineInLock returns the next line from the port. Reads time out on their own, so the
// context and the deadline are checked between reads.
func (d *Driver) readLineInLock(ctx context.Context, deadline time.Time) (string, error) {
	d.mu.Lock()
	port := d.port
	d.mu.Unlock()
	if port == nil {
		return "", driver.ErrNotConnected
	}

	buf := make([]byte, 256)
	for {
		if i := bytes.IndexByte(d.pending, '\n'); i >= 0 {
			line := string(d.pending[:i])
			d.pending = d.pending[i+1:]
			return strings.TrimSpace(line), nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", ErrOKTimeout
		}
		n, err := port.Read(buf)
		if err != nil {
			return "", err
		}
		d.pending = append(d.pending, buf[:n]...)
	}
}

// parsePosition reads the X, Y and Z values of an M114 report such as
// "X:10.00 Y:0.00 Z:5.00 E:0.00 Count X:800 Y:0 Z:2000".
func parsePosition(line string) (r3.Vector, bool) {
	var pos r3.Vector
	found := 0
	for _, field := range strings.Fields(line) {
		if field == "Count" {
			break
		}
		key, value, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		switch key {
		case "X":
			pos.X = v
		case "Y":
			pos.Y = v
		case "Z":
			pos.Z = v
		default:
			continue
		}
		found++
	}
	return pos, found == 3
}
