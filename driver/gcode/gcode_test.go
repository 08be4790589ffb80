package gcode

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/machina/config"
	"go.viam.com/machina/driver"
	"go.viam.com/machina/logging"
	"go.viam.com/machina/serial"
	"go.viam.com/machina/spatialmath"
)

// fakePort acknowledges every line with "ok" unless respond says otherwise.
type fakePort struct {
	mu      sync.Mutex
	path    string
	opts    serial.Options
	written []string
	out     []byte
	closed  bool
	respond func(line string) []string
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("port closed")
	}
	for _, line := range strings.Split(strings.TrimRight(string(b), "\n"), "\n") {
		p.written = append(p.written, line)
		resp := []string{"ok"}
		if p.respond != nil {
			resp = p.respond(line)
		}
		for _, r := range resp {
			p.out = append(p.out, r+"\n"...)
		}
	}
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if len(p.out) == 0 {
		p.mu.Unlock()
		// what a serial read timeout looks like
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	defer p.mu.Unlock()
	n := copy(b, p.out)
	p.out = p.out[n:]
	return n, nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) Written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.written...)
}

func useFakePort(t *testing.T, port *fakePort) {
	t.Helper()
	orig := serial.Open
	serial.Open = func(devicePath string, options serial.Options) (io.ReadWriteCloser, error) {
		if devicePath == "" {
			return nil, errors.New("serial device path is empty")
		}
		port.path = devicePath
		port.opts = options
		return port, nil
	}
	t.Cleanup(func() { serial.Open = orig })
}

func newConnected(t *testing.T, port *fakePort, attrs config.AttributeMap) *Driver {
	t.Helper()
	useFakePort(t, port)
	d, err := NewDriver(attrs, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.ConnectToDevice(context.Background(), ""), test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, d.Close(context.Background()), test.ShouldBeNil)
	})
	return d
}

type sliceSource struct {
	actions [][]string
}

func (s *sliceSource) StreamNext(bool) ([]string, bool, error) {
	if len(s.actions) == 0 {
		return nil, false, nil
	}
	next := s.actions[0]
	s.actions = s.actions[1:]
	return next, true, nil
}

func TestRegistered(t *testing.T) {
	for _, brand := range []config.Brand{config.BrandZMorph, config.BrandMarlin} {
		d, err := driver.New(brand, config.AttributeMap{"port": "/dev/ttyUSB0"}, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, d, test.ShouldHaveSameTypeAs, &Driver{})
	}
	_, err := driver.New(config.BrandMarlin, config.AttributeMap{"baud_rate": -1}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConnect(t *testing.T) {
	port := &fakePort{}
	d := newConnected(t, port, config.AttributeMap{"port": "/dev/ttyACM0", "baud_rate": 250000})

	test.That(t, d.IsConnected(), test.ShouldBeTrue)
	test.That(t, d.IP(), test.ShouldEqual, "/dev/ttyACM0")
	test.That(t, port.opts.BaudRate, test.ShouldEqual, 250000)
	test.That(t, port.opts.ReadTimeout, test.ShouldEqual, 100*time.Millisecond)
	test.That(t, port.Written(), test.ShouldResemble, []string{"M110 N0"})
	test.That(t, d.ConnectToDevice(context.Background(), ""), test.ShouldNotBeNil)

	test.That(t, d.DisconnectFromDevice(context.Background()), test.ShouldBeNil)
	test.That(t, d.IsConnected(), test.ShouldBeFalse)
	test.That(t, port.closed, test.ShouldBeTrue)
}

func TestConnectNoAnswer(t *testing.T) {
	port := &fakePort{respond: func(string) []string { return nil }}
	useFakePort(t, port)
	d, err := NewDriver(config.AttributeMap{"port": "/dev/ttyACM0", "ok_timeout_ms": 20}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	err = d.ConnectToDevice(context.Background(), "")
	test.That(t, errors.Is(err, ErrOKTimeout), test.ShouldBeTrue)
	test.That(t, d.IsConnected(), test.ShouldBeFalse)
	test.That(t, port.closed, test.ShouldBeTrue)

	_, err = NewDriver(nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
}

func TestPose(t *testing.T) {
	port := &fakePort{respond: func(line string) []string {
		if line == "M114" {
			return []string{"X:10.00 Y:2.50 Z:5.00 E:0.00 Count X:800 Y:0 Z:2000", "ok"}
		}
		return []string{"ok"}
	}}
	d := newConnected(t, port, config.AttributeMap{"port": "/dev/ttyACM0"})
	ctx := context.Background()

	pos, err := d.CurrentPosition(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldResemble, r3.Vector{X: 10, Y: 2.5, Z: 5})

	rot, err := d.CurrentRotation(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rot, test.ShouldResemble, spatialmath.FlippedAroundY)

	_, err = d.CurrentJoints(ctx)
	test.That(t, errors.Is(err, driver.ErrNotSupported), test.ShouldBeTrue)
}

func TestParsePosition(t *testing.T) {
	pos, ok := parsePosition("X:1.5 Y:-2 Z:300.25 E:12")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pos, test.ShouldResemble, r3.Vector{X: 1.5, Y: -2, Z: 300.25})

	_, ok = parsePosition("T:200.0 /200.0 B:60.0 /60.0")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestFirmwareResponses(t *testing.T) {
	port := &fakePort{respond: func(line string) []string {
		switch line {
		case "G28":
			return []string{"echo:busy: processing", "busy: processing", "ok"}
		case "M999":
			return []string{"Error:Printer halted. kill() called!"}
		}
		return []string{"ok"}
	}}
	d := newConnected(t, port, config.AttributeMap{"port": "/dev/ttyACM0"})
	ctx := context.Background()

	resp, err := d.sendLine(ctx, "G28 ; home")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp, test.ShouldBeEmpty)

	_, err = d.sendLine(ctx, "M999")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Printer halted")

	// comments and blank lines are never sent
	resp, err = d.sendLine(ctx, "; just a comment")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp, test.ShouldBeNil)
	test.That(t, port.Written(), test.ShouldResemble, []string{"M110 N0", "G28", "M999"})
}

func TestStreaming(t *testing.T) {
	port := &fakePort{}
	d := newConnected(t, port, config.AttributeMap{"port": "/dev/ttyACM0", "lines_per_second": 1000})
	ctx := context.Background()

	test.That(t, d.TickStreamQueue(ctx, false), test.ShouldNotBeNil)
	d.LinkWriteCursor(&sliceSource{actions: [][]string{{"G28"}, {"G1 X1 Y0 Z0 F1200", "; note"}, {"M84"}}})
	test.That(t, d.TickStreamQueue(ctx, false), test.ShouldBeNil)
	test.That(t, port.Written(), test.ShouldResemble, []string{"M110 N0", "G28"})
	test.That(t, d.TickStreamQueue(ctx, true), test.ShouldBeNil)
	test.That(t, port.Written(), test.ShouldResemble, []string{"M110 N0", "G28", "G1 X1 Y0 Z0 F1200", "M84"})
}

func TestProgramRun(t *testing.T) {
	port := &fakePort{}
	d := newConnected(t, port, config.AttributeMap{"port": "/dev/ttyACM0"})
	ctx := context.Background()

	completed := atomic.NewBool(false)
	d.SetCompletionCallback(func() { completed.Store(true) })

	test.That(t, d.StartProgramExecution(ctx), test.ShouldNotBeNil)
	test.That(t, d.LoadProgramToController(ctx, []string{"G21", "G90", "G1 X5 Y5 Z5 F600"}), test.ShouldBeNil)
	test.That(t, d.StartProgramExecution(ctx), test.ShouldBeNil)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, completed.Load(), test.ShouldBeTrue)
	})
	test.That(t, d.IsRunning(), test.ShouldBeFalse)
	test.That(t, port.Written(), test.ShouldResemble, []string{"M110 N0", "G21", "G90", "G1 X5 Y5 Z5 F600"})
}

func TestStopImmediately(t *testing.T) {
	// G4 is never acknowledged, so the program hangs there until stopped
	port := &fakePort{respond: func(line string) []string {
		if strings.HasPrefix(line, "G4") {
			return nil
		}
		return []string{"ok"}
	}}
	d := newConnected(t, port, config.AttributeMap{"port": "/dev/ttyACM0"})
	ctx := context.Background()
	completed := atomic.NewBool(false)
	d.SetCompletionCallback(func() { completed.Store(true) })

	test.That(t, d.LoadProgramToController(ctx, []string{"G28", "G4 P100000", "M84"}), test.ShouldBeNil)
	test.That(t, d.StartProgramExecution(ctx), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, port.Written(), test.ShouldContain, "G4 P100000")
	})
	test.That(t, d.IsRunning(), test.ShouldBeTrue)
	test.That(t, d.LoadProgramToController(ctx, []string{"G28"}), test.ShouldNotBeNil)

	test.That(t, d.StopProgramExecution(ctx, true), test.ShouldBeNil)
	test.That(t, d.IsRunning(), test.ShouldBeFalse)
	test.That(t, completed.Load(), test.ShouldBeFalse)
	written := port.Written()
	test.That(t, written[len(written)-1], test.ShouldEqual, "M112")
	test.That(t, written, test.ShouldNotContain, "M84")
}

func TestLoopUntilStopped(t *testing.T) {
	port := &fakePort{}
	d := newConnected(t, port, config.AttributeMap{"port": "/dev/ttyACM0"})
	ctx := context.Background()
	test.That(t, d.SetRunMode(config.Loop), test.ShouldBeNil)

	test.That(t, d.LoadProgramToController(ctx, []string{"G1 X1", "G1 X0"}), test.ShouldBeNil)
	test.That(t, d.StartProgramExecution(ctx), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(port.Written()), test.ShouldBeGreaterThan, 6)
	})
	test.That(t, d.StopProgramExecution(ctx, false), test.ShouldBeNil)
	test.That(t, d.IsRunning(), test.ShouldBeFalse)
	test.That(t, port.Written(), test.ShouldNotContain, "M112")
}
