// Package serial opens the serial ports that extruder style controllers are attached to.
package serial

import (
	"io"
	"sort"
	"time"

	"github.com/pkg/errors"
	ser "go.bug.st/serial"
	"go.uber.org/multierr"
)

// Options to be passed to Open(), closely mirrors go.bug.st/serial.Mode.
type Options struct {
	BaudRate    int
	DataBits    int
	StopBits    StopBits
	Parity      Parity
	ReadTimeout time.Duration
}

// DefaultOptions are the settings 3D-printer style firmwares use out of the box.
func DefaultOptions() Options {
	return Options{
		BaudRate:    115200,
		DataBits:    8,
		StopBits:    OneStopBit,
		Parity:      NoParity,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Parity describes a serial port parity setting.
type Parity int

const (
	// NoParity disable parity control (default).
	NoParity Parity = iota
	// OddParity enable odd-parity check.
	OddParity
	// EvenParity enable even-parity check.
	EvenParity
	// MarkParity enable mark-parity (always 1) check.
	MarkParity
	// SpaceParity enable space-parity (always 0) check.
	SpaceParity
)

// StopBits describe a serial port stop bits setting.
type StopBits int

const (
	// OneStopBit sets 1 stop bit (default).
	OneStopBit StopBits = iota
	// OnePointFiveStopBits sets 1.5 stop bits.
	OnePointFiveStopBits
	// TwoStopBits sets 2 stop bits.
	TwoStopBits
)

func (options Options) mode() *ser.Mode {
	dataBits := options.DataBits
	if dataBits == 0 {
		dataBits = 8
	}
	return &ser.Mode{
		BaudRate: options.BaudRate,
		Parity:   ser.Parity(options.Parity),
		DataBits: dataBits,
		StopBits: ser.StopBits(options.StopBits),
	}
}

// Open attempts to open a serial device on the given path. It's a variable
// in case you need to override it during tests.
var Open = func(devicePath string, options Options) (io.ReadWriteCloser, error) {
	if devicePath == "" {
		return nil, errors.New("serial device path is empty")
	}
	device, err := ser.Open(devicePath, options.mode())
	if err != nil {
		return nil, errors.Wrapf(err, "could not open serial port %q", devicePath)
	}
	if options.ReadTimeout > 0 {
		if err := device.SetReadTimeout(options.ReadTimeout); err != nil {
			return nil, multierr.Combine(errors.Wrap(err, "could not set serial read timeout"), device.Close())
		}
	}
	return device, nil
}

// SetOptions changes the configuration of a serial port that is already open.
func SetOptions(port io.ReadWriteCloser, options Options) error {
	p, ok := port.(ser.Port)
	if !ok {
		return errors.New("couldn't convert to underlying Port interface")
	}
	return p.SetMode(options.mode())
}

// Ports lists the serial ports present on this machine, sorted by name. It's a variable in case
// you need to override it during tests.
var Ports = func() ([]string, error) {
	ports, err := ser.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "could not list serial ports")
	}
	sort.Strings(ports)
	return ports, nil
}
