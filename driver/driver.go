// Package driver defines how the controller talks to a physical device, and a registry of
// drivers by brand.
package driver

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/machina/config"
	"go.viam.com/machina/logging"
	"go.viam.com/machina/spatialmath"
)

// ErrNotConnected is returned by device calls made before ConnectToDevice succeeded.
var ErrNotConnected = errors.New("not connected to a device")

// ErrNotSupported is returned when the device cannot answer a request, e.g. joint values from a
// cartesian printer.
var ErrNotSupported = errors.New("not supported by this device")

// A StreamSource hands out the instructions of the next pending action. The write cursor is one.
type StreamSource interface {
	StreamNext(humanComments bool) (lines []string, ok bool, err error)
}

// A Driver is the communication layer with one device.
type Driver interface {
	// ConnectToDevice opens the connection. address is driver specific: a serial port, an IP.
	// Empty means the driver default.
	ConnectToDevice(ctx context.Context, address string) error
	DisconnectFromDevice(ctx context.Context) error
	IsConnected() bool
	// IP is the address of the connected device.
	IP() string

	CurrentPosition(ctx context.Context) (r3.Vector, error)
	CurrentRotation(ctx context.Context) (spatialmath.Rotation, error)
	CurrentJoints(ctx context.Context) (spatialmath.Joints, error)

	// LoadProgramToController replaces the loaded program.
	LoadProgramToController(ctx context.Context, lines []string) error
	// LoadFileToController loads the program stored at dir/name.ext.
	LoadFileToController(ctx context.Context, dir, name, ext string) error
	StartProgramExecution(ctx context.Context) error
	// StopProgramExecution stops after the current instruction, or right away when immediate.
	StopProgramExecution(ctx context.Context, immediate bool) error
	IsRunning() bool
	SetRunMode(mode config.RunMode) error

	// LinkWriteCursor sets where streamed instructions come from.
	LinkWriteCursor(src StreamSource)
	// TickStreamQueue sends pending instructions of the linked source: all of them when drain is
	// set, otherwise at most one action's worth.
	TickStreamQueue(ctx context.Context, drain bool) error

	Close(ctx context.Context) error
}

// A CompletionNotifier reports when a started program finishes on its own.
type CompletionNotifier interface {
	SetCompletionCallback(func())
}

// Constructor builds a driver from its attributes.
type Constructor func(attrs config.AttributeMap, logger logging.Logger) (Driver, error)

var (
	registryMu sync.RWMutex
	registry   = map[config.Brand]Constructor{}
)

// Register makes a driver available for brand. It panics if one is already registered.
func Register(brand config.Brand, constructor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[brand]; ok {
		panic(errors.Errorf("driver for brand %q already registered", brand))
	}
	registry[brand] = constructor
}

// Deregister removes the driver registered for brand, if any.
func Deregister(brand config.Brand) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, brand)
}

// New builds the driver registered for brand.
func New(brand config.Brand, attrs config.AttributeMap, logger logging.Logger) (Driver, error) {
	registryMu.RLock()
	constructor, ok := registry[brand]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("no driver registered for brand %q", brand)
	}
	d, err := constructor(attrs, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create %q driver", brand)
	}
	return d, nil
}

// ReadProgramFile reads the program stored at dir/name.ext, one instruction per line.
func ReadProgramFile(dir, name, ext string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, name+"."+strings.TrimPrefix(ext, ".")))
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimRight(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n"), "\n"), nil
}

// RegisteredBrands returns the brands that have a driver, sorted.
func RegisteredBrands() []config.Brand {
	registryMu.RLock()
	defer registryMu.RUnlock()
	brands := lo.Keys(registry)
	sort.Slice(brands, func(i, j int) bool { return brands[i] < brands[j] })
	return brands
}
