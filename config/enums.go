package config

import (
	"strings"

	"github.com/pkg/errors"
)

// Brand is the controller family a program is written for.
type Brand string

// The known brands.
const (
	// BrandUndefined produces human readable programs and runs against a simulated controller.
	BrandUndefined = Brand("undefined")
	// BrandUR is Universal Robots.
	BrandUR = Brand("ur")
	// BrandZMorph is a ZMorph 3D printer.
	BrandZMorph = Brand("zmorph")
	// BrandMarlin is any printer running Marlin firmware.
	BrandMarlin = Brand("marlin")
)

var brandAliases = map[string]Brand{
	"":                 BrandUndefined,
	"human":            BrandUndefined,
	"undefined":        BrandUndefined,
	"ur":               BrandUR,
	"universal_robots": BrandUR,
	"universalrobots":  BrandUR,
	"zmorph":           BrandZMorph,
	"marlin":           BrandMarlin,
}

// ParseBrand returns the brand named by s, ignoring case.
func ParseBrand(s string) (Brand, error) {
	if b, ok := brandAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return b, nil
	}
	return "", errors.Errorf("unknown brand %q", s)
}

// IsExtruder reports whether the brand is a G-code driven 3D printer.
func (b Brand) IsExtruder() bool {
	return b == BrandZMorph || b == BrandMarlin
}

// ControlMode is how issued actions reach a device.
type ControlMode string

// The control modes.
const (
	// Offline buffers actions for export, no device is involved.
	Offline = ControlMode("offline")
	// Execute uploads buffered blocks as programs and runs them.
	Execute = ControlMode("execute")
	// Stream sends actions one at a time as they are issued.
	Stream = ControlMode("stream")
)

// ParseControlMode returns the control mode named by s, ignoring case.
func ParseControlMode(s string) (ControlMode, error) {
	switch mode := ControlMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case Offline, Execute, Stream:
		return mode, nil
	}
	return "", errors.Errorf("unknown control mode %q", s)
}

// RunMode is how many times an uploaded program runs.
type RunMode string

// The run modes.
const (
	Once = RunMode("once")
	Loop = RunMode("loop")
)

// ParseRunMode returns the run mode named by s, ignoring case.
func ParseRunMode(s string) (RunMode, error) {
	switch mode := RunMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case Once, Loop:
		return mode, nil
	}
	return "", errors.Errorf("unknown run mode %q", s)
}
