// Package compiler renders released cursor steps as program text for each supported controller
// dialect.
package compiler

import (
	"math"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/machina/config"
	"go.viam.com/machina/cursor"
)

// Constructor builds a compiler.
type Constructor func() cursor.Compiler

var (
	registryMu sync.RWMutex
	registry   = map[config.Brand]Constructor{}
)

// Register makes a compiler available for brand. It panics if one is already registered.
func Register(brand config.Brand, constructor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[brand]; ok {
		panic(errors.Errorf("compiler for brand %q already registered", brand))
	}
	registry[brand] = constructor
}

// ForBrand returns a new compiler for brand.
func ForBrand(brand config.Brand) (cursor.Compiler, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	constructor, ok := registry[brand]
	if !ok {
		return nil, errors.Errorf("no compiler for brand %q", brand)
	}
	return constructor(), nil
}

func init() {
	Register(config.BrandUndefined, func() cursor.Compiler { return &Human{} })
	Register(config.BrandUR, func() cursor.Compiler { return &URScript{} })
	Register(config.BrandZMorph, func() cursor.Compiler { return &GCode{} })
	Register(config.BrandMarlin, func() cursor.Compiler { return &GCode{} })
}

// formatFloat renders v rounded to prec decimals, without trailing zeros or "-0".
func formatFloat(v float64, prec int) string {
	scale := math.Pow(10, float64(prec))
	rounded := math.Round(v*scale) / scale
	if rounded == 0 {
		rounded = 0
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
