// Package imop implements the Porter-Duff composition operations
// used for mixing a graphic element with its backdrop.
// Porter and Duff presented in their paper 12 different composition operation,
// but the image/draw core package implements only the source-over-destination and source.
// This package is aimed to overcome the missing composite operations.
//
// It is used to lay the instruction window and the motion hints over the
// slit-scan canvas, optionally mixing the two layers with a blend mode.
package imop

import (
	"fmt"
	"math"

	"github.com/esimov/slicer/utils"
)

// The supported separable blend modes.
const (
	Normal     = "normal"
	Darken     = "darken"
	Lighten    = "lighten"
	Multiply   = "multiply"
	Screen     = "screen"
	Overlay    = "overlay"
	Difference = "difference"
	Exclusion  = "exclusion"
)

// BlendModes lists the blend modes accepted by Blend.Set.
var BlendModes = []string{
	Normal,
	Darken,
	Lighten,
	Multiply,
	Screen,
	Overlay,
	Difference,
	Exclusion,
}

// Blend holds the currently active blend mode.
type Blend struct {
	Mode string
}

// NewBlend initializes a new Blend.
func NewBlend() *Blend {
	return &Blend{}
}

// Set activate one of the supported blend mode.
func (b *Blend) Set(mode string) error {
	if !utils.Contains(BlendModes, mode) {
		return fmt.Errorf("unsupported blend mode: %q", mode)
	}
	b.Mode = mode
	return nil
}

// Get returns the currently active blend mode.
func (b *Blend) Get() string {
	return b.Mode
}

// mix returns the result of the blend function B(cb, cs) for a single,
// normalized color channel of the backdrop (cb) and of the source (cs).
func (b *Blend) mix(cb, cs float64) float64 {
	switch b.Mode {
	case Darken:
		return utils.Min(cb, cs)
	case Lighten:
		return utils.Max(cb, cs)
	case Multiply:
		return cb * cs
	case Screen:
		return cb + cs - cb*cs
	case Overlay:
		if cb <= 0.5 {
			return cs * 2 * cb
		}
		x := 2*cb - 1
		return cs + x - cs*x
	case Difference:
		return math.Abs(cb - cs)
	case Exclusion:
		return cb + cs - 2*cb*cs
	}
	return cs
}
