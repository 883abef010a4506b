package slicer

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/esimov/slicer/utils"
)

var (
	// ErrInvalidStep is returned when the grid step is not a positive integer.
	ErrInvalidStep = errors.New("grid step should be a positive integer")
	// ErrInvalidRadius is returned when the search radius is negative or exceeds the grid step.
	ErrInvalidRadius = errors.New("search radius should be between 0 and the grid step")
	// ErrFrameTooSmall is returned when the frame can't hold a single grid cell.
	ErrFrameTooSmall = errors.New("frame is smaller than the grid step")
	// ErrShortBuffer is returned when a pixel buffer holds less than width*height*4 bytes.
	ErrShortBuffer = errors.New("pixel buffer is shorter than width*height*4")
)

// Zone is a cell of the motion estimation grid.
// X and Y are the top-left pixel coordinates of the cell,
// U and V the horizontal and vertical displacement found for it.
type Zone struct {
	X, Y int
	U, V int
}

// Exceeds reports whether the zone moved more than threshold pixels on any axis.
func (z Zone) Exceeds(threshold int) bool {
	return utils.Abs(z.U) > threshold || utils.Abs(z.V) > threshold
}

// Flow is the result of a flow calculation: the zones in raster order
// plus the mean displacement of all the zones.
type Flow struct {
	Zones []Zone
	U, V  float64
}

// Heading returns the angle of the aggregate vector in radians.
func (f *Flow) Heading() float64 {
	return math.Atan2(f.V, f.U)
}

// Degrees returns the angle of the aggregate vector in degrees, in the (-180, 180] range.
func (f *Flow) Degrees() float64 {
	return f.Heading() * 180 / math.Pi
}

// Normalize returns the aggregate vector scaled to unit length.
// A zero vector is returned unchanged.
func (f *Flow) Normalize() (float64, float64) {
	m := math.Hypot(f.U, f.V)
	if m == 0 {
		return 0, 0
	}
	return f.U / m, f.V / m
}

// Moving reports whether the scene moved on both axes.
// The scan modes are only triggered when this holds.
func (f *Flow) Moving() bool {
	return f != nil && f.U != 0 && f.V != 0
}

// Active returns the zones exceeding the threshold.
func (f *Flow) Active(threshold int) []Zone {
	var zones []Zone
	for _, z := range f.Zones {
		if z.Exceeds(threshold) {
			zones = append(zones, z)
		}
	}
	return zones
}

// FlowCalculator estimates the motion between two frames by block matching.
// The frame is split into square zones of Step pixels; for each zone the offset
// within Radius pixels with the lowest sum of absolute differences wins.
type FlowCalculator struct {
	// Step is the grid cell size in pixels.
	Step int
	// Radius is the search radius in pixels. Zero selects Step/2 (at least 1).
	Radius int

	mu   sync.RWMutex
	flow *Flow
}

// NewFlowCalculator returns a calculator using the provided grid step.
func NewFlowCalculator(step int) (*FlowCalculator, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStep, step)
	}
	return &FlowCalculator{Step: step}, nil
}

// Flow returns the result of the last successful calculation or nil if none has run yet.
func (fc *FlowCalculator) Flow() *Flow {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	return fc.flow
}

// radius returns the effective search radius.
func (fc *FlowCalculator) radius() (int, error) {
	if fc.Radius < 0 || fc.Radius > fc.Step {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRadius, fc.Radius)
	}
	if fc.Radius > 0 {
		return fc.Radius, nil
	}
	return utils.Max(1, fc.Step/2), nil
}

// Calculate computes the flow between the previous and the current RGBA pixel buffers.
// Zones are laid out in raster order and trailing partial cells are dropped.
// The sample window of a zone is its own step×step cell, with (X, Y) as the top-left
// corner rather than the center; candidate offsets moving it outside the frame are skipped.
// The aggregate vector is the arithmetic mean of all the zone vectors.
// On success the result also replaces the cached flow returned by Flow.
func (fc *FlowCalculator) Calculate(previous, current []uint8, width, height int) (*Flow, error) {
	step := fc.Step
	if step <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStep, step)
	}
	radius, err := fc.radius()
	if err != nil {
		return nil, err
	}
	if width < step || height < step {
		return nil, fmt.Errorf("%w: %dx%d with step %d", ErrFrameTooSmall, width, height, step)
	}
	size := width * height * 4
	if len(previous) < size || len(current) < size {
		return nil, fmt.Errorf("%w: got %d and %d bytes, need %d",
			ErrShortBuffer, len(previous), len(current), size)
	}

	prev := luma(previous, width, height)
	curr := luma(current, width, height)

	cols, rows := width/step, height/step
	flow := &Flow{Zones: make([]Zone, 0, cols*rows)}

	var su, sv int
	for y := 0; y+step <= height; y += step {
		for x := 0; x+step <= width; x += step {
			u, v := match(prev, curr, width, height, x, y, step, radius)
			flow.Zones = append(flow.Zones, Zone{X: x, Y: y, U: u, V: v})
			su += u
			sv += v
		}
	}
	n := float64(len(flow.Zones))
	flow.U = float64(su) / n
	flow.V = float64(sv) / n

	fc.mu.Lock()
	fc.flow = flow
	fc.mu.Unlock()

	return flow, nil
}

// match returns the offset of the step×step block at (x, y) which minimizes the SAD cost
// between the current frame and the shifted block of the previous frame.
// Offsets moving the block outside the frame are not considered.
func match(prev, curr []uint8, width, height, x, y, step, radius int) (int, int) {
	var (
		bestU, bestV int
		bestCost     = math.MaxInt
		bestMag      = math.MaxInt
	)

	for du := -radius; du <= radius; du++ {
		if x-du < 0 || x-du+step > width {
			continue
		}
		for dv := -radius; dv <= radius; dv++ {
			if y-dv < 0 || y-dv+step > height {
				continue
			}
			cost := sad(prev, curr, width, x, y, du, dv, step)
			mag := du*du + dv*dv
			if cost < bestCost || (cost == bestCost && mag < bestMag) {
				bestU, bestV = du, dv
				bestCost, bestMag = cost, mag
			}
		}
	}
	return bestU, bestV
}

// sad returns the sum of absolute differences between the current block at (x, y)
// and the previous block displaced by (-du, -dv).
func sad(prev, curr []uint8, width, x, y, du, dv, step int) int {
	var sum int
	for j := 0; j < step; j++ {
		ci := (y+j)*width + x
		pi := (y+j-dv)*width + x - du
		for i := 0; i < step; i++ {
			d := int(curr[ci+i]) - int(prev[pi+i])
			if d < 0 {
				d = -d
			}
			sum += d
		}
	}
	return sum
}

// Same compares every stride-th byte of the two buffers up to n bytes.
// It's a cheap way to detect duplicate frames delivered by the capture device.
func Same(a, b []uint8, stride, n int) bool {
	if len(a) != len(b) {
		return false
	}
	if stride <= 0 {
		stride = 1
	}
	n = utils.Min(n, utils.Min(len(a), len(b)))
	for i := 0; i < n; i += stride {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
