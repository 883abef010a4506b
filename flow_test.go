package slicer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	frameWidth  = 160
	frameHeight = 160
	gridStep    = 8
)

// texel returns a deterministic pseudo random gray level for the (x, y) coordinate.
func texel(x, y int) uint8 {
	h := uint32(x)*2654435761 ^ uint32(y)*2246822519
	h ^= h >> 13
	h *= 3266489917
	h ^= h >> 16
	return uint8(h)
}

// texturedFrame returns an RGBA buffer filled with the texture shifted by (dx, dy).
func texturedFrame(width, height, dx, dy int) []uint8 {
	pix := make([]uint8, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := texel(x-dx, y-dy)
			i := (y*width + x) * 4
			pix[i], pix[i+1], pix[i+2], pix[i+3] = v, v, v, 0xff
		}
	}
	return pix
}

// blockFrame returns a flat background with a textured block of size s at (bx, by).
func blockFrame(width, height, bx, by, s int) []uint8 {
	pix := make([]uint8, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(40)
			if x >= bx && x < bx+s && y >= by && y < by+s {
				v = 100 + texel(x-bx, y-by)%156
			}
			i := (y*width + x) * 4
			pix[i], pix[i+1], pix[i+2], pix[i+3] = v, v, v, 0xff
		}
	}
	return pix
}

func TestFlow_IdenticalFramesShouldNotMove(t *testing.T) {
	assert := assert.New(t)

	fc, err := NewFlowCalculator(gridStep)
	assert.NoError(err)

	frame := texturedFrame(frameWidth, frameHeight, 0, 0)
	flow, err := fc.Calculate(frame, frame, frameWidth, frameHeight)
	assert.NoError(err)

	for _, z := range flow.Zones {
		if z.U != 0 || z.V != 0 {
			t.Fatalf("zone (%d, %d) expected to be static, got (%d, %d)", z.X, z.Y, z.U, z.V)
		}
	}
	assert.Equal(0.0, flow.U)
	assert.Equal(0.0, flow.V)
	assert.False(flow.Moving())
}

func TestFlow_StaticBlankFrameShouldNotMove(t *testing.T) {
	fc, _ := NewFlowCalculator(gridStep)

	blank := make([]uint8, frameWidth*frameHeight*4)
	flow, err := fc.Calculate(blank, blank, frameWidth, frameHeight)
	assert.NoError(t, err)
	assert.Len(t, flow.Zones, 400)
	assert.Empty(t, flow.Active(0))
}

func TestFlow_ShouldRecoverTranslation(t *testing.T) {
	testCases := []struct {
		name   string
		dx, dy int
	}{
		{"right", 3, 0},
		{"left", -2, 0},
		{"down", 0, 4},
		{"diagonal", 3, -2},
		{"none", 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fc, err := NewFlowCalculator(gridStep)
			assert.NoError(t, err)

			prev := texturedFrame(frameWidth, frameHeight, 0, 0)
			curr := texturedFrame(frameWidth, frameHeight, tc.dx, tc.dy)

			flow, err := fc.Calculate(prev, curr, frameWidth, frameHeight)
			assert.NoError(t, err)

			radius := gridStep / 2
			for _, z := range flow.Zones {
				// Zones near the border can't see content shifted in from outside the frame.
				if z.X < radius || z.Y < radius || z.X+gridStep+radius > frameWidth || z.Y+gridStep+radius > frameHeight {
					continue
				}
				if z.U != tc.dx || z.V != tc.dy {
					t.Fatalf("zone (%d, %d): expected (%d, %d), got (%d, %d)", z.X, z.Y, tc.dx, tc.dy, z.U, z.V)
				}
			}
		})
	}
}

func TestFlow_ShouldTrackMovingBlock(t *testing.T) {
	assert := assert.New(t)

	fc, _ := NewFlowCalculator(gridStep)
	prev := blockFrame(frameWidth, frameHeight, 48, 48, 32)
	curr := blockFrame(frameWidth, frameHeight, 51, 46, 32)

	flow, err := fc.Calculate(prev, curr, frameWidth, frameHeight)
	assert.NoError(err)

	var inside int
	for _, z := range flow.Zones {
		// Cells fully covered by the block in the current frame.
		if z.X >= 51 && z.X+gridStep <= 83 && z.Y >= 46 && z.Y+gridStep <= 78 {
			inside++
			assert.Equal(3, z.U, "zone (%d, %d)", z.X, z.Y)
			assert.Equal(-2, z.V, "zone (%d, %d)", z.X, z.Y)
		}
		// Cells far away from the block see only the flat background.
		if z.X+gridStep < 40 || z.Y+gridStep < 40 {
			assert.Equal(Zone{X: z.X, Y: z.Y}, z)
		}
	}
	assert.Equal(9, inside)
	assert.NotEmpty(flow.Active(2))
}

func TestFlow_AggregateShouldBeZoneMean(t *testing.T) {
	assert := assert.New(t)

	fc, _ := NewFlowCalculator(gridStep)
	prev := blockFrame(frameWidth, frameHeight, 48, 48, 32)
	curr := blockFrame(frameWidth, frameHeight, 51, 46, 32)

	flow, err := fc.Calculate(prev, curr, frameWidth, frameHeight)
	assert.NoError(err)

	var su, sv int
	for _, z := range flow.Zones {
		su += z.U
		sv += z.V
	}
	assert.InDelta(float64(su)/float64(len(flow.Zones)), flow.U, 1e-9)
	assert.InDelta(float64(sv)/float64(len(flow.Zones)), flow.V, 1e-9)
	assert.Greater(flow.U, 0.0)
	assert.Less(flow.V, 0.0)
	assert.True(flow.Moving())
}

func TestFlow_ShouldBeDeterministic(t *testing.T) {
	fc, _ := NewFlowCalculator(gridStep)
	prev := blockFrame(frameWidth, frameHeight, 20, 30, 40)
	curr := blockFrame(frameWidth, frameHeight, 22, 29, 40)

	first, err := fc.Calculate(prev, curr, frameWidth, frameHeight)
	assert.NoError(t, err)

	// Run an unrelated calculation in between to make sure no state leaks.
	_, err = fc.Calculate(curr, prev, frameWidth, frameHeight)
	assert.NoError(t, err)

	second, err := fc.Calculate(prev, curr, frameWidth, frameHeight)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Same(t, second, fc.Flow())
}

func TestFlow_ZoneGrid(t *testing.T) {
	assert := assert.New(t)

	fc, _ := NewFlowCalculator(gridStep)
	frame := make([]uint8, frameWidth*frameHeight*4)

	flow, err := fc.Calculate(frame, frame, frameWidth, frameHeight)
	assert.NoError(err)
	assert.Len(flow.Zones, 20*20)

	for i, z := range flow.Zones {
		assert.Equal((i%20)*gridStep, z.X)
		assert.Equal((i/20)*gridStep, z.Y)
	}
}

func TestFlow_SampleWindowStartsAtZoneOrigin(t *testing.T) {
	assert := assert.New(t)

	fc, _ := NewFlowCalculator(gridStep)
	// The block fills exactly the cell at (16, 16) of the current frame.
	prev := blockFrame(frameWidth, frameHeight, 14, 16, gridStep)
	curr := blockFrame(frameWidth, frameHeight, 16, 16, gridStep)

	flow, err := fc.Calculate(prev, curr, frameWidth, frameHeight)
	assert.NoError(err)

	zone := func(x, y int) Zone {
		return flow.Zones[(y/gridStep)*(frameWidth/gridStep)+x/gridStep]
	}
	assert.Equal(Zone{X: 16, Y: 16, U: 2, V: 0}, zone(16, 16))
	// A window centered on (24, 16) would overlap the block; the cell itself is flat background.
	assert.Equal(Zone{X: 24, Y: 16}, zone(24, 16))
}

func TestFlow_ShouldDropPartialCells(t *testing.T) {
	assert := assert.New(t)

	width, height := 45, 30
	fc, _ := NewFlowCalculator(gridStep)
	prev := texturedFrame(width, height, 0, 0)
	curr := texturedFrame(width, height, 1, 1)

	flow, err := fc.Calculate(prev, curr, width, height)
	assert.NoError(err)
	assert.Len(flow.Zones, (width/gridStep)*(height/gridStep))

	for _, z := range flow.Zones {
		assert.LessOrEqual(z.X+gridStep, width)
		assert.LessOrEqual(z.Y+gridStep, height)
	}
	last := flow.Zones[len(flow.Zones)-1]
	assert.Equal(32, last.X)
	assert.Equal(16, last.Y)
}

func TestFlow_InvalidInput(t *testing.T) {
	frame := make([]uint8, frameWidth*frameHeight*4)

	testCases := []struct {
		name          string
		step, radius  int
		prev, curr    []uint8
		width, height int
		err           error
	}{
		{"zero step", 0, 0, frame, frame, frameWidth, frameHeight, ErrInvalidStep},
		{"negative step", -8, 0, frame, frame, frameWidth, frameHeight, ErrInvalidStep},
		{"radius too large", 8, 9, frame, frame, frameWidth, frameHeight, ErrInvalidRadius},
		{"negative radius", 8, -1, frame, frame, frameWidth, frameHeight, ErrInvalidRadius},
		{"frame too narrow", 8, 0, frame, frame, 7, 100, ErrFrameTooSmall},
		{"empty frame", 8, 0, frame, frame, 0, 0, ErrFrameTooSmall},
		{"short previous", 8, 0, frame[:len(frame)-1], frame, frameWidth, frameHeight, ErrShortBuffer},
		{"short current", 8, 0, frame, frame[:100], frameWidth, frameHeight, ErrShortBuffer},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fc := &FlowCalculator{Step: tc.step, Radius: tc.radius}

			flow, err := fc.Calculate(tc.prev, tc.curr, tc.width, tc.height)
			assert.Nil(t, flow)
			assert.True(t, errors.Is(err, tc.err), "expected %v, got %v", tc.err, err)
			assert.Nil(t, fc.Flow())
		})
	}

	_, err := NewFlowCalculator(0)
	assert.ErrorIs(t, err, ErrInvalidStep)
}

func TestFlow_ErrorShouldKeepLastFlow(t *testing.T) {
	fc, _ := NewFlowCalculator(gridStep)
	frame := make([]uint8, frameWidth*frameHeight*4)

	flow, err := fc.Calculate(frame, frame, frameWidth, frameHeight)
	assert.NoError(t, err)

	_, err = fc.Calculate(frame[:10], frame, frameWidth, frameHeight)
	assert.Error(t, err)
	assert.Same(t, flow, fc.Flow())
}

func TestFlow_TieBreakShouldPreferSmallestOffset(t *testing.T) {
	// A flat block only constrains the motion at its border,
	// everywhere else every candidate costs the same and no motion should be reported.
	fc := &FlowCalculator{Step: 4, Radius: 2}
	width, height := 16, 16
	prev := make([]uint8, width*height*4)
	curr := make([]uint8, width*height*4)
	for i := range prev {
		prev[i], curr[i] = 200, 200
	}

	flow, err := fc.Calculate(prev, curr, width, height)
	assert.NoError(t, err)
	for _, z := range flow.Zones {
		assert.Equal(t, 0, z.U)
		assert.Equal(t, 0, z.V)
	}
}

func TestFlow_ZoneExceeds(t *testing.T) {
	assert := assert.New(t)

	assert.False(Zone{U: 3, V: -3}.Exceeds(3))
	assert.True(Zone{U: 4}.Exceeds(3))
	assert.True(Zone{V: -4}.Exceeds(3))
	assert.True(Zone{U: 1}.Exceeds(0))
}

func TestFlow_Heading(t *testing.T) {
	assert := assert.New(t)

	f := &Flow{U: 1, V: 0}
	assert.InDelta(0.0, f.Degrees(), 1e-9)

	f = &Flow{U: -1, V: 0}
	assert.InDelta(180.0, f.Degrees(), 1e-9)

	f = &Flow{U: 0, V: 2}
	assert.InDelta(90.0, f.Degrees(), 1e-9)

	x, y := (&Flow{U: 3, V: 4}).Normalize()
	assert.InDelta(0.6, x, 1e-9)
	assert.InDelta(0.8, y, 1e-9)

	x, y = (&Flow{}).Normalize()
	assert.Equal(0.0, x)
	assert.Equal(0.0, y)

	var nilFlow *Flow
	assert.False(nilFlow.Moving())
}

func TestFlow_Same(t *testing.T) {
	assert := assert.New(t)

	a := []uint8{1, 2, 3, 4, 5, 6, 7, 8}
	b := []uint8{1, 9, 3, 9, 5, 9, 7, 9}

	assert.True(Same(a, b, 2, len(a)))
	assert.False(Same(a, b, 1, len(a)))
	assert.True(Same(a, b, 1, 1))
	assert.True(Same(a, a, 0, 100))
	assert.False(Same(a, a[:4], 1, 4))
}
