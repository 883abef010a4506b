package slicer

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/esimov/slicer/utils"
	"github.com/fogleman/gg"
)

// Mode selects how the camera slices are painted on the canvas.
type Mode int

// The supported scan modes.
const (
	// ScanLine uses the body as a pen: the direction of the movement
	// moves the slit left or right.
	ScanLine Mode = iota + 1
	// ScanSquare splits the canvas into squares, each one replaying
	// a different moment of the recorded frames.
	ScanSquare
	// ScanStream picks the slices from the part of the frame
	// pointed by the average movement and streams them on the canvas.
	ScanStream
)

const (
	squareGrid    = 4
	snapshotSlack = 30
	stripWidth    = 5
	streamWidth   = 5
	streamHeight  = 100
	streamReach   = 50
)

// Modes lists the scan modes in key order.
var Modes = []Mode{ScanLine, ScanSquare, ScanStream}

// Valid reports whether m is one of the supported modes.
func (m Mode) Valid() bool {
	return m >= ScanLine && m <= ScanStream
}

func (m Mode) String() string {
	switch m {
	case ScanLine:
		return "line"
	case ScanSquare:
		return "square"
	case ScanStream:
		return "stream"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts either the mode number or its name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if s == fmt.Sprint(int(m)) || strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown scan mode: %q", s)
}

// trigger holds everything a scanner needs to paint one slice.
type trigger struct {
	frame *image.NRGBA
	flow  *Flow
	count int
	step  int
}

// scanner is implemented by every scan mode.
type scanner interface {
	// reset restarts the mode on the provided canvas.
	reset(c *Canvas)
	// scan paints a slice on the canvas. It's called once for each zone over the threshold.
	scan(c *Canvas, t *trigger)
	// hint draws the mode specific guides on the overlay window.
	hint(dc *gg.Context, t *trigger, active []Zone)
}

func newScanner(m Mode) scanner {
	switch m {
	case ScanSquare:
		return &scanSquare{vel: 1}
	case ScanStream:
		return &scanStream{}
	default:
		return &scanLine{}
	}
}

// scanLine copies the middle column of the frame into a moving slit.
type scanLine struct {
	x int
}

func (s *scanLine) reset(c *Canvas) {
	s.x = c.Width() / 2
}

func (s *scanLine) scan(c *Canvas, t *trigger) {
	// Moving right when the average heading points to the right half plane.
	if dir := t.flow.Degrees(); dir >= -90 && dir <= 90 {
		s.x++
	} else {
		s.x--
	}
	if s.x < 0 {
		s.x = c.Width() - 1
	} else if s.x >= c.Width() {
		s.x = 0
	}

	fw, fh := t.frame.Bounds().Dx(), t.frame.Bounds().Dy()
	c.Copy(t.frame,
		image.Rect(fw/2, 0, fw/2+1, fh),
		image.Rect(s.x, 0, s.x+1, c.Height()),
		true,
	)
}

func (s *scanLine) hint(dc *gg.Context, t *trigger, _ []Zone) {
	fw, fh := float64(t.frame.Bounds().Dx()), float64(t.frame.Bounds().Dy())
	heading := t.flow.Heading()

	dc.Push()
	dc.Translate(fw/2, fh/2)
	dc.Scale(-1, 1)
	dc.SetLineWidth(0.5)
	dc.DrawLine(0, 0, fh/2*math.Cos(heading), fh/2*math.Sin(heading))
	dc.Stroke()
	dc.DrawCircle(0, 0, (fh-1)/2)
	dc.Stroke()
	dc.Pop()
}

// scanSquare replays the recorded frames in a grid of squares,
// each square showing a narrow strip moving back and forth.
type scanSquare struct {
	snapshots []*image.NRGBA
	counter   int
	offset    int
	vel       int
}

func (s *scanSquare) reset(c *Canvas) {
	s.snapshots = nil
	s.counter = 0
	s.offset = 0
	s.vel = 1
}

func (s *scanSquare) scan(c *Canvas, t *trigger) {
	total := squareGrid * squareGrid
	capacity := total + snapshotSlack

	snap := imaging.Clone(t.frame)
	if s.counter < len(s.snapshots) {
		s.snapshots[s.counter] = snap
	} else {
		s.snapshots = append(s.snapshots, snap)
	}
	if s.counter++; s.counter == capacity {
		s.counter = 0
	}

	segW, segH := c.Width()/squareGrid, c.Height()/squareGrid
	fw, fh := t.frame.Bounds().Dx(), t.frame.Bounds().Dy()
	scaleX := float64(c.Width()) / float64(fw)
	scaleY := float64(c.Height()) / float64(fh)

	n := len(s.snapshots)
	for i := 0; i < utils.Min(n, total); i++ {
		src := s.snapshots[(i+t.count)%n]

		segX, segY := (i%squareGrid)*segW, (i/squareGrid)*segH
		sx := int(float64(segX) / scaleX)
		sy := int(float64(segY) / scaleY)
		sr := image.Rect(sx, sy, sx+stripWidth, sy+int(math.Ceil(float64(segH)/scaleY)))

		dx := segX + s.offset
		dr := image.Rect(dx, segY, dx+int(math.Ceil(stripWidth*scaleX)), segY+segH)
		c.Copy(src, sr, dr, true)
	}

	// The strips move forth and back inside their segment.
	s.offset += s.vel
	if s.offset >= segW || s.offset <= 0 {
		s.vel = -s.vel
	}
}

func (s *scanSquare) hint(dc *gg.Context, t *trigger, active []Zone) {
	fw := float64(t.frame.Bounds().Dx())
	step := float64(t.step)

	dc.Push()
	dc.Translate(fw, 0)
	dc.Scale(-1, 1)
	for _, z := range active {
		dc.SetLineWidth(utils.Remap(float64(z.U), -step, step, 0, 1))
		dc.DrawRectangle(float64(z.X), float64(z.Y-stripWidth), stripWidth, stripWidth)
		dc.Stroke()
		dc.DrawRectangle(float64(z.X+z.U), float64(z.Y+z.V-stripWidth), stripWidth, stripWidth)
		dc.Stroke()
	}
	dc.Pop()
}

// scanStream streams the frame regions pointed by the average movement on the canvas.
type scanStream struct {
	pos image.Point
}

func (s *scanStream) reset(c *Canvas) {
	s.pos = image.Point{}
}

// target returns the center of the sampled region relative to the frame center.
func (s *scanStream) target(t *trigger) (float64, float64) {
	fw, fh := float64(t.frame.Bounds().Dx()), float64(t.frame.Bounds().Dy())
	rw, rh := float64(streamWidth), math.Min(streamHeight, fh)

	nx, ny := t.flow.Normalize()
	x := utils.Clamp(nx*streamReach, rw/2-fw/2, fw/2-rw/2)
	y := utils.Clamp(ny*streamReach, rh/2-fh/2, fh/2-rh/2)
	return x, y
}

func (s *scanStream) scan(c *Canvas, t *trigger) {
	fw, fh := t.frame.Bounds().Dx(), t.frame.Bounds().Dy()
	rw, rh := streamWidth, utils.Min(streamHeight, fh)

	dx, dy := s.target(t)
	sx := int(dx + float64(fw)/2 - float64(rw)/2)
	sy := int(dy + float64(fh)/2 - float64(rh)/2)

	c.Copy(t.frame,
		image.Rect(sx, sy, sx+rw, sy+rh),
		image.Rect(s.pos.X, s.pos.Y, s.pos.X+rw, s.pos.Y+rh),
		false,
	)

	s.pos.X += rw
	if s.pos.X > c.Width() {
		s.pos.X = 0
		s.pos.Y += rh
		if s.pos.Y >= c.Height() {
			s.reset(c)
		}
	}
}

func (s *scanStream) hint(dc *gg.Context, t *trigger, _ []Zone) {
	fw, fh := float64(t.frame.Bounds().Dx()), float64(t.frame.Bounds().Dy())
	rh := math.Min(streamHeight, fh)
	dx, dy := s.target(t)

	dc.Push()
	dc.Translate(fw/2, fh/2)
	dc.Scale(-1, 1)
	dc.SetLineWidth(1)
	dc.DrawLine(0, 0, dx-1, dy-1)
	dc.Stroke()
	dc.DrawRectangle(dx-1-streamWidth/2.0, dy-1-rh/2, streamWidth, rh)
	dc.Stroke()
	dc.Pop()
}
