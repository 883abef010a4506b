package slicer

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// Canvas is the drawing surface the scan modes paint the slices on.
type Canvas struct {
	img      *image.NRGBA
	source   image.Image
	backdrop *image.NRGBA
}

// NewCanvas creates a width×height canvas. When a backdrop image is provided
// it fills the canvas on every clear, otherwise the canvas is cleared to white.
func NewCanvas(width, height int, backdrop image.Image) *Canvas {
	c := &Canvas{source: backdrop}
	c.Resize(width, height)
	return c
}

// Resize changes the canvas dimension and clears it.
func (c *Canvas) Resize(width, height int) {
	c.img = image.NewNRGBA(image.Rect(0, 0, width, height))
	c.backdrop = nil
	if c.source != nil {
		c.backdrop = imaging.Fill(c.source, width, height, imaging.Center, imaging.Lanczos)
	}
	c.Clear()
}

// Clear erases everything painted on the canvas.
func (c *Canvas) Clear() {
	if c.backdrop != nil {
		copy(c.img.Pix, c.backdrop.Pix)
		return
	}
	draw.Draw(c.img, c.img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
}

// Image returns the canvas image. The returned image is owned by the canvas.
func (c *Canvas) Image() *image.NRGBA { return c.img }

// Width returns the canvas width.
func (c *Canvas) Width() int { return c.img.Bounds().Dx() }

// Height returns the canvas height.
func (c *Canvas) Height() int { return c.img.Bounds().Dy() }

// Copy copies the sr region of src into the dr region of the canvas,
// scaling it with the nearest neighbor interpolation when the sizes differ.
// With mirror set the slice is flipped horizontally and its destination
// is reflected over the vertical axis of the canvas.
func (c *Canvas) Copy(src *image.NRGBA, sr, dr image.Rectangle, mirror bool) {
	sr = sr.Intersect(src.Bounds())
	if sr.Empty() || dr.Empty() {
		return
	}

	slice := imaging.Crop(src, sr)
	if mirror {
		w := c.Width()
		slice = imaging.FlipH(slice)
		dr = image.Rect(w-dr.Max.X, dr.Min.Y, w-dr.Min.X, dr.Max.Y)
	}
	xdraw.NearestNeighbor.Scale(c.img, dr, slice, slice.Bounds(), xdraw.Src, nil)
}
