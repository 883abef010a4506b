package slicer

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// Height of the instruction area below the mirrored video.
const captionHeight = 40

var instructions = []string{
	"Press 1, 2 or 3 on the",
	"keyboard to play with",
	"the scan modes.",
}

// drawOverlay renders the control window: the mirrored camera frame,
// the instructions, the detected faces and the hints of the active mode.
// The hints are skipped when no flow has been calculated yet.
func drawOverlay(sc scanner, t *trigger, active []Zone, faces []image.Rectangle, hint color.Color) *image.NRGBA {
	fw, fh := t.frame.Bounds().Dx(), t.frame.Bounds().Dy()

	dc := gg.NewContext(fw, fh+captionHeight)
	dc.SetColor(color.White)
	dc.Clear()
	dc.DrawImage(imaging.FlipH(t.frame), 0, 0)

	dc.SetColor(hint)
	for i, line := range instructions {
		dc.DrawString(line, 4, float64(fh+12+i*12))
	}

	dc.SetLineWidth(1)
	for _, f := range faces {
		dc.DrawRectangle(float64(fw-f.Max.X), float64(f.Min.Y), float64(f.Dx()), float64(f.Dy()))
		dc.Stroke()
	}

	if t.flow != nil {
		sc.hint(dc, t, active)
	}
	return imgToNRGBA(dc.Image())
}
