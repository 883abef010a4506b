package imop

import (
	"fmt"
	"image"

	"github.com/esimov/slicer/utils"
)

// The Porter-Duff composition operations.
const (
	Clear   = "clear"
	Copy    = "copy"
	Dst     = "dst"
	SrcOver = "src_over"
	DstOver = "dst_over"
	SrcIn   = "src_in"
	DstIn   = "dst_in"
	SrcOut  = "src_out"
	DstOut  = "dst_out"
	SrcAtop = "src_atop"
	DstAtop = "dst_atop"
	Xor     = "xor"
)

// CompositeOps lists the operations accepted by Composite.Set.
var CompositeOps = []string{
	Clear,
	Copy,
	Dst,
	SrcOver,
	DstOver,
	SrcIn,
	DstIn,
	SrcOut,
	DstOut,
	SrcAtop,
	DstAtop,
	Xor,
}

// Bitmap holds the result of a composition.
type Bitmap struct {
	Img *image.NRGBA
}

// Composite holds the currently active composition operation.
type Composite struct {
	current string
}

// NewBitmap allocates a transparent bitmap.
func NewBitmap(rect image.Rectangle) *Bitmap {
	return &Bitmap{
		Img: image.NewNRGBA(rect),
	}
}

// InitOp returns a Composite initialized with the source-over operation.
func InitOp() *Composite {
	return &Composite{current: SrcOver}
}

// Set changes the composition operation.
func (op *Composite) Set(cop string) error {
	if !utils.Contains(CompositeOps, cop) {
		return fmt.Errorf("unsupported composite operation: %q", cop)
	}
	op.current = cop
	return nil
}

// Get returns the active composition operation.
func (op *Composite) Get() string {
	return op.current
}

// factors returns the Fa and Fb coefficients of the source and backdrop
// for the source alpha as and the backdrop alpha ab.
func (op *Composite) factors(as, ab float64) (float64, float64) {
	switch op.current {
	case Clear:
		return 0, 0
	case Copy:
		return 1, 0
	case Dst:
		return 0, 1
	case DstOver:
		return 1 - ab, 1
	case SrcIn:
		return ab, 0
	case DstIn:
		return 0, as
	case SrcOut:
		return 1 - ab, 0
	case DstOut:
		return 0, 1 - as
	case SrcAtop:
		return ab, 1 - as
	case DstAtop:
		return 1 - ab, as
	case Xor:
		return 1 - ab, 1 - as
	}
	return 1, 1 - as
}

// Draw composites src over the dst backdrop, applying the blend mode first when
// one is provided. The images share the same coordinate space; the src pixels
// outside of its bounds count as transparent. The result is written into the
// bitmap, or into dst when bitmap is nil.
func (op *Composite) Draw(bitmap *Bitmap, src, dst *image.NRGBA, blend *Blend) {
	out := dst
	if bitmap != nil {
		out = bitmap.Img
	}
	rect := dst.Bounds().Intersect(out.Bounds())

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			var cs [4]float64
			if (image.Point{x, y}).In(src.Bounds()) {
				i := src.PixOffset(x, y)
				for c := 0; c < 4; c++ {
					cs[c] = float64(src.Pix[i+c]) / 255
				}
			}
			i := dst.PixOffset(x, y)
			var cb [4]float64
			for c := 0; c < 4; c++ {
				cb[c] = float64(dst.Pix[i+c]) / 255
			}
			as, ab := cs[3], cb[3]

			if blend != nil {
				for c := 0; c < 3; c++ {
					cs[c] = (1-ab)*cs[c] + ab*blend.mix(cb[c], cs[c])
				}
			}

			fa, fb := op.factors(as, ab)
			ao := as*fa + ab*fb

			o := out.PixOffset(x, y)
			if ao == 0 {
				copy(out.Pix[o:o+4], []uint8{0, 0, 0, 0})
				continue
			}
			for c := 0; c < 3; c++ {
				co := (as*fa*cs[c] + ab*fb*cb[c]) / ao
				out.Pix[o+c] = channel(co)
			}
			out.Pix[o+3] = channel(ao)
		}
	}
}

func channel(v float64) uint8 {
	return uint8(utils.Clamp(v*255+0.5, 0, 255))
}
