package slicer

import (
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"github.com/esimov/slicer/imop"
	"github.com/esimov/slicer/utils"
)

// Default values used by the command line application.
const (
	DefaultStep          = 8
	DefaultThreshold     = 12
	MaxThreshold         = 15
	DefaultCaptureWidth  = 160
	DefaultCaptureHeight = 160
	DefaultCanvasWidth   = 1280
	DefaultCanvasHeight  = 720
)

// Processor options
type Processor struct {
	Mode          Mode
	Step          int
	Radius        int
	Threshold     int
	CaptureWidth  int
	CaptureHeight int
	CanvasWidth   int
	CanvasHeight  int
	BlurRadius    float64
	Backdrop      string
	BlendMode     string
	CompositeOp   string
	HintColor     string
	FaceAngle     float64
	Classifier    string
	FPS           float64
	Dedup         int
	Interactive   bool
	Debug         bool
	Spinner       *utils.Spinner
}

// NewProcessor returns a processor initialized with the default options.
func NewProcessor() *Processor {
	return &Processor{
		Mode:          ScanLine,
		Step:          DefaultStep,
		Threshold:     DefaultThreshold,
		CaptureWidth:  DefaultCaptureWidth,
		CaptureHeight: DefaultCaptureHeight,
		CanvasWidth:   DefaultCanvasWidth,
		CanvasHeight:  DefaultCanvasHeight,
		HintColor:     "#000000",
		Dedup:         -1,
	}
}

// Validate checks the processor options before any frame is processed.
func (p *Processor) Validate() error {
	if !p.Mode.Valid() {
		return fmt.Errorf("unknown scan mode: %d", p.Mode)
	}
	if p.Step <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidStep, p.Step)
	}
	if p.Radius < 0 || p.Radius > p.Step {
		return fmt.Errorf("%w: %d", ErrInvalidRadius, p.Radius)
	}
	if p.Threshold < 0 || p.Threshold > MaxThreshold {
		return fmt.Errorf("the threshold should be between 0 and %d", MaxThreshold)
	}
	if p.CaptureWidth < p.Step || p.CaptureHeight < p.Step {
		return fmt.Errorf("%w: capture size %dx%d", ErrFrameTooSmall, p.CaptureWidth, p.CaptureHeight)
	}
	if p.CanvasWidth <= 0 || p.CanvasHeight <= 0 {
		return errors.New("the canvas width and height should be positive")
	}
	if p.BlurRadius < 0 {
		return errors.New("the blur radius can't be negative")
	}
	if p.FPS < 0 {
		return errors.New("the frame rate can't be negative")
	}
	if p.Dedup < -1 || p.Dedup > 64 {
		return errors.New("the dedup distance should be between -1 and 64")
	}
	if p.BlendMode != "" && !utils.Contains(imop.BlendModes, p.BlendMode) {
		return fmt.Errorf("unsupported blend mode: %q", p.BlendMode)
	}
	if p.CompositeOp != "" && !utils.Contains(imop.CompositeOps, p.CompositeOp) {
		return fmt.Errorf("unsupported composite operation: %q", p.CompositeOp)
	}
	if _, err := utils.HexToRGBA(p.HintColor); err != nil {
		return err
	}
	return nil
}

// Prepare converts a decoded camera frame to the capture size used for the flow estimation.
// The frame is stretched like a capture device would do it and optionally blurred
// to reduce the block matching noise.
func (p *Processor) Prepare(src image.Image) *image.NRGBA {
	img := imgToNRGBA(src)

	b := img.Bounds()
	if b.Dx() != p.CaptureWidth || b.Dy() != p.CaptureHeight {
		img = imaging.Resize(img, p.CaptureWidth, p.CaptureHeight, imaging.Linear)
	}
	if p.BlurRadius > 0 {
		img = imaging.Blur(img, p.BlurRadius)
	}
	return compact(img)
}

// NewSession creates a rendering session configured from the processor options.
func (p *Processor) NewSession() (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var backdrop image.Image
	if p.Backdrop != "" {
		img, err := loadBackdrop(p.Backdrop)
		if err != nil {
			return nil, err
		}
		backdrop = img
	}

	var detector Detector
	if p.Classifier != "" {
		cascade, err := os.ReadFile(p.Classifier)
		if err != nil {
			return nil, fmt.Errorf("could not read the cascade file: %w", err)
		}
		pd, err := NewPresenceDetector(cascade)
		if err != nil {
			return nil, err
		}
		pd.Angle = p.FaceAngle
		detector = pd
	}

	hint, _ := utils.HexToRGBA(p.HintColor)

	return NewSession(SessionOptions{
		Mode:        p.Mode,
		Step:        p.Step,
		Radius:      p.Radius,
		Threshold:   p.Threshold,
		Canvas:      NewCanvas(p.CanvasWidth, p.CanvasHeight, backdrop),
		Detector:    detector,
		BlendMode:   p.BlendMode,
		CompositeOp: p.CompositeOp,
		HintColor:   hint,
	})
}

// loadBackdrop loads the canvas backdrop from a local file or an URL.
func loadBackdrop(src string) (image.Image, error) {
	if !utils.IsValidUrl(src) {
		return decodeImg(src)
	}

	f, err := utils.DownloadImage(src)
	if f != nil {
		defer os.Remove(f.Name())
		defer f.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load the backdrop image: %w", err)
	}
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("could not decode the backdrop image: %w", err)
	}
	return img, nil
}

// compact returns an image whose pixel buffer is tightly packed,
// starting at the origin, as the flow calculator expects it.
func compact(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	if b.Min.X == 0 && b.Min.Y == 0 && img.Stride == b.Dx()*4 {
		return img
	}
	return imaging.Clone(img)
}
