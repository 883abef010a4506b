package slicer

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/esimov/slicer/imop"
)

// ErrFrameSize is returned when a frame differs in size from the previous one.
var ErrFrameSize = errors.New("frame size changed")

// Action is the outcome of a key press the caller has to act on.
type Action int

// The actions returned by HandleKey.
const (
	ActionNone Action = iota
	ActionSave
	ActionQuit
)

// Detector finds faces in a frame.
type Detector interface {
	Detect(img *image.NRGBA) []image.Rectangle
}

// SessionOptions configures a new session.
type SessionOptions struct {
	Mode      Mode
	Step      int
	Radius    int
	Threshold int
	Canvas    *Canvas
	// Detector is optional. When set, the scan modes fire only while a face is in the frame.
	Detector  Detector
	BlendMode string
	// CompositeOp is the Porter-Duff operation laying the control window over the canvas.
	// It defaults to source-over.
	CompositeOp string
	HintColor   color.NRGBA
}

// Session holds the state of an interactive slit-scan run: the flow calculator,
// the canvas, the previous frame, the active mode and the overlay window.
type Session struct {
	mu sync.Mutex

	calc      *FlowCalculator
	canvas    *Canvas
	scanners  map[Mode]scanner
	mode      Mode
	threshold int

	prev    *image.NRGBA
	frames  int
	overlay *image.NRGBA

	showVideo bool
	showGUI   bool

	detector Detector
	faces    []image.Rectangle

	op    *imop.Composite
	blend *imop.Blend
	hint  color.NRGBA
}

// NewSession validates the options and returns a session ready to accept frames.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Mode == 0 {
		opts.Mode = ScanLine
	}
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("unknown scan mode: %d", opts.Mode)
	}
	if opts.Threshold < 0 || opts.Threshold > MaxThreshold {
		return nil, fmt.Errorf("the threshold should be between 0 and %d", MaxThreshold)
	}
	calc, err := NewFlowCalculator(opts.Step)
	if err != nil {
		return nil, err
	}
	if opts.Radius < 0 || opts.Radius > opts.Step {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRadius, opts.Radius)
	}
	calc.Radius = opts.Radius

	if opts.HintColor == (color.NRGBA{}) {
		opts.HintColor = color.NRGBA{A: 0xff}
	}
	if opts.Canvas == nil {
		opts.Canvas = NewCanvas(DefaultCanvasWidth, DefaultCanvasHeight, nil)
	}

	s := &Session{
		calc:      calc,
		canvas:    opts.Canvas,
		scanners:  make(map[Mode]scanner, len(Modes)),
		mode:      opts.Mode,
		threshold: opts.Threshold,
		showVideo: true,
		showGUI:   true,
		detector:  opts.Detector,
		op:        imop.InitOp(),
		hint:      opts.HintColor,
	}
	if opts.CompositeOp != "" {
		if err := s.op.Set(opts.CompositeOp); err != nil {
			return nil, err
		}
	}
	if opts.BlendMode != "" {
		s.blend = imop.NewBlend()
		if err := s.blend.Set(opts.BlendMode); err != nil {
			return nil, err
		}
	}
	for _, m := range Modes {
		s.scanners[m] = newScanner(m)
		s.scanners[m].reset(s.canvas)
	}
	return s, nil
}

// Step feeds a new camera frame to the session. The first frame only primes
// the previous buffer; the returned flow is nil for it and for duplicate frames.
// When the scene is moving and somebody is present, the active mode paints one
// slice for every zone over the threshold.
func (s *Session) Step(frame *image.NRGBA) (*Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame = compact(frame)
	if s.prev == nil {
		s.prev = imaging.Clone(frame)
		s.detect(frame)
		s.overlay = drawOverlay(s.scanners[s.mode], s.newTrigger(frame, nil), nil, s.faces, s.hint)
		return nil, nil
	}
	if frame.Bounds() != s.prev.Bounds() {
		return nil, fmt.Errorf("%w: got %v, expected %v", ErrFrameSize, frame.Bounds().Size(), s.prev.Bounds().Size())
	}
	if Same(s.prev.Pix, frame.Pix, 4, len(frame.Pix)) {
		return nil, nil
	}

	b := frame.Bounds()
	flow, err := s.calc.Calculate(s.prev.Pix, frame.Pix, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	s.prev = imaging.Clone(frame)
	s.frames++
	s.detect(frame)

	sc := s.scanners[s.mode]
	t := s.newTrigger(frame, flow)
	active := flow.Active(s.threshold)
	if flow.Moving() && s.present() {
		for range active {
			sc.scan(s.canvas, t)
		}
	}
	s.overlay = drawOverlay(sc, t, active, s.faces, s.hint)

	return flow, nil
}

func (s *Session) newTrigger(frame *image.NRGBA, flow *Flow) *trigger {
	return &trigger{
		frame: frame,
		flow:  flow,
		count: s.frames,
		step:  s.calc.Step,
	}
}

func (s *Session) detect(frame *image.NRGBA) {
	if s.detector != nil {
		s.faces = s.detector.Detect(frame)
	}
}

// present reports whether the scan modes are allowed to paint.
func (s *Session) present() bool {
	return s.detector == nil || len(s.faces) > 0
}

// HandleKey applies a key press to the session.
func (s *Session) HandleKey(r rune) Action {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r {
	case '1', '2', '3':
		s.canvas.Clear()
		s.mode = Mode(r - '0')
		if s.mode == ScanStream {
			s.scanners[s.mode].reset(s.canvas)
		}
	case 'c':
		s.canvas.Clear()
	case 'h':
		s.showGUI = !s.showGUI
	case 'v':
		s.showVideo = !s.showVideo
	case '+', '=':
		if s.threshold < MaxThreshold {
			s.threshold++
		}
	case '-':
		if s.threshold > 0 {
			s.threshold--
		}
	case 's':
		return ActionSave
	case 'q', 27, 3: // ESC and Ctrl-C in raw mode
		return ActionQuit
	}
	return ActionNone
}

// Render returns a copy of the canvas with the control window composited over it
// when both the video and the GUI are visible. The composite operation applies to
// the whole canvas, so operations like src_in or xor also change the pixels
// outside of the window.
func (s *Session) Render() *image.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.showVideo || !s.showGUI || s.overlay == nil {
		return imaging.Clone(s.canvas.Image())
	}
	bmp := imop.NewBitmap(s.canvas.Image().Bounds())
	s.op.Draw(bmp, s.overlay, s.canvas.Image(), s.blend)
	return bmp.Img
}

// Resize changes the canvas size, clearing it and restarting every mode.
func (s *Session) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.canvas.Resize(width, height)
	for _, sc := range s.scanners {
		sc.reset(s.canvas)
	}
}

// Mode returns the active scan mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Threshold returns the zone threshold.
func (s *Session) Threshold() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threshold
}

// Frames returns the number of frames the flow was calculated for.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Faces returns the faces found in the last frame.
func (s *Session) Faces() []image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faces
}
