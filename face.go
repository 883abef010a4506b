package slicer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"

	pigo "github.com/esimov/pigo/core"
	"github.com/esimov/slicer/utils"
)

// ErrInvalidCascade is returned when the face classifier can't be unpacked.
var ErrInvalidCascade = errors.New("invalid cascade file")

// cascade header: 8 skipped bytes followed by the tree depth and the tree count.
const (
	cascadeHeader   = 16
	maxCascadeDepth = 16
)

// PresenceDetector tells whether somebody is standing in front of the camera,
// by running the pigo face classifier over the captured frames.
type PresenceDetector struct {
	classifier *pigo.Pigo

	MinSize     int
	MaxSize     int
	ShiftFactor float64
	ScaleFactor float64
	IoU         float64
	Angle       float64
	MinScore    float32
}

// NewPresenceDetector unpacks the binary cascade and returns a detector
// initialized with the default detection parameters.
func NewPresenceDetector(cascade []byte) (pd *PresenceDetector, err error) {
	if len(cascade) < cascadeHeader {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidCascade, len(cascade))
	}
	depth := binary.LittleEndian.Uint32(cascade[8:])
	trees := binary.LittleEndian.Uint32(cascade[12:])
	if trees == 0 || depth > maxCascadeDepth {
		return nil, fmt.Errorf("%w: depth %d, %d trees", ErrInvalidCascade, depth, trees)
	}

	// Truncated cascade files make the unpacker index past the buffer.
	defer func() {
		if r := recover(); r != nil {
			pd, err = nil, fmt.Errorf("%w: %v", ErrInvalidCascade, r)
		}
	}()

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCascade, err)
	}

	return &PresenceDetector{
		classifier:  classifier,
		MinSize:     20,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		IoU:         0.2,
		MinScore:    5.0,
	}, nil
}

// Detect returns the bounding boxes of the faces found in img.
func (pd *PresenceDetector) Detect(img *image.NRGBA) []image.Rectangle {
	cols, rows := img.Bounds().Dx(), img.Bounds().Dy()
	maxSize := pd.MaxSize
	if maxSize <= 0 {
		maxSize = utils.Max(cols, rows)
	}

	params := pigo.CascadeParams{
		MinSize:     pd.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: pd.ShiftFactor,
		ScaleFactor: pd.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := pd.classifier.RunCascade(params, pd.Angle)
	dets = pd.classifier.ClusterDetections(dets, pd.IoU)

	var faces []image.Rectangle
	for _, det := range dets {
		if det.Q <= pd.MinScore {
			continue
		}
		half := det.Scale / 2
		faces = append(faces, image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half))
	}
	return faces
}
