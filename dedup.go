package slicer

import (
	"image"

	"github.com/corona10/goimagehash"
)

// frameFilter drops the frames perceptually similar to the last kept one.
// Capture devices often repeat a frame with a slightly different noise,
// which the byte comparison done by the session doesn't catch.
type frameFilter struct {
	maxDistance int
	last        *goimagehash.ImageHash
}

func newFrameFilter(maxDistance int) *frameFilter {
	return &frameFilter{maxDistance: maxDistance}
}

// similar reports whether img should be skipped. Frames which can't be hashed are kept.
func (f *frameFilter) similar(img image.Image) bool {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return false
	}
	if f.last == nil {
		f.last = hash
		return false
	}

	dist, err := f.last.Distance(hash)
	if err != nil || dist > f.maxDistance {
		f.last = hash
		return false
	}
	return true
}
