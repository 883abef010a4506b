package slicer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrayscale_Luma(t *testing.T) {
	pix := []uint8{
		177, 177, 177, 255,
		255, 0, 0, 255,
		0, 255, 0, 255,
		0, 0, 255, 255,
		255, 255, 255, 0,
		0, 0, 0, 255,
	}

	gray := luma(pix, 3, 2)
	assert.Equal(t, []uint8{177, 76, 149, 29, 255, 0}, gray)
}

func TestGrayscale_LumaShouldIgnoreAlpha(t *testing.T) {
	opaque := []uint8{10, 20, 30, 255}
	transparent := []uint8{10, 20, 30, 0}

	assert.Equal(t, luma(opaque, 1, 1), luma(transparent, 1, 1))
}
