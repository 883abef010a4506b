package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUtils_MinMax(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(2, Min(2, 5))
	assert.Equal(2, Min(5, 2))
	assert.Equal(5, Max(2, 5))
	assert.Equal(-1.5, Min(-1.5, 0.5))
}

func TestUtils_AbsClamp(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(3, Abs(-3))
	assert.Equal(0.25, Abs(-0.25))
	assert.Equal(0, Clamp(-4, 0, 15))
	assert.Equal(15, Clamp(40, 0, 15))
	assert.Equal(7, Clamp(7, 0, 15))
}

func TestUtils_Remap(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(0.0, Remap(-8, -8, 8, 0, 1))
	assert.Equal(0.5, Remap(0, -8, 8, 0, 1))
	assert.Equal(1.0, Remap(8, -8, 8, 0, 1))
	assert.Equal(3.0, Remap(1, 1, 1, 3, 4))
}
