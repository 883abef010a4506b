package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUtils_FormatTime(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("1.50s", FormatTime(1500*time.Millisecond))
	assert.Equal("2m 5.00s", FormatTime(2*time.Minute+5*time.Second))
	assert.Equal("1h 1m 1.00s", FormatTime(time.Hour+time.Minute+time.Second))
}

func TestUtils_FormatRate(t *testing.T) {
	assert.Equal(t, "25.0 fps", FormatRate(50, 2*time.Second))
	assert.Equal(t, "n/a", FormatRate(50, 0))
}

func TestUtils_DecorateText(t *testing.T) {
	s := DecorateText("done", SuccessMessage)
	if !strings.HasPrefix(s, SuccessColor) || !strings.HasSuffix(s, DefaultColor) {
		t.Errorf("expected the message to be wrapped in color codes, got %q", s)
	}
	assert.Equal(t, "plain", DecorateText("plain", MessageType(42)))
}
