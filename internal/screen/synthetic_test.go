package screen

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticRequiresConnect(t *testing.T) {
	s := NewSynthetic(0, 0)

	_, err := s.CaptureFrame()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, s.Click(10, 10), ErrNotConnected)

	require.NoError(t, s.Connect())
	require.NoError(t, s.Click(10, 10))

	require.NoError(t, s.Disconnect())
	assert.ErrorIs(t, s.TypeText("hello"), ErrNotConnected)
}

func TestSyntheticCaptureProducesPNG(t *testing.T) {
	s := NewSynthetic(1024, 768)
	require.NoError(t, s.Connect())

	frame, err := s.CaptureFrame()
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, 1024, img.Bounds().Dx())
	assert.Equal(t, 768, img.Bounds().Dy())
}

func TestSyntheticFramesReflectLastAction(t *testing.T) {
	s := NewSynthetic(640, 480)
	require.NoError(t, s.Connect())

	first, err := s.CaptureFrame()
	require.NoError(t, err)

	require.NoError(t, s.Click(100, 200))
	second, err := s.CaptureFrame()
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "frames should differ once an action was taken")
}

func TestSyntheticActionLog(t *testing.T) {
	s := NewSynthetic(640, 480)
	require.NoError(t, s.Connect())

	require.NoError(t, s.Click(1, 2))
	require.NoError(t, s.DoubleClick(3, 4))
	require.NoError(t, s.RightClick(5, 6))
	require.NoError(t, s.MouseMove(7, 8))
	require.NoError(t, s.TypeText("6211C"))
	require.NoError(t, s.Key("ctrl+s"))
	require.NoError(t, s.Scroll(9, 10, ScrollDown, 3))

	actions := s.Actions()
	require.Len(t, actions, 7)
	assert.Equal(t, "left_click", actions[0].Action)
	assert.Equal(t, "scroll", actions[6].Action)
	for i, rec := range actions {
		assert.Equal(t, i+1, rec.Step, "steps must be contiguous from 1")
	}
}

func TestSyntheticRejectsBadScrollDirection(t *testing.T) {
	s := NewSynthetic(640, 480)
	require.NoError(t, s.Connect())
	assert.Error(t, s.Scroll(0, 0, "sideways", 3))
}

func TestNewSelectsImplementation(t *testing.T) {
	mock, err := New(true, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Synthetic{}, mock)

	_, err = New(false, Options{})
	assert.Error(t, err, "live controller requires a host")

	live, err := New(false, Options{Host: "clinic.tailnet"})
	require.NoError(t, err)
	assert.IsType(t, &Live{}, live)
}
