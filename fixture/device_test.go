package fixture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHalf_RejectsBadHalf(t *testing.T) {
	s, _ := newTestScheduler(t, "A")
	_, err := NewHalf(s, "A", 2)
	assert.Error(t, err)
	_, err = NewHalf(s, "A", -1)
	assert.Error(t, err)
}

func TestHalf_Offsets(t *testing.T) {
	s, sim := newTestScheduler(t, "A")
	first, err := NewHalf(s, "A", 0)
	require.NoError(t, err)
	second, err := NewHalf(s, "A", 1)
	require.NoError(t, err)

	require.NoError(t, first.SetR(1))
	require.NoError(t, first.SetStrobe(5))
	require.NoError(t, second.SetG(7))
	require.NoError(t, second.SetDim(9))

	channels, err := s.Channels("A")
	require.NoError(t, err)
	assert.Equal(t, [ChannelCount]byte{1, 0, 0, 0, 5, 0, 7, 0, 9, 0}, channels)

	time.Sleep(settle)
	assert.Equal(t, [][]byte{{1, 0, 0, 0, 5, 0, 7, 0, 9}}, sim.PacketsFor("A"))
}

func TestHalf_SetRGBAndState(t *testing.T) {
	s, _ := newTestScheduler(t, "A")
	h, err := NewHalf(s, "A", 1)
	require.NoError(t, err)

	require.NoError(t, h.SetRGB(255, 0, 128))
	require.NoError(t, h.SetDim(200))

	state, err := h.State()
	require.NoError(t, err)
	assert.Equal(t, Light{R: 255, G: 0, B: 128, Dim: 200}, state)
}

func TestHalf_SetRGBValidatesFirst(t *testing.T) {
	s, _ := newTestScheduler(t, "A")
	h, err := NewHalf(s, "A", 0)
	require.NoError(t, err)

	err = h.SetRGB(10, 20, 300)
	assert.ErrorIs(t, err, ErrInvalidChannelValue)

	state, err := h.State()
	require.NoError(t, err)
	assert.Equal(t, Light{}, state, "no channel touched")

	assert.ErrorIs(t, h.SetDim(-3), ErrInvalidChannelValue)
}

func TestDevices_Order(t *testing.T) {
	s, _ := newTestScheduler(t, "A", "B")
	devices := Devices(s, []string{"A", "B"})
	require.Len(t, devices, 4)

	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name()
	}
	assert.Equal(t, []string{"A/CH1", "A/CH2", "B/CH1", "B/CH2"}, names)

	require.NoError(t, devices[3].SetB(33))
	v, err := s.Channel("B", HalfWidth+Blue)
	require.NoError(t, err)
	assert.Equal(t, byte(33), v)
}
