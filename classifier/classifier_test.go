package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

func sample(value float64, peaks int, at time.Duration) OnsetSample {
	return OnsetSample{Value: value, Peaks: peaks, Timestamp: start.Add(at)}
}

func ambientClassifier() *Classifier {
	opts := DefaultOptions()
	opts.InitialMode = Ambient
	return New(opts, start)
}

func TestMode_StringAndParse(t *testing.T) {
	for _, m := range []Mode{Rhythmic, Ambient} {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseMode("disco")
	assert.Error(t, err)
	assert.Equal(t, "unknown", Mode(7).String())
}

func TestObserve_FastBurstDoesNotTransition(t *testing.T) {
	c := ambientClassifier()
	// eight loud samples, all within the first second
	for i := range 8 {
		_, changed := c.Observe(sample(6, 20, time.Duration(i)*100*time.Millisecond))
		assert.False(t, changed)
	}
	assert.Equal(t, Ambient, c.Mode())
	assert.Equal(t, 8, c.StableFrames())
}

func TestObserve_StretchedBurstTransitionsOnce(t *testing.T) {
	c := ambientClassifier()
	var transitions []Transition
	// same eight samples, 500ms apart
	for i := range 8 {
		if tr, changed := c.Observe(sample(6, 20, time.Duration(i)*500*time.Millisecond)); changed {
			transitions = append(transitions, tr)
			assert.Equal(t, 0, c.StableFrames(), "stability resets right after a transition")
		}
	}
	require.Len(t, transitions, 1)
	assert.Equal(t, Ambient, transitions[0].From)
	assert.Equal(t, Rhythmic, transitions[0].To)
	// 3.5s is the first sample strictly after the buffer duration
	assert.Equal(t, start.Add(3500*time.Millisecond), transitions[0].At)
	assert.Equal(t, Rhythmic, c.Mode())
	assert.Equal(t, transitions[0].At, c.LastTransition())
}

func TestObserve_NeedsMoreThanStableFrames(t *testing.T) {
	c := ambientClassifier()
	for i := range 3 {
		_, changed := c.Observe(sample(6, 20, 10*time.Second+time.Duration(i)*time.Second))
		assert.False(t, changed)
	}
	_, changed := c.Observe(sample(6, 20, 14*time.Second))
	assert.True(t, changed, "fourth consecutive sample switches")
}

func TestObserve_InterruptionResetsStability(t *testing.T) {
	c := ambientClassifier()
	at := 10 * time.Second
	for range 3 {
		c.Observe(sample(6, 20, at))
		at += time.Second
	}
	c.Observe(sample(4, 20, at)) // between the thresholds
	assert.Equal(t, 0, c.StableFrames())
	at += time.Second

	for range 3 {
		_, changed := c.Observe(sample(6, 20, at))
		assert.False(t, changed)
		at += time.Second
	}
	_, changed := c.Observe(sample(6, 20, at))
	assert.True(t, changed)
}

func TestObserve_RhythmicToAmbient(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		peaks   int
		changes bool
	}{
		{"quiet onset", 2.0, 20, true},
		{"too few peaks", 5.0, 4, true},
		{"strong onset enough peaks", 5.0, 12, false},
		{"between thresholds", 3.5, 12, false},
		{"peaks unknown", 5.0, NoPeaks, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(DefaultOptions(), start)
			changed := false
			for i := range 6 {
				_, ch := c.Observe(sample(tt.value, tt.peaks, 4*time.Second+time.Duration(i)*time.Second))
				changed = changed || ch
			}
			assert.Equal(t, tt.changes, changed)
			if tt.changes {
				assert.Equal(t, Ambient, c.Mode())
			} else {
				assert.Equal(t, Rhythmic, c.Mode())
			}
		})
	}
}

func TestObserve_PeakConditionDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.MinPeaks = 0
	c := New(opts, start)
	for i := range 6 {
		_, changed := c.Observe(sample(5.0, 0, 4*time.Second+time.Duration(i)*time.Second))
		assert.False(t, changed)
	}
}

func TestObserve_TimeGateCountsFromLastTransition(t *testing.T) {
	c := ambientClassifier()
	at := 4 * time.Second
	var first Transition
	for {
		tr, changed := c.Observe(sample(6, 20, at))
		at += 200 * time.Millisecond
		if changed {
			first = tr
			break
		}
	}

	// now rhythmic; quiet samples right away must wait for the buffer
	for i := range 10 {
		_, changed := c.Observe(sample(1, 20, first.At.Sub(start)+time.Duration(i+1)*200*time.Millisecond))
		assert.False(t, changed)
	}
	_, changed := c.Observe(sample(1, 20, first.At.Sub(start)+3100*time.Millisecond))
	assert.True(t, changed)
	assert.Equal(t, Ambient, c.Mode())
}

func TestHistory_IsBounded(t *testing.T) {
	opts := DefaultOptions()
	opts.HistorySize = 5
	c := New(opts, start)
	for i := range 12 {
		c.Observe(sample(float64(i), 20, 0))
	}
	assert.Equal(t, []float64{7, 8, 9, 10, 11}, c.History())
}
