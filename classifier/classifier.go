// Package classifier decides from a stream of onset-strength samples
// whether the music is currently rhythmic or ambient.
package classifier

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gammazero/deque"
)

// Mode is the driving mode of the sequencer.
type Mode int

const (
	// Rhythmic advances the playlist one step per beat.
	Rhythmic Mode = iota
	// Ambient follows the volume continuously.
	Ambient
)

func (m Mode) String() string {
	switch m {
	case Rhythmic:
		return "rhythmic"
	case Ambient:
		return "ambient"
	default:
		return "unknown"
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "rhythmic", "beat", "beats":
		return Rhythmic, nil
	case "ambient", "volume":
		return Ambient, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// NoPeaks marks a sample whose source does not report a peak count.
// Such samples never satisfy the peak condition.
const NoPeaks = -1

// OnsetSample is one onset-strength measurement of the audio analysis.
type OnsetSample struct {
	Value float64
	// number of onset peaks the analysis found in its current window,
	// or NoPeaks
	Peaks     int
	Timestamp time.Time
}

// Transition is emitted when the classifier switches mode.
type Transition struct {
	From, To Mode
	At       time.Time
}

// Options tunes the hysteresis.
type Options struct {
	// onset strength above which a sample counts towards Rhythmic
	High float64
	// onset strength below which a sample counts towards Ambient
	Low float64
	// consecutive qualifying samples required, exclusive
	StableFrames int
	// minimum time since the previous transition, exclusive
	BufferDuration time.Duration
	// a peak count below this qualifies a sample for Ambient; 0
	// disables the peak condition
	MinPeaks    int
	HistorySize int
	InitialMode Mode
}

// DefaultOptions returns the thresholds the classifier was tuned with.
func DefaultOptions() Options {
	return Options{
		High:           4.5,
		Low:            3.0,
		StableFrames:   3,
		BufferDuration: 3 * time.Second,
		MinPeaks:       9,
		HistorySize:    100,
		InitialMode:    Rhythmic,
	}
}

// Classifier is a hysteresis state machine. It is not safe for
// concurrent use; the controller owns it.
type Classifier struct {
	opts           Options
	mode           Mode
	stableFrames   int
	lastTransition time.Time
	history        *deque.Deque[float64]
}

// New creates a classifier in opts.InitialMode. start counts as the
// time of the last transition, so no switch happens within the first
// BufferDuration.
func New(opts Options, start time.Time) *Classifier {
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultOptions().HistorySize
	}
	return &Classifier{
		opts:           opts,
		mode:           opts.InitialMode,
		lastTransition: start,
		history:        new(deque.Deque[float64]),
	}
}

func (c *Classifier) Mode() Mode {
	return c.mode
}

func (c *Classifier) StableFrames() int {
	return c.stableFrames
}

func (c *Classifier) LastTransition() time.Time {
	return c.lastTransition
}

// History returns the most recent onset values, oldest first.
func (c *Classifier) History() []float64 {
	ret := make([]float64, c.history.Len())
	for i := range ret {
		ret[i] = c.history.At(i)
	}
	return ret
}

// qualifies reports whether s argues for leaving the current mode.
func (c *Classifier) qualifies(s OnsetSample) bool {
	switch c.mode {
	case Ambient:
		return s.Value > c.opts.High
	case Rhythmic:
		if s.Value < c.opts.Low {
			return true
		}
		return c.opts.MinPeaks > 0 && s.Peaks != NoPeaks && s.Peaks < c.opts.MinPeaks
	}
	return false
}

// Observe consumes one sample, timestamped by the sample itself. It
// returns the transition if the sample caused one.
func (c *Classifier) Observe(s OnsetSample) (Transition, bool) {
	c.history.PushBack(s.Value)
	for c.history.Len() > c.opts.HistorySize {
		c.history.PopFront()
	}

	if !c.qualifies(s) {
		c.stableFrames = 0
		return Transition{}, false
	}
	c.stableFrames++
	if c.stableFrames <= c.opts.StableFrames || s.Timestamp.Sub(c.lastTransition) <= c.opts.BufferDuration {
		return Transition{}, false
	}

	t := Transition{From: c.mode, To: Rhythmic, At: s.Timestamp}
	if c.mode == Rhythmic {
		t.To = Ambient
	}
	c.mode = t.To
	c.stableFrames = 0
	c.lastTransition = s.Timestamp
	slog.Info("Classifier: mode changed", "from", t.From, "to", t.To, "onset", s.Value)
	return t, true
}
