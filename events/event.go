// Package events defines the events that drive the sequencer and the
// sources producing them.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind names the type of an Event on the wire.
type Kind string

const (
	// Beat is a discrete beat, no payload.
	Beat Kind = "beat"
	// Onset carries an onset strength in Value and optionally a peak
	// count.
	Onset Kind = "onset"
	// Volume carries a level in dB in Value.
	Volume Kind = "volume"
	// ModeOverride switches beat stepping on or off explicitly.
	ModeOverride Kind = "mode"
	// Blackout turns every device off.
	Blackout Kind = "blackout"
)

var ErrInvalidEvent = errors.New("invalid event")

// Event is the envelope shared by all sources and the Redis bus.
type Event struct {
	ID    string  `json:"id"`
	Kind  Kind    `json:"kind"`
	Value float64 `json:"value,omitempty"`
	// nil when the source does not count peaks
	Peaks     *int      `json:"peaks,omitempty"`
	Beat      bool      `json:"beat,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates an event of kind stamped with a fresh id and the current
// time.
func New(kind Kind) Event {
	return Event{ID: uuid.NewString(), Kind: kind, Timestamp: time.Now()}
}

func NewBeat() Event {
	return New(Beat)
}

func NewOnset(value float64, peaks int) Event {
	e := New(Onset)
	e.Value = value
	e.Peaks = &peaks
	return e
}

func NewVolume(db float64) Event {
	e := New(Volume)
	e.Value = db
	return e
}

func NewModeOverride(useBeat bool) Event {
	e := New(ModeOverride)
	e.Beat = useBeat
	return e
}

func NewBlackout() Event {
	return New(Blackout)
}

// Validate checks that the kind is known.
func (e Event) Validate() error {
	switch e.Kind {
	case Beat, Onset, Volume, ModeOverride, Blackout:
		return nil
	}
	return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
}

// Decode parses an envelope. A missing timestamp is set to now.
func Decode(raw []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return e, nil
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Source produces events until ctx is done or it fails.
type Source interface {
	Name() string
	Run(ctx context.Context, out chan<- Event) error
}

// emit hands e to out unless ctx is done first.
func emit(ctx context.Context, out chan<- Event, e Event) bool {
	select {
	case out <- e:
		return true
	case <-ctx.Done():
		return false
	}
}
