package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

const pedalPoll = 2 * time.Millisecond

// PedalSource reads a foot switch wired between a GPIO pin and ground.
// The pin is pulled up; every falling edge is a beat, as long as the
// previous one is at least debounce ago.
type PedalSource struct {
	pin      int
	debounce time.Duration
	// overridden in tests
	open  func() error
	close func() error
	setup func()
	read  func() rpio.State
}

func NewPedalSource(pin int, debounce time.Duration) *PedalSource {
	p := rpio.Pin(pin)
	return &PedalSource{
		pin:      pin,
		debounce: debounce,
		open:     rpio.Open,
		close:    rpio.Close,
		setup: func() {
			p.Input()
			p.PullUp()
		},
		read: p.Read,
	}
}

func (s *PedalSource) Name() string {
	return fmt.Sprintf("gpio:%d", s.pin)
}

func (s *PedalSource) Run(ctx context.Context, out chan<- Event) error {
	if err := s.open(); err != nil {
		return fmt.Errorf("failed to open rpio: %w", err)
	}
	defer func() {
		if err := s.close(); err != nil {
			slog.Error("Events: closing rpio failed", "error", err)
		}
	}()
	s.setup()
	slog.Info("Events: watching pedal", "pin", s.pin)

	ticker := time.NewTicker(pedalPoll)
	defer ticker.Stop()
	last := rpio.High
	var lastBeat time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			state := s.read()
			if last == rpio.High && state == rpio.Low && now.Sub(lastBeat) >= s.debounce {
				lastBeat = now
				if !emit(ctx, out, NewBeat()) {
					return nil
				}
			}
			last = state
		}
	}
}
