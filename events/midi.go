package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// AnyNote makes every note-on count as a beat.
const AnyNote = -1

// MIDISource turns a MIDI input into events: a note-on of the beat
// note is a beat, the mode controller switches beat stepping on (value
// >= 64) or off.
type MIDISource struct {
	port     string
	beatNote int
	modeCC   int
}

// NewMIDISource listens on the first input port whose name contains
// port (case-insensitive). A negative modeCC disables mode switching.
func NewMIDISource(port string, beatNote, modeCC int) *MIDISource {
	return &MIDISource{port: port, beatNote: beatNote, modeCC: modeCC}
}

func (s *MIDISource) Name() string {
	return "midi:" + s.port
}

func findInPort(name string) (drivers.In, error) {
	want := strings.ToLower(name)
	var seen []string
	for _, in := range gomidi.GetInPorts() {
		if strings.Contains(strings.ToLower(in.String()), want) {
			return in, nil
		}
		seen = append(seen, in.String())
	}
	return nil, fmt.Errorf("no MIDI input matching %q (available: %s)", name, strings.Join(seen, ", "))
}

func (s *MIDISource) Run(ctx context.Context, out chan<- Event) error {
	in, err := findInPort(s.port)
	if err != nil {
		return err
	}
	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		e, ok := s.translate(msg)
		if !ok {
			return
		}
		// never block the driver's callback
		select {
		case out <- e:
		default:
			slog.Warn("Events: dropping MIDI event, controller busy", "kind", e.Kind)
		}
	})
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer stop()
	slog.Info("Events: listening on MIDI", "port", in.String())
	<-ctx.Done()
	return nil
}

// translate maps one MIDI message to an event.
func (s *MIDISource) translate(msg gomidi.Message) (Event, bool) {
	var channel, note, velocity, cc, value uint8
	switch {
	case msg.GetNoteOn(&channel, &note, &velocity):
		if velocity == 0 {
			// note-on with velocity 0 is a note-off
			return Event{}, false
		}
		if s.beatNote != AnyNote && int(note) != s.beatNote {
			return Event{}, false
		}
		return NewBeat(), true
	case msg.GetControlChange(&channel, &cc, &value):
		if s.modeCC < 0 || int(cc) != s.modeCC {
			return Event{}, false
		}
		return NewModeOverride(value >= 64), true
	}
	return Event{}, false
}
