package playlist

import (
	"log/slog"
	"sync"

	"lautenbacher.net/ble2led/fixture"
)

// Sequencer steps through a Playlist. A nil playlist means nothing is
// loaded; applying a step is then a reported no-op.
type Sequencer struct {
	mu       sync.Mutex
	playlist *Playlist
	current  int
}

func NewSequencer(p *Playlist) *Sequencer {
	return &Sequencer{playlist: p}
}

// Load replaces the playlist wholesale and starts over at the first
// step.
func (s *Sequencer) Load(p *Playlist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlist = p
	s.current = 0
	slog.Info("Sequencer: playlist loaded", "steps", p.Len())
}

// Reset returns to the first step.
func (s *Sequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = 0
}

func (s *Sequencer) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playlist.Len()
}

func (s *Sequencer) Playlist() *Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playlist
}

// ApplyCurrentStep pushes the current step to devices and advances to
// the next step, wrapping at the end. Records whose id does not name
// one of devices are skipped. It returns the index of the applied step
// and false if no playlist is loaded.
func (s *Sequencer) ApplyCurrentStep(devices []fixture.LogicalDevice) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playlist.Len() == 0 {
		slog.Warn("Sequencer: nothing to apply", "error", ErrNoStepsLoaded)
		return 0, false
	}

	applied := s.current
	for _, r := range s.playlist.Steps[applied] {
		index := r.ID - 1
		if index < 0 || index >= len(devices) {
			continue
		}
		applyRecord(devices[index], r)
	}
	s.current = (s.current + 1) % len(s.playlist.Steps)
	slog.Debug("Sequencer: applied step", "step", applied+1, "of", len(s.playlist.Steps))
	return applied, true
}

// applyRecord sets colour, dimmer and strobe of d. Values were checked
// on load, so an error here comes from a fixture that went away.
func applyRecord(d fixture.LogicalDevice, r Record) {
	if err := d.SetRGB(r.R, r.G, r.B); err != nil {
		slog.Warn("Sequencer: setting colour failed", "device", d.Name(), "error", err)
		return
	}
	if err := d.SetDim(r.Dim); err != nil {
		slog.Warn("Sequencer: setting dim failed", "device", d.Name(), "error", err)
		return
	}
	if err := d.SetStrobe(r.Strobe); err != nil {
		slog.Warn("Sequencer: setting strobe failed", "device", d.Name(), "error", err)
	}
}
