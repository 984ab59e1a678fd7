//go:build !cgo

package events

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// AudioSource is a stub for builds without cgo.
type AudioSource struct {
	device string
}

func NewAudioSource(device string, sampleRate, framesPerBuffer int, updateFreq time.Duration) *AudioSource {
	return &AudioSource{device: device}
}

func (s *AudioSource) Name() string {
	return "audio:" + s.device
}

func (s *AudioSource) Run(ctx context.Context, out chan<- Event) error {
	slog.Warn("Events: Audio support is disabled in this build (requires CGO).")
	return errors.New("audio input requires a cgo build")
}
