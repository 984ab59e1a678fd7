//go:build cgo

package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

var (
	paMutex sync.Mutex
	paUsers int
)

// AudioSource measures the level of an audio input and reports it as
// Volume events every updateFreq.
type AudioSource struct {
	device          string
	sampleRate      int
	framesPerBuffer int
	updateFreq      time.Duration
}

// NewAudioSource reads from the first input device whose name contains
// device (case-insensitive).
func NewAudioSource(device string, sampleRate, framesPerBuffer int, updateFreq time.Duration) *AudioSource {
	return &AudioSource{
		device:          strings.ToLower(device),
		sampleRate:      sampleRate,
		framesPerBuffer: framesPerBuffer,
		updateFreq:      updateFreq,
	}
}

func (s *AudioSource) Name() string {
	return "audio:" + s.device
}

func acquirePortAudio() error {
	paMutex.Lock()
	defer paMutex.Unlock()
	if paUsers == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize portaudio: %w", err)
		}
		slog.Info("Events: PortAudio initialized.")
	}
	paUsers++
	return nil
}

func releasePortAudio() {
	paMutex.Lock()
	defer paMutex.Unlock()
	paUsers--
	if paUsers == 0 {
		if err := portaudio.Terminate(); err != nil {
			slog.Error("Events: failed to terminate portaudio", "error", err)
			return
		}
		slog.Info("Events: PortAudio terminated.")
	}
}

func (s *AudioSource) Run(ctx context.Context, out chan<- Event) error {
	if err := acquirePortAudio(); err != nil {
		return err
	}
	defer releasePortAudio()

	inDevice, err := s.findDevice()
	if err != nil {
		return err
	}
	slog.Info("Events: measuring audio", "device", inDevice.Name, "sampleRate", s.sampleRate, "framesPerBuffer", s.framesPerBuffer)

	buffer := make([]float32, s.framesPerBuffer*inDevice.MaxInputChannels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   inDevice,
			Channels: inDevice.MaxInputChannels,
			Latency:  inDevice.DefaultLowInputLatency,
		},
		SampleRate:      float64(s.sampleRate),
		FramesPerBuffer: s.framesPerBuffer,
	}, buffer)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	defer stream.Stop()

	ticker := time.NewTicker(s.updateFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := stream.Read(); err != nil {
				// e.g. portaudio.InputOverflowed, the buffer is still usable
				slog.Debug("Events: audio read", "error", err)
			}
			db := rmsToDB(calculateRMS(mixdown(buffer, inDevice.MaxInputChannels)))
			if !emit(ctx, out, NewVolume(db)) {
				return nil
			}
		}
	}
}

func (s *AudioSource) findDevice() (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("could not list audio devices: %w", err)
	}
	for _, device := range devices {
		if device.MaxInputChannels > 0 && strings.Contains(strings.ToLower(device.Name), s.device) {
			return device, nil
		}
	}
	return nil, fmt.Errorf("no audio input device matching %q", s.device)
}
