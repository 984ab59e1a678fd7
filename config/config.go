// Package config reads and validates the YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lautenbacher.net/ble2led/classifier"
	u "lautenbacher.net/ble2led/util"
)

// CONFILE is the configuration file used when none is given.
const CONFILE = "ble2led.yml"

type LoggingConfig struct {
	Level  string `yaml:"Level"`
	Format string `yaml:"Format"`
	File   string `yaml:"File"`
}

type SchedulerConfig struct {
	Debounce time.Duration `yaml:"Debounce"`
}

type ClassifierConfig struct {
	High           float64       `yaml:"High"`
	Low            float64       `yaml:"Low"`
	StableFrames   int           `yaml:"StableFrames"`
	BufferDuration time.Duration `yaml:"BufferDuration"`
	MinPeaks       int           `yaml:"MinPeaks"`
	HistorySize    int           `yaml:"HistorySize"`
	InitialMode    string        `yaml:"InitialMode"`
}

type AmbientConfig struct {
	MinDB     float64 `yaml:"MinDB"`
	MaxDB     float64 `yaml:"MaxDB"`
	AccentRGB []int   `yaml:"AccentRGB"`
}

type FixtureConfig struct {
	Address string `yaml:"Address"`
	Name    string `yaml:"Name"`
}

type ArtNetConfig struct {
	Target   string `yaml:"Target"`
	Universe uint16 `yaml:"Universe"`
}

type TransportConfig struct {
	// sim or artnet
	Kind   string       `yaml:"Kind"`
	ArtNet ArtNetConfig `yaml:"ArtNet"`
}

type RedisConfig struct {
	Enabled bool   `yaml:"Enabled"`
	Addr    string `yaml:"Addr"`
	Channel string `yaml:"Channel"`
}

type MIDIConfig struct {
	Enabled bool   `yaml:"Enabled"`
	Port    string `yaml:"Port"`
	// -1 accepts every note
	BeatNote int `yaml:"BeatNote"`
	// -1 disables mode switching
	ModeCC int `yaml:"ModeCC"`
}

type GPIOConfig struct {
	Enabled  bool          `yaml:"Enabled"`
	Pin      int           `yaml:"Pin"`
	Debounce time.Duration `yaml:"Debounce"`
}

type AudioConfig struct {
	Enabled         bool          `yaml:"Enabled"`
	Device          string        `yaml:"Device"`
	SampleRate      int           `yaml:"SampleRate"`
	FramesPerBuffer int           `yaml:"FramesPerBuffer"`
	UpdateFreq      time.Duration `yaml:"UpdateFreq"`
}

type EventsConfig struct {
	Redis RedisConfig `yaml:"Redis"`
	MIDI  MIDIConfig  `yaml:"MIDI"`
	GPIO  GPIOConfig  `yaml:"GPIO"`
	Audio AudioConfig `yaml:"Audio"`
}

type PlaylistConfig struct {
	File  string `yaml:"File"`
	Watch bool   `yaml:"Watch"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"Enabled"`
	Addr    string `yaml:"Addr"`
}

type Config struct {
	Logging    LoggingConfig    `yaml:"Logging"`
	Scheduler  SchedulerConfig  `yaml:"Scheduler"`
	Classifier ClassifierConfig `yaml:"Classifier"`
	Ambient    AmbientConfig    `yaml:"Ambient"`
	Fixtures   []FixtureConfig  `yaml:"Fixtures"`
	Transport  TransportConfig  `yaml:"Transport"`
	Events     EventsConfig     `yaml:"Events"`
	Playlist   PlaylistConfig   `yaml:"Playlist"`
	HTTP       HTTPConfig       `yaml:"HTTP"`
}

// Default returns a configuration with every tunable at its default.
// It has no fixtures, so it does not validate on its own.
func Default() *Config {
	opts := classifier.DefaultOptions()
	return &Config{
		Logging:   LoggingConfig{Level: "INFO", Format: "text"},
		Scheduler: SchedulerConfig{Debounce: 2 * time.Millisecond},
		Classifier: ClassifierConfig{
			High:           opts.High,
			Low:            opts.Low,
			StableFrames:   opts.StableFrames,
			BufferDuration: opts.BufferDuration,
			MinPeaks:       opts.MinPeaks,
			HistorySize:    opts.HistorySize,
			InitialMode:    opts.InitialMode.String(),
		},
		Ambient:   AmbientConfig{MinDB: -50, MaxDB: -10, AccentRGB: []int{255, 0, 128}},
		Transport: TransportConfig{Kind: "sim", ArtNet: ArtNetConfig{Target: "255.255.255.255:6454"}},
		Events: EventsConfig{
			Redis: RedisConfig{Addr: "localhost:6379", Channel: "ble2led:events"},
			MIDI:  MIDIConfig{BeatNote: -1, ModeCC: -1},
			GPIO:  GPIOConfig{Pin: 17, Debounce: 80 * time.Millisecond},
			Audio: AudioConfig{
				Device:          "default",
				SampleRate:      44100,
				FramesPerBuffer: 1024,
				UpdateFreq:      50 * time.Millisecond,
			},
		},
		Playlist: PlaylistConfig{File: "playlist.json", Watch: true},
		HTTP:     HTTPConfig{Addr: ":8080"},
	}
}

// ReadConfig reads cfile over the defaults and validates the result.
func ReadConfig(cfile string) (*Config, error) {
	data, err := os.ReadFile(cfile)
	if err != nil {
		return nil, fmt.Errorf("can't read config file %s: %w", cfile, err)
	}
	conf := Default()
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", cfile, err)
	}
	return conf, nil
}

// ClassifierOptions converts the classifier section. Validate has
// checked the mode name already.
func (c *Config) ClassifierOptions() classifier.Options {
	mode, _ := classifier.ParseMode(c.Classifier.InitialMode)
	return classifier.Options{
		High:           c.Classifier.High,
		Low:            c.Classifier.Low,
		StableFrames:   c.Classifier.StableFrames,
		BufferDuration: c.Classifier.BufferDuration,
		MinPeaks:       c.Classifier.MinPeaks,
		HistorySize:    c.Classifier.HistorySize,
		InitialMode:    mode,
	}
}

// Accent returns the accent colour as a fixed triple.
func (c *Config) Accent() [3]int {
	return [3]int{c.Ambient.AccentRGB[0], c.Ambient.AccentRGB[1], c.Ambient.AccentRGB[2]}
}

// Addresses returns the fixture addresses in configuration order.
func (c *Config) Addresses() []string {
	ret := make([]string, len(c.Fixtures))
	for i, f := range c.Fixtures {
		ret[i] = f.Address
	}
	return ret
}

func validateRGB(name string, rgb []int) error {
	if len(rgb) != 3 {
		return fmt.Errorf("%s must have 3 elements, got %d", name, len(rgb))
	}
	for i, v := range rgb {
		if !u.InRange(v, 0, 255) {
			return fmt.Errorf("%s[%d] must be between 0 and 255, got %d", name, i, v)
		}
	}
	return nil
}

func validatePositive(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, d)
	}
	return nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("Logging.Level must be one of DEBUG, INFO, WARN, ERROR, got %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("Logging.Format must be text or json, got %q", c.Logging.Format))
	}

	if err := validatePositive("Scheduler.Debounce", c.Scheduler.Debounce); err != nil {
		errs = append(errs, err)
	}

	cl := c.Classifier
	if cl.Low >= cl.High {
		errs = append(errs, fmt.Errorf("Classifier.Low (%v) must be below Classifier.High (%v)", cl.Low, cl.High))
	}
	if cl.StableFrames < 0 {
		errs = append(errs, fmt.Errorf("Classifier.StableFrames must not be negative, got %d", cl.StableFrames))
	}
	if cl.BufferDuration < 0 {
		errs = append(errs, fmt.Errorf("Classifier.BufferDuration must not be negative, got %s", cl.BufferDuration))
	}
	if cl.MinPeaks < 0 {
		errs = append(errs, fmt.Errorf("Classifier.MinPeaks must not be negative, got %d", cl.MinPeaks))
	}
	if cl.HistorySize <= 0 {
		errs = append(errs, fmt.Errorf("Classifier.HistorySize must be positive, got %d", cl.HistorySize))
	}
	if _, err := classifier.ParseMode(cl.InitialMode); err != nil {
		errs = append(errs, fmt.Errorf("Classifier.InitialMode: %w", err))
	}

	if c.Ambient.MinDB >= c.Ambient.MaxDB {
		errs = append(errs, fmt.Errorf("Ambient.MinDB (%v) must be below Ambient.MaxDB (%v)", c.Ambient.MinDB, c.Ambient.MaxDB))
	}
	if err := validateRGB("Ambient.AccentRGB", c.Ambient.AccentRGB); err != nil {
		errs = append(errs, err)
	}

	if len(c.Fixtures) == 0 {
		errs = append(errs, errors.New("at least one fixture must be configured"))
	}
	seen := make(map[string]bool)
	for i, f := range c.Fixtures {
		if f.Address == "" {
			errs = append(errs, fmt.Errorf("Fixtures[%d].Address must not be empty", i))
			continue
		}
		if seen[f.Address] {
			errs = append(errs, fmt.Errorf("Fixtures[%d].Address %s is configured twice", i, f.Address))
		}
		seen[f.Address] = true
	}

	switch c.Transport.Kind {
	case "sim":
	case "artnet":
		if c.Transport.ArtNet.Target == "" {
			errs = append(errs, errors.New("Transport.ArtNet.Target must be set for the artnet transport"))
		}
		if c.Transport.ArtNet.Universe > 0x7fff {
			errs = append(errs, fmt.Errorf("Transport.ArtNet.Universe must be at most 32767, got %d", c.Transport.ArtNet.Universe))
		}
	default:
		errs = append(errs, fmt.Errorf("Transport.Kind must be sim or artnet, got %q", c.Transport.Kind))
	}

	ev := c.Events
	if ev.Redis.Enabled && ev.Redis.Addr == "" {
		errs = append(errs, errors.New("Events.Redis.Addr must be set when Redis is enabled"))
	}
	if ev.MIDI.Enabled {
		if ev.MIDI.Port == "" {
			errs = append(errs, errors.New("Events.MIDI.Port must be set when MIDI is enabled"))
		}
		if ev.MIDI.BeatNote < -1 || ev.MIDI.BeatNote > 127 {
			errs = append(errs, fmt.Errorf("Events.MIDI.BeatNote must be between -1 and 127, got %d", ev.MIDI.BeatNote))
		}
		if ev.MIDI.ModeCC < -1 || ev.MIDI.ModeCC > 127 {
			errs = append(errs, fmt.Errorf("Events.MIDI.ModeCC must be between -1 and 127, got %d", ev.MIDI.ModeCC))
		}
	}
	if ev.GPIO.Enabled && (ev.GPIO.Pin < 0 || ev.GPIO.Pin > 27) {
		errs = append(errs, fmt.Errorf("Events.GPIO.Pin must be between 0 and 27, got %d", ev.GPIO.Pin))
	}
	if ev.Audio.Enabled {
		if ev.Audio.SampleRate <= 0 || ev.Audio.FramesPerBuffer <= 0 {
			errs = append(errs, errors.New("Events.Audio.SampleRate and FramesPerBuffer must be positive"))
		}
		if err := validatePositive("Events.Audio.UpdateFreq", ev.Audio.UpdateFreq); err != nil {
			errs = append(errs, err)
		}
	}

	if c.HTTP.Enabled && c.Playlist.File == "" {
		errs = append(errs, errors.New("HTTP requires Playlist.File to be set"))
	}
	if c.Playlist.Watch && c.Playlist.File == "" {
		errs = append(errs, errors.New("Playlist.Watch requires Playlist.File to be set"))
	}

	return errors.Join(errs...)
}
