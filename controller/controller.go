// Package controller owns the classifier and the sequencer and feeds
// them the incoming events from a single goroutine.
package controller

import (
	"context"
	"log/slog"
	"time"

	"lautenbacher.net/ble2led/classifier"
	"lautenbacher.net/ble2led/events"
	"lautenbacher.net/ble2led/fixture"
	"lautenbacher.net/ble2led/playlist"
	u "lautenbacher.net/ble2led/util"
)

// Options configures the ambient rendition.
type Options struct {
	MinDB, MaxDB float64
	// colour pushed to every device while following the volume
	Accent [3]int
}

func DefaultOptions() Options {
	return Options{MinDB: -50, MaxDB: -10, Accent: [3]int{255, 0, 128}}
}

// State is what the controller reports to observers after every event.
type State struct {
	Mode       classifier.Mode
	UseBeat    bool
	Step       int
	Steps      int
	Brightness int
	Beats      int
}

// Controller is an actor: Run is the only goroutine touching the
// classifier, the sequencer position and useBeat. Everything else
// talks to it through Events and LoadPlaylist.
type Controller struct {
	devices    []fixture.LogicalDevice
	classifier *classifier.Classifier
	sequencer  *playlist.Sequencer
	opts       Options

	useBeat bool
	state   State

	events    chan events.Event
	playlists chan *playlist.Playlist
	reported  *u.Latest[State]
	// closed when Run returns
	done chan struct{}
}

// New creates a controller driving devices. Beat stepping starts on if
// the classifier starts in rhythmic mode.
func New(devices []fixture.LogicalDevice, c *classifier.Classifier, s *playlist.Sequencer, opts Options) *Controller {
	inst := &Controller{
		devices:    devices,
		classifier: c,
		sequencer:  s,
		opts:       opts,
		useBeat:    c.Mode() == classifier.Rhythmic,
		events:     make(chan events.Event, 64),
		playlists:  make(chan *playlist.Playlist, 1),
		reported:   u.NewLatest[State](),
		done:       make(chan struct{}),
	}
	inst.state = State{Mode: c.Mode(), UseBeat: inst.useBeat, Steps: s.Len()}
	inst.reported.Send(inst.state)
	return inst
}

// Events is where sources deliver their events.
func (c *Controller) Events() chan<- events.Event {
	return c.events
}

// LoadPlaylist replaces the playlist between two events. It does not
// wait for the switch to happen. Once Run has returned the playlist is
// dropped.
func (c *Controller) LoadPlaylist(p *playlist.Playlist) {
	select {
	case c.playlists <- p:
	case <-c.done:
		slog.Warn("Controller: stopped, playlist dropped", "steps", p.Len())
	}
}

// States reports state changes; only the latest one is kept.
func (c *Controller) States() *u.Latest[State] {
	return c.reported
}

// Run processes events until ctx is done. Nothing an event carries
// stops the loop.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)
	slog.Info("Controller: running", "devices", len(c.devices), "useBeat", c.useBeat)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Controller: stopped")
			return
		case p := <-c.playlists:
			c.sequencer.Load(p)
		case e := <-c.events:
			c.handle(e)
		}
		c.publish()
	}
}

func (c *Controller) handle(e events.Event) {
	switch e.Kind {
	case events.Beat:
		c.onBeat()
	case events.Onset:
		peaks := classifier.NoPeaks
		if e.Peaks != nil {
			peaks = *e.Peaks
		}
		c.onOnset(classifier.OnsetSample{Value: e.Value, Peaks: peaks, Timestamp: e.Timestamp})
	case events.Volume:
		c.onVolume(e.Value)
	case events.ModeOverride:
		c.useBeat = e.Beat
		slog.Info("Controller: beat stepping overridden", "useBeat", c.useBeat)
	case events.Blackout:
		c.blackout()
	default:
		slog.Warn("Controller: ignoring event", "kind", e.Kind, "id", e.ID)
	}
}

// onBeat advances exactly one step per beat while beat stepping is on.
func (c *Controller) onBeat() {
	c.state.Beats++
	if !c.useBeat {
		return
	}
	c.sequencer.ApplyCurrentStep(c.devices)
}

func (c *Controller) onOnset(s classifier.OnsetSample) {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	if t, changed := c.classifier.Observe(s); changed {
		c.useBeat = t.To == classifier.Rhythmic
	}
}

// onVolume follows the level with the accent colour while beat
// stepping is off.
func (c *Controller) onVolume(db float64) {
	if c.useBeat {
		return
	}
	brightness, err := Brightness(db, c.opts.MinDB, c.opts.MaxDB)
	if err != nil {
		slog.Debug("Controller: volume sample replaced by 0", "error", err)
	}
	c.state.Brightness = brightness
	for _, d := range c.devices {
		if err := d.SetRGB(c.opts.Accent[0], c.opts.Accent[1], c.opts.Accent[2]); err != nil {
			slog.Warn("Controller: setting accent failed", "device", d.Name(), "error", err)
			continue
		}
		if err := d.SetDim(brightness); err != nil {
			slog.Warn("Controller: setting dim failed", "device", d.Name(), "error", err)
			continue
		}
		if err := d.SetStrobe(0); err != nil {
			slog.Warn("Controller: setting strobe failed", "device", d.Name(), "error", err)
		}
	}
}

func (c *Controller) blackout() {
	slog.Info("Controller: blackout")
	for _, d := range c.devices {
		for _, err := range []error{d.SetRGB(0, 0, 0), d.SetDim(0), d.SetStrobe(0)} {
			if err != nil {
				slog.Warn("Controller: blackout failed", "device", d.Name(), "error", err)
				break
			}
		}
	}
	c.state.Brightness = 0
}

func (c *Controller) publish() {
	c.state.Mode = c.classifier.Mode()
	c.state.UseBeat = c.useBeat
	c.state.Step = c.sequencer.CurrentIndex()
	c.state.Steps = c.sequencer.Len()
	c.reported.Send(c.state)
}
