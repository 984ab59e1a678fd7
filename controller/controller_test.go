package controller

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lautenbacher.net/ble2led/classifier"
	"lautenbacher.net/ble2led/events"
	"lautenbacher.net/ble2led/fixture"
	"lautenbacher.net/ble2led/playlist"
	"lautenbacher.net/ble2led/transport"
)

const testDebounce = 20 * time.Millisecond

const twoSteps = `{"type": "ble2led", "steps": [
	[{"id": 1, "r": 255, "g": 0, "b": 0, "d": 200, "s": 0}, {"id": 2, "r": 0, "g": 0, "b": 255, "d": 100, "s": 0}],
	[{"id": 1, "r": 0, "g": 255, "b": 0, "d": 50, "s": 5}, {"id": 2, "r": 9, "g": 9, "b": 9, "d": 9, "s": 9}]
]}`

var start = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

type rig struct {
	sim        *transport.Sim
	scheduler  *fixture.WorkerScheduler
	devices    []fixture.LogicalDevice
	controller *Controller
}

func newRig(t *testing.T, mode classifier.Mode, show string) *rig {
	t.Helper()
	sim := transport.NewSim("A")
	sched := fixture.NewWorkerScheduler(sim, testDebounce)
	t.Cleanup(sched.Close)
	_, err := sched.Connect("A")
	require.NoError(t, err)

	var p *playlist.Playlist
	if show != "" {
		p, err = playlist.Load([]byte(show))
		require.NoError(t, err)
	}
	opts := classifier.DefaultOptions()
	opts.InitialMode = mode
	devices := fixture.Devices(sched, []string{"A"})
	c := New(devices, classifier.New(opts, start), playlist.NewSequencer(p), DefaultOptions())
	return &rig{sim: sim, scheduler: sched, devices: devices, controller: c}
}

func (r *rig) light(t *testing.T, i int) fixture.Light {
	t.Helper()
	l, err := r.devices[i].State()
	require.NoError(t, err)
	return l
}

func TestBrightness(t *testing.T) {
	tests := []struct {
		db   float64
		want int
	}{
		{-50, 0},
		{-10, 255},
		{-30, 127},
		{-80, 0},
		{0, 255},
		{-40, 63},
	}
	for _, tt := range tests {
		got, err := Brightness(tt.db, -50, -10)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "db=%v", tt.db)
	}

	for _, db := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		got, err := Brightness(db, -50, -10)
		assert.ErrorIs(t, err, ErrInvalidVolumeSample)
		assert.Equal(t, 0, got)
	}

	_, err := Brightness(-20, -10, -10)
	assert.ErrorIs(t, err, ErrInvalidVolumeSample)
}

func TestHandle_BeatsStepThroughPlaylist(t *testing.T) {
	r := newRig(t, classifier.Rhythmic, twoSteps)
	c := r.controller
	seq := c.sequencer

	c.handle(events.NewBeat())
	assert.Equal(t, fixture.Light{R: 255, Dim: 200}, r.light(t, 0))
	assert.Equal(t, fixture.Light{B: 255, Dim: 100}, r.light(t, 1))
	assert.Equal(t, 1, seq.CurrentIndex())

	c.handle(events.NewBeat())
	assert.Equal(t, fixture.Light{G: 255, Dim: 50, Strobe: 5}, r.light(t, 0))
	assert.Equal(t, fixture.Light{R: 9, G: 9, B: 9, Dim: 9, Strobe: 9}, r.light(t, 1))
	assert.Equal(t, 0, seq.CurrentIndex())

	c.handle(events.NewBeat())
	assert.Equal(t, fixture.Light{R: 255, Dim: 200}, r.light(t, 0), "third beat wraps to step 1")
	assert.Equal(t, 1, seq.CurrentIndex())

	time.Sleep(5 * testDebounce)
	packets := r.sim.PacketsFor("A")
	require.Len(t, packets, 1, "three quick beats coalesce on the wire")
	assert.Equal(t, []byte{255, 0, 0, 200, 0, 0, 0, 255, 100, 0}, packets[0])
}

func TestHandle_BeatIgnoredInAmbient(t *testing.T) {
	r := newRig(t, classifier.Ambient, twoSteps)
	r.controller.handle(events.NewBeat())
	assert.Equal(t, 0, r.controller.sequencer.CurrentIndex())
	assert.Equal(t, fixture.Light{}, r.light(t, 0))
	assert.Equal(t, 1, r.controller.state.Beats)
}

func TestHandle_VolumeFollowsInAmbient(t *testing.T) {
	r := newRig(t, classifier.Ambient, twoSteps)
	c := r.controller

	c.handle(events.NewVolume(-30))
	for i := range r.devices {
		assert.Equal(t, fixture.Light{R: 255, G: 0, B: 128, Dim: 127}, r.light(t, i))
	}
	assert.Equal(t, 0, c.sequencer.CurrentIndex(), "volume never advances the playlist")

	c.handle(events.NewVolume(math.NaN()))
	assert.Equal(t, byte(0), r.light(t, 0).Dim)

	c.handle(events.NewVolume(5))
	assert.Equal(t, byte(255), r.light(t, 1).Dim)
}

func TestHandle_VolumeIgnoredInRhythmic(t *testing.T) {
	r := newRig(t, classifier.Rhythmic, twoSteps)
	r.controller.handle(events.NewVolume(-10))
	assert.Equal(t, fixture.Light{}, r.light(t, 0))
}

func TestHandle_ModeOverride(t *testing.T) {
	r := newRig(t, classifier.Rhythmic, twoSteps)
	c := r.controller

	c.handle(events.NewModeOverride(false))
	c.handle(events.NewBeat())
	assert.Equal(t, 0, c.sequencer.CurrentIndex())

	c.handle(events.NewModeOverride(true))
	c.handle(events.NewBeat())
	assert.Equal(t, 1, c.sequencer.CurrentIndex())
}

func TestHandle_OnsetsSwitchMode(t *testing.T) {
	r := newRig(t, classifier.Rhythmic, twoSteps)
	c := r.controller

	for i := range 6 {
		e := events.NewOnset(1.0, 20)
		e.Timestamp = start.Add(4*time.Second + time.Duration(i)*time.Second)
		c.handle(e)
	}
	assert.False(t, c.useBeat)
	assert.Equal(t, classifier.Ambient, c.classifier.Mode())

	c.handle(events.NewBeat())
	assert.Equal(t, 0, c.sequencer.CurrentIndex())
}

func TestHandle_Blackout(t *testing.T) {
	r := newRig(t, classifier.Rhythmic, twoSteps)
	c := r.controller
	c.handle(events.NewBeat())
	c.handle(events.NewBeat())
	require.NotEqual(t, fixture.Light{}, r.light(t, 0))

	c.handle(events.NewBlackout())
	for i := range r.devices {
		assert.Equal(t, fixture.Light{}, r.light(t, i))
	}
}

func TestHandle_NoPlaylistIsHarmless(t *testing.T) {
	r := newRig(t, classifier.Rhythmic, "")
	assert.NotPanics(t, func() {
		r.controller.handle(events.NewBeat())
		r.controller.handle(events.Event{Kind: "bogus"})
	})
	assert.Equal(t, fixture.Light{}, r.light(t, 0))
}

func TestRun_ProcessesEventsAndPlaylists(t *testing.T) {
	r := newRig(t, classifier.Rhythmic, "")
	c := r.controller
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	p, err := playlist.Load([]byte(twoSteps))
	require.NoError(t, err)
	c.LoadPlaylist(p)
	assert.Eventually(t, func() bool { return c.States().Value().Steps == 2 }, time.Second, 5*time.Millisecond)

	for range 3 {
		c.Events() <- events.NewBeat()
	}
	assert.Eventually(t, func() bool { return c.States().Value().Beats == 3 }, time.Second, 5*time.Millisecond)

	state := c.States().Value()
	assert.Equal(t, 1, state.Step)
	assert.True(t, state.UseBeat)
	assert.Equal(t, classifier.Rhythmic, state.Mode)

	time.Sleep(5 * testDebounce)
	packets := r.sim.PacketsFor("A")
	require.NotEmpty(t, packets)
	assert.Equal(t, []byte{255, 0, 0, 200, 0, 0, 0, 255, 100, 0}, packets[len(packets)-1])

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestLoadPlaylist_AfterRunStopped(t *testing.T) {
	r := newRig(t, classifier.Rhythmic, "")
	c := r.controller
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	p, err := playlist.Load([]byte(twoSteps))
	require.NoError(t, err)
	loaded := make(chan struct{})
	go func() {
		// more loads than the queue holds
		for range 3 {
			c.LoadPlaylist(p)
		}
		close(loaded)
	}()
	select {
	case <-loaded:
	case <-time.After(time.Second):
		t.Fatal("LoadPlaylist blocked after Run stopped")
	}
}
