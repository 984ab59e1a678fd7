package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"lautenbacher.net/ble2led/classifier"
	c "lautenbacher.net/ble2led/config"
	"lautenbacher.net/ble2led/controller"
	"lautenbacher.net/ble2led/events"
	"lautenbacher.net/ble2led/fixture"
	"lautenbacher.net/ble2led/logging"
	"lautenbacher.net/ble2led/monitor"
	"lautenbacher.net/ble2led/playlist"
	"lautenbacher.net/ble2led/transport"
)

// simKeep is how many packets the simulated transport remembers.
const simKeep = 1000

// Set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	SetVersionInfo(version, commit, date)
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}

type App struct {
	conf         *c.Config
	playlistFile string
	withMonitor  bool
	ossignal     chan os.Signal

	sim        *transport.Sim
	transport  transport.Transport
	scheduler  *fixture.WorkerScheduler
	controller *controller.Controller
	monitor    *monitor.Monitor
	httpServer *http.Server
	closers    []func() error

	cancel      context.CancelFunc
	waitSources func()
	shutdownWg  sync.WaitGroup
	shutdown    sync.Once
}

// NewApp prepares an application for conf. playlistFile overrides the
// configured playlist if not empty. withMonitor runs the terminal
// monitor, which needs the simulated transport.
func NewApp(conf *c.Config, playlistFile string, withMonitor bool, ossignal chan os.Signal) *App {
	if playlistFile == "" {
		playlistFile = conf.Playlist.File
	}
	if withMonitor {
		conf.Transport.Kind = "sim"
	}
	return &App{
		conf:         conf,
		playlistFile: playlistFile,
		withMonitor:  withMonitor,
		ossignal:     ossignal,
		waitSources:  func() {},
	}
}

// Run starts everything and then serves OS signals until asked to
// stop: SIGHUP reloads the playlist, anything else shuts down.
func (a *App) Run() error {
	if err := a.initialise(); err != nil {
		a.stop()
		return err
	}
	a.signalLoop()
	return nil
}

func (a *App) initialise() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	addresses := a.conf.Addresses()
	if err := a.openTransport(addresses); err != nil {
		return err
	}

	a.scheduler = fixture.NewWorkerScheduler(a.transport, a.conf.Scheduler.Debounce)
	for _, addr := range addresses {
		if _, err := a.scheduler.Connect(addr); err != nil {
			return fmt.Errorf("connecting fixture %s: %w", addr, err)
		}
	}
	devices := fixture.Devices(a.scheduler, addresses)

	p, err := playlist.LoadFile(a.playlistFile)
	if err != nil {
		slog.Warn("No playlist loaded, waiting for one", "file", a.playlistFile, "error", err)
		p = nil
	}

	a.controller = controller.New(
		devices,
		classifier.New(a.conf.ClassifierOptions(), time.Now()),
		playlist.NewSequencer(p),
		controller.Options{MinDB: a.conf.Ambient.MinDB, MaxDB: a.conf.Ambient.MaxDB, Accent: a.conf.Accent()},
	)
	a.shutdownWg.Add(1)
	go func() {
		defer a.shutdownWg.Done()
		a.controller.Run(ctx)
	}()

	a.waitSources = events.RunSources(ctx, a.controller.Events(), a.sources()...)

	if a.conf.Playlist.Watch {
		a.shutdownWg.Add(1)
		go func() {
			defer a.shutdownWg.Done()
			if err := playlist.Watch(ctx, a.playlistFile, a.controller.LoadPlaylist); err != nil {
				slog.Error("Playlist watcher stopped", "error", err)
			}
		}()
	}

	if a.conf.HTTP.Enabled {
		a.startHTTP()
	}

	if a.withMonitor {
		a.monitor = monitor.New(addresses, a.scheduler.Snapshot, a.controller.States(), a.controller.Events(), a.ossignal)
		a.sim.SetObserver(a.monitor.Observe)
		a.monitor.Start()
		<-a.monitor.Ready()
	}

	slog.Info("ble2led started", "fixtures", len(addresses), "devices", len(devices), "transport", a.conf.Transport.Kind)
	return nil
}

func (a *App) openTransport(addresses []string) error {
	switch a.conf.Transport.Kind {
	case "artnet":
		an, err := transport.DialArtNet(a.conf.Transport.ArtNet.Target, a.conf.Transport.ArtNet.Universe, addresses)
		if err != nil {
			return err
		}
		a.transport = an
		a.closers = append(a.closers, an.Close)
	default:
		a.sim = transport.NewSim(addresses...)
		a.sim.Keep(simKeep)
		a.transport = a.sim
	}
	return nil
}

// sources builds the enabled event sources.
func (a *App) sources() []events.Source {
	ev := a.conf.Events
	var ret []events.Source
	if ev.Redis.Enabled {
		bus := events.NewBus(&redis.Options{Addr: ev.Redis.Addr}, ev.Redis.Channel)
		a.closers = append(a.closers, bus.Close)
		ret = append(ret, events.NewRedisSource(bus))
	}
	if ev.MIDI.Enabled {
		ret = append(ret, events.NewMIDISource(ev.MIDI.Port, ev.MIDI.BeatNote, ev.MIDI.ModeCC))
	}
	if ev.GPIO.Enabled {
		ret = append(ret, events.NewPedalSource(ev.GPIO.Pin, ev.GPIO.Debounce))
	}
	if ev.Audio.Enabled {
		ret = append(ret, events.NewAudioSource(ev.Audio.Device, ev.Audio.SampleRate, ev.Audio.FramesPerBuffer, ev.Audio.UpdateFreq))
	}
	for _, s := range ret {
		slog.Info("Event source enabled", "source", s.Name())
	}
	return ret
}

func (a *App) startHTTP() {
	mux := http.NewServeMux()
	// with a watcher running, the written file reaches the controller
	// through it
	var onLoad func(*playlist.Playlist)
	if !a.conf.Playlist.Watch {
		onLoad = a.controller.LoadPlaylist
	}
	mux.HandleFunc("/api/playlist", playlist.Handler(a.playlistFile, onLoad))
	a.httpServer = &http.Server{Addr: a.conf.HTTP.Addr, Handler: mux}
	go func() {
		slog.Info("HTTP server listening", "addr", a.conf.HTTP.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
		}
	}()
}

// reloadPlaylist reads the playlist file again. A broken file keeps
// the current playlist.
func (a *App) reloadPlaylist() {
	p, err := playlist.LoadFile(a.playlistFile)
	if err != nil {
		slog.Error("Playlist reload failed, keeping the current one", "file", a.playlistFile, "error", err)
		return
	}
	a.controller.LoadPlaylist(p)
}

func (a *App) signalLoop() {
	for sig := range a.ossignal {
		switch sig {
		case syscall.SIGHUP:
			slog.Info("Received SIGHUP, reloading playlist")
			a.reloadPlaylist()
		default:
			slog.Info("Shutting down", "signal", sig)
			a.stop()
			return
		}
	}
}

// stop tears down in dependency order: producers of events first,
// then the scheduler so pending updates still go out, then the
// transport.
func (a *App) stop() {
	a.shutdown.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
		a.waitSources()
		a.shutdownWg.Wait()

		if a.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := a.httpServer.Shutdown(ctx); err != nil {
				slog.Error("HTTP server shutdown failed", "error", err)
			}
			cancel()
		}
		if a.scheduler != nil {
			a.scheduler.Close()
		}
		if a.monitor != nil {
			a.monitor.Stop()
			logging.BufferOutput()
		}
		for _, closer := range a.closers {
			if err := closer(); err != nil {
				slog.Error("Close failed", "error", err)
			}
		}
		slog.Info("ble2led stopped")
	})
}
