package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"lautenbacher.net/ble2led/classifier"
	c "lautenbacher.net/ble2led/config"
	"lautenbacher.net/ble2led/events"
	"lautenbacher.net/ble2led/logging"
	"lautenbacher.net/ble2led/playlist"
	"lautenbacher.net/ble2led/printer"
)

var (
	configFile   string
	playlistFile string
	simulate     bool

	publishAddr    string
	publishChannel string
	publishPeaks   int
)

var rootCmd = &cobra.Command{
	Use:   "ble2led",
	Short: "ble2led - beat driven light shows for BLE LED fixtures",
	Long: `ble2led drives BLE LED fixtures from a playlist of lighting steps.
Beats step through the playlist, and when the music turns ambient the
fixtures follow the volume instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the light show",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate <playlist>",
	Short: "Check a playlist file and report what it references",
	Args:  cobra.ExactArgs(1),
	RunE:  validatePlaylist,
}

var publishCmd = &cobra.Command{
	Use:   "publish <beat|onset|volume|mode|blackout> [value]",
	Short: "Publish a single event to a running show over Redis",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  publishEvent,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printer.Info("ble2led %s\n", rootCmd.Version)
	},
}

// Execute runs the root command. Errors are printed by the printer
// package, cobra stays silent.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version shown by --version and version.
func SetVersionInfo(v, cm, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, cm, d)
}

func init() {
	runCmd.Flags().StringVarP(&configFile, "config", "c", c.CONFILE, "configuration file")
	runCmd.Flags().StringVarP(&playlistFile, "playlist", "p", "", "playlist file, overrides the configuration")
	runCmd.Flags().BoolVar(&simulate, "sim", false, "use the simulated transport and show the terminal monitor")

	publishCmd.Flags().StringVar(&publishAddr, "addr", "localhost:6379", "Redis address")
	publishCmd.Flags().StringVar(&publishChannel, "channel", events.DefaultChannel, "Redis channel")
	publishCmd.Flags().IntVar(&publishPeaks, "peaks", classifier.NoPeaks, "peak count sent with onset events")

	rootCmd.AddCommand(runCmd, validateCmd, publishCmd, versionCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	conf, err := c.ReadConfig(configFile)
	if err != nil {
		return printer.Error(
			"Cannot load configuration",
			err.Error(),
			[]string{fmt.Sprintf("Create %s or pass another file with --config", configFile)},
		)
	}

	if err := logging.Init(logging.Options{
		Buffer: simulate,
		Level:  conf.Logging.Level,
		Format: conf.Logging.Format,
		File:   conf.Logging.File,
	}); err != nil {
		return printer.Error("Cannot set up logging", err.Error(), nil)
	}
	defer logging.Close()

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(ossignal)

	slog.Info("Starting ble2led", "version", rootCmd.Version, "config", configFile, "session", logging.Session())
	if err := NewApp(conf, playlistFile, simulate, ossignal).Run(); err != nil {
		slog.Error("Startup failed", "error", err)
		return printer.Error("Cannot start the show", err.Error(), nil)
	}
	return nil
}

func validatePlaylist(cmd *cobra.Command, args []string) error {
	p, err := playlist.LoadFile(args[0])
	if err != nil {
		return printer.Error(
			fmt.Sprintf("Invalid playlist %s", args[0]),
			err.Error(),
			[]string{`A playlist needs "type": "ble2led", at least one step and values between 0 and 255`},
		)
	}
	printer.Success("Playlist %s is valid\n", args[0])
	printer.Info("  steps:   %d\n", p.Len())
	ids := make([]string, 0, len(p.DeviceIDs()))
	for _, id := range p.DeviceIDs() {
		ids = append(ids, strconv.Itoa(id))
	}
	printer.Info("  devices: %s\n", strings.Join(ids, ", "))
	return nil
}

// buildEvent turns the publish arguments into an event.
func buildEvent(kind string, args []string, peaks int) (events.Event, error) {
	value := func() (float64, error) {
		if len(args) == 0 {
			return 0, fmt.Errorf("%s needs a value", kind)
		}
		return strconv.ParseFloat(args[0], 64)
	}

	switch events.Kind(strings.ToLower(kind)) {
	case events.Beat:
		return events.NewBeat(), nil
	case events.Blackout:
		return events.NewBlackout(), nil
	case events.Onset:
		v, err := value()
		if err != nil {
			return events.Event{}, err
		}
		return events.NewOnset(v, peaks), nil
	case events.Volume:
		v, err := value()
		if err != nil {
			return events.Event{}, err
		}
		return events.NewVolume(v), nil
	case events.ModeOverride:
		if len(args) == 0 {
			return events.Event{}, fmt.Errorf("mode needs a value, e.g. rhythmic or ambient")
		}
		if b, err := strconv.ParseBool(args[0]); err == nil {
			return events.NewModeOverride(b), nil
		}
		m, err := classifier.ParseMode(args[0])
		if err != nil {
			return events.Event{}, err
		}
		return events.NewModeOverride(m == classifier.Rhythmic), nil
	}
	return events.Event{}, fmt.Errorf("%w: unknown kind %q", events.ErrInvalidEvent, kind)
}

func publishEvent(cmd *cobra.Command, args []string) error {
	e, err := buildEvent(args[0], args[1:], publishPeaks)
	if err != nil {
		return printer.Error("Cannot build event", err.Error(), []string{"Run 'ble2led publish --help' for the accepted kinds"})
	}

	bus := events.NewBus(&redis.Options{Addr: publishAddr}, publishChannel)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	n, err := bus.Publish(ctx, e)
	if err != nil {
		return printer.Error(
			"Cannot publish event",
			err.Error(),
			[]string{fmt.Sprintf("Check that Redis is reachable at %s", publishAddr)},
		)
	}
	if n == 0 {
		printer.Warning("Published %s, but no show is listening on %s\n", e.Kind, publishChannel)
		return nil
	}
	printer.Success("Published %s to %d listener(s)\n", e.Kind, n)
	return nil
}
