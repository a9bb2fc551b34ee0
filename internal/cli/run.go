package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thruflo/tracksync/internal/config"
	"github.com/thruflo/tracksync/internal/controller"
	"github.com/thruflo/tracksync/internal/device"
	"github.com/thruflo/tracksync/internal/host"
	"github.com/thruflo/tracksync/internal/logging"
	"github.com/thruflo/tracksync/internal/monitor"
	"github.com/thruflo/tracksync/internal/render"
	"github.com/thruflo/tracksync/internal/state"
	"github.com/thruflo/tracksync/internal/track"
	"github.com/thruflo/tracksync/internal/transport"
	"github.com/thruflo/tracksync/internal/tui"
	"github.com/thruflo/tracksync/web"
)

var (
	runAddr             string
	runFrames           string
	runMonitor          string
	runHeadless         bool
	runStandalonePaused bool
	runDuration         time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play the tracks, following an editor when one is running",
	Long: `Plays the configured tracks. If an editor is listening it is followed:
it drives the row, pause state and keys. Otherwise the tracks saved by the
last editor session are played and the editor is polled every retry interval.

Track values are drawn as bars in the terminal unless --headless is given.
--frames writes PNG frames and --monitor serves a live web view.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runAddr, "addr", "", "editor address (host:port)")
	runCmd.Flags().StringVar(&runFrames, "frames", "", "write PNG frames to this directory")
	runCmd.Flags().StringVar(&runMonitor, "monitor", "", "serve the live monitor on this address")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "do not draw in the terminal")
	runCmd.Flags().BoolVar(&runStandalonePaused, "standalone-paused", false, "start paused when no editor is running")
	runCmd.Flags().DurationVar(&runDuration, "duration", 0, "stop after this long (0 runs until closed)")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overrides cfg with the flags that were set on cmd.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Editor.Address = runAddr
	}
	if flags.Changed("frames") {
		cfg.Render.FramesDir = runFrames
	}
	if flags.Changed("monitor") {
		cfg.Monitor.Address = runMonitor
	}
	if flags.Changed("standalone-paused") {
		cfg.Playback.StandalonePaused = runStandalonePaused
	}
	return config.ValidateConfig(cfg)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	term := tui.NewTerminal(os.Stdin, os.Stdout)
	interactive := !runHeadless && term.IsTerminal()

	logger, closeLog, err := newLogger(cfg, interactive)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	p, err := newPlayer(cfg, logger)
	if err != nil {
		return err
	}
	defer p.close()

	if cfg.Render.FramesDir != "" {
		images, err := render.NewImageRenderer(cfg.Render.FramesDir, cfg.Render.Width, cfg.Render.Height, cfg.Render.Every)
		if err != nil {
			return err
		}
		images.SetLogger(logger)
		defer images.Close()
		p.renderers = append(p.renderers, images)
	}

	if cfg.Monitor.Address != "" {
		// A web/dist under the working directory is served live for development.
		mon := monitor.NewServer(cfg.Monitor.Address,
			monitor.WithLogger(logger),
			monitor.WithAssets(web.GetAssetsWithBase(".")),
		)
		if err := mon.Listen(); err != nil {
			return err
		}
		go func() {
			if err := mon.Serve(ctx); err != nil {
				logger.Error("monitor stopped", "error", err)
			}
		}()
		defer mon.Stop()
		p.renderers = append(p.renderers, mon)
		if !interactive {
			fmt.Fprintf(cmd.OutOrStdout(), "monitor: http://%s/\n", mon.ListenAddr())
		}
	}

	var events host.Events
	if interactive {
		if err := term.EnterRaw(); err != nil {
			return err
		}
		defer term.ExitRaw()

		bars := tui.NewBarRenderer(term)
		if w, _, err := term.Size(); err == nil {
			bars.SetTerminalWidth(w)
		}
		input := tui.NewInput(term, term.Size)
		input.Start()
		events = resizeEvents{Events: input, bars: bars}
		p.renderers = append(p.renderers, bars)
	}

	return p.run(ctx, events)
}

// player wires the controller, device and store for one run.
type player struct {
	cfg       *config.Config
	log       *logging.Logger
	dev       *device.Device
	ctrl      *controller.Controller
	saved     *state.Store
	renderers host.MultiRenderer
	app       *host.App
}

func newPlayer(cfg *config.Config, logger *logging.Logger) (*player, error) {
	tracks := track.NewStore()
	if _, err := tracks.Register(cfg.Tracks...); err != nil {
		return nil, err
	}
	dev, err := device.New(cfg.Tempo.BPM, cfg.Tempo.RowsPerBeat, tracks)
	if err != nil {
		return nil, err
	}

	saved := state.NewStore(cfg.Playback.TracksDir).WithTempo(cfg.Tempo.BPM, cfg.Tempo.RowsPerBeat)
	dialer := transport.NewDialer(cfg.Editor.Address,
		transport.WithDialTimeout(cfg.Editor.DialTimeout),
		transport.WithPollTimeout(cfg.Editor.PollTimeout),
	)
	ctrl := controller.New(dev, controller.DialerConnector(dialer),
		controller.WithRetryInterval(cfg.Editor.RetryInterval),
		controller.WithMaxMessagesPerTick(cfg.Editor.MaxMessagesPerTick),
		controller.WithStandalonePaused(cfg.Playback.StandalonePaused),
		controller.WithSaver(saved),
		controller.WithLogger(logger),
	)

	return &player{
		cfg:   cfg,
		log:   logger.Component("run"),
		dev:   dev,
		ctrl:  ctrl,
		saved: saved,
	}, nil
}

// start connects or falls back to the saved tracks. A handshake still in
// flight is finished here, before the first frame, so the fallback decision
// sees its outcome.
func (p *player) start() error {
	p.ctrl.Start()
	for p.ctrl.Connecting() {
		p.ctrl.Update()
		time.Sleep(p.cfg.Editor.PollTimeout)
	}
	if p.ctrl.State() != controller.Disconnected {
		return nil
	}

	file, skipped, err := p.saved.LoadTracks(p.dev.Tracks())
	if err != nil {
		return err
	}
	if file == nil {
		return nil
	}
	if len(skipped) > 0 {
		p.log.Warn("saved tracks not registered", "names", skipped)
	}
	if file.TempoDiffers(p.cfg.Tempo.BPM, p.cfg.Tempo.RowsPerBeat) {
		p.log.Warn("saved tracks were authored at a different tempo",
			"saved_bpm", file.BPM, "saved_rows_per_beat", file.RowsPerBeat,
			"bpm", p.cfg.Tempo.BPM, "rows_per_beat", p.cfg.Tempo.RowsPerBeat)
	}
	p.log.Info("playing saved tracks", "path", p.saved.Path())
	return nil
}

func (p *player) run(ctx context.Context, events host.Events) error {
	if err := p.start(); err != nil {
		return err
	}

	opts := []host.Option{
		host.WithFrameTarget(p.cfg.Playback.FrameTarget),
		host.WithRenderer(p.renderers),
		host.WithLogger(p.log),
	}
	if events != nil {
		opts = append(opts, host.WithEvents(events))
	}
	p.app = host.New(p.dev, p.ctrl, opts...)

	err := p.app.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	p.log.Info("stopped", "frames", p.app.Frames(), "row", p.dev.Row())
	return err
}

func (p *player) close() {
	if err := p.ctrl.Close(); err != nil {
		p.log.Debug("closing editor link", "error", err)
	}
}

// resizeEvents keeps the bar width in step with the terminal.
type resizeEvents struct {
	host.Events
	bars *tui.BarRenderer
}

func (r resizeEvents) Poll() []host.Event {
	events := r.Events.Poll()
	for _, ev := range events {
		if ev.Kind == host.EventResize {
			r.bars.SetTerminalWidth(ev.Width)
		}
	}
	return events
}
