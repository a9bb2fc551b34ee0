// Package host runs the per-frame loop that drives the sync controller and
// hands sampled track values to renderers.
package host

import (
	"context"
	"time"

	"github.com/thruflo/tracksync/internal/controller"
	"github.com/thruflo/tracksync/internal/device"
	"github.com/thruflo/tracksync/internal/logging"
)

// DefaultFrameTarget is roughly 60 frames per second.
const DefaultFrameTarget = 16 * time.Millisecond

// Controller is the part of controller.Controller the loop uses.
type Controller interface {
	Update() bool
	State() controller.State
	TrackValue(index int) float64
}

// Option configures an App.
type Option func(*App)

// WithFrameTarget sets the fixed time step per frame.
func WithFrameTarget(d time.Duration) Option {
	return func(a *App) {
		a.FrameTarget = d
	}
}

// WithRenderer sets the renderer. Use MultiRenderer for several.
func WithRenderer(r Renderer) Option {
	return func(a *App) {
		a.renderer = r
	}
}

// WithEvents sets the event source.
func WithEvents(e Events) Option {
	return func(a *App) {
		a.events = e
	}
}

// WithClock sets the clock used to measure frame time.
func WithClock(c controller.Clock) Option {
	return func(a *App) {
		a.clock = c
	}
}

// WithSleep sets the function used to wait out the rest of a frame.
func WithSleep(sleep func(time.Duration)) Option {
	return func(a *App) {
		a.sleep = sleep
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *App) {
		a.log = l
	}
}

// App is the host frame loop. Its exported fields describe the current frame
// and may be read between ticks.
type App struct {
	FrameTarget time.Duration
	FrameStart  time.Time
	Delta       time.Duration
	Running     bool
	DrawAnyway  bool

	dev      *device.Device
	ctrl     Controller
	renderer Renderer
	events   Events
	clock    controller.Clock
	sleep    func(time.Duration)
	log      *logging.Logger

	names  []string
	ticks  uint64
	frames uint64
}

// New creates an App over dev and ctrl. Track names are read once from the
// device's store.
func New(dev *device.Device, ctrl Controller, opts ...Option) *App {
	a := &App{
		FrameTarget: DefaultFrameTarget,
		dev:         dev,
		ctrl:        ctrl,
		renderer:    MultiRenderer(nil),
		events:      noEvents{},
		clock:       controller.SystemClock(),
		sleep:       time.Sleep,
		log:         logging.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.FrameTarget <= 0 {
		a.FrameTarget = DefaultFrameTarget
	}
	a.log = a.log.Component("host")
	a.names = dev.Tracks().Names()
	return a
}

// Ticks returns the number of completed ticks.
func (a *App) Ticks() uint64 {
	return a.ticks
}

// Frames returns the number of frames drawn.
func (a *App) Frames() uint64 {
	return a.frames
}

// Stop ends Run after the current tick.
func (a *App) Stop() {
	a.Running = false
}

// Tick runs one frame: advance the device, update the controller, handle
// events, draw if playing or if something changed, then sleep out the rest of
// the frame target.
func (a *App) Tick() {
	a.FrameStart = a.clock.Now()
	a.dev.Advance(a.FrameTarget)

	a.DrawAnyway = a.ctrl.Update()

	for _, ev := range a.events.Poll() {
		switch ev.Kind {
		case EventClose:
			a.Running = false
		case EventResize:
			a.log.Debug("resized", "width", ev.Width, "height", ev.Height)
			a.DrawAnyway = true
		}
	}

	if !a.dev.Paused() || a.DrawAnyway {
		a.draw()
	}

	a.ticks++
	a.Delta = a.clock.Now().Sub(a.FrameStart)
	if remaining := a.FrameTarget - a.Delta; remaining > 0 {
		a.sleep(remaining)
	}
}

// Run ticks until a close event, Stop, or ctx is done. It returns ctx.Err()
// when cancelled and nil otherwise.
func (a *App) Run(ctx context.Context) error {
	a.Running = true
	a.log.Info("frame loop started", "frame_target", a.FrameTarget, "tracks", len(a.names))
	defer a.log.Info("frame loop stopped", "ticks", a.ticks, "frames", a.frames)

	for a.Running {
		select {
		case <-ctx.Done():
			a.Running = false
			return ctx.Err()
		default:
		}
		a.Tick()
	}
	return nil
}

// Snapshot samples every track at the current row.
func (a *App) Snapshot() Frame {
	samples := make([]TrackSample, len(a.names))
	for i, name := range a.names {
		samples[i] = TrackSample{Name: name, Value: a.ctrl.TrackValue(i)}
	}
	return Frame{
		Number: a.frames,
		Row:    a.dev.Row(),
		Time:   a.dev.Time(),
		Paused: a.dev.Paused(),
		State:  a.ctrl.State().String(),
		Tracks: samples,
	}
}

func (a *App) draw() {
	frame := a.Snapshot()
	a.frames++
	if err := a.renderer.Draw(frame); err != nil {
		a.log.Warn("render failed", "frame", frame.Number, "error", err)
	}
}
