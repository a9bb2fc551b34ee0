package controller

import (
	"fmt"
	"time"

	"github.com/thruflo/tracksync/internal/device"
	"github.com/thruflo/tracksync/internal/logging"
	"github.com/thruflo/tracksync/internal/protocol"
	"github.com/thruflo/tracksync/internal/track"
	"github.com/thruflo/tracksync/internal/transport"
)

// Defaults for the reconnect gate and inbound drain.
const (
	DefaultRetryInterval      = time.Second
	DefaultMaxMessagesPerTick = 256
)

// State is the controller's connection state.
type State int

const (
	Disconnected State = iota
	ConnectedPaused
	ConnectedRunning
)

// String returns the state name used in logs and the monitor.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case ConnectedPaused:
		return "connected-paused"
	case ConnectedRunning:
		return "connected-running"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Connected reports whether s has a live editor link.
func (s State) Connected() bool {
	return s == ConnectedPaused || s == ConnectedRunning
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// Link is a live editor connection. Send and TryReceive return an error that
// requires the link to be dropped; TryReceive returns (nil, nil) when nothing
// is pending.
type Link interface {
	ID() string
	Send(msg protocol.Message) error
	TryReceive() (protocol.Message, error)
	Close() error
}

// Handshaker is implemented by links that finish connecting across several
// ticks. Handshake must not block for longer than a poll and reports whether
// the link is ready; an error means the attempt failed.
type Handshaker interface {
	Handshake() (bool, error)
}

// Connector makes one non-blocking connection attempt.
type Connector interface {
	TryConnect() (Link, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func() (Link, error)

// TryConnect calls f.
func (f ConnectorFunc) TryConnect() (Link, error) { return f() }

// DialerConnector adapts a transport.Dialer.
func DialerConnector(d *transport.Dialer) Connector {
	return ConnectorFunc(func() (Link, error) {
		conn, err := d.TryConnect()
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}

// Saver persists track data when the editor asks for it.
type Saver interface {
	SaveTracks(tracks *track.Store) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used by the retry gate.
func WithClock(clock Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithRetryInterval sets the minimum time between connection attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.retryInterval = d
	}
}

// WithMaxMessagesPerTick bounds how many inbound messages one Update applies.
func WithMaxMessagesPerTick(n int) Option {
	return func(c *Controller) {
		c.maxPerTick = n
	}
}

// WithStandalonePaused selects whether playback starts paused when no editor
// is reachable at startup.
func WithStandalonePaused(paused bool) Option {
	return func(c *Controller) {
		c.standalonePaused = paused
	}
}

// WithSaver sets the handler for SaveTracks requests.
func WithSaver(s Saver) Option {
	return func(c *Controller) {
		c.saver = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// Controller ties a Connector to a device.Device.
type Controller struct {
	dev       *device.Device
	connector Connector
	clock     Clock
	log       *logging.Logger
	saver     Saver

	retryInterval    time.Duration
	maxPerTick       int
	standalonePaused bool

	state       State
	link        Link // set exactly when state.Connected()
	pending     Link // handshaking; only while Disconnected
	lastAttempt time.Time
	attempts    int

	// lastRow is the last row exchanged with the editor in either direction.
	lastRow  uint32
	rowKnown bool

	reportedUnknown map[int]bool
}

// New creates a Controller for dev. Track names are taken from dev's store,
// which must be fully registered before Start.
func New(dev *device.Device, connector Connector, opts ...Option) *Controller {
	c := &Controller{
		dev:             dev,
		connector:       connector,
		clock:           systemClock{},
		log:             logging.Default(),
		retryInterval:   DefaultRetryInterval,
		maxPerTick:      DefaultMaxMessagesPerTick,
		state:           Disconnected,
		reportedUnknown: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxPerTick <= 0 {
		c.maxPerTick = DefaultMaxMessagesPerTick
	}
	c.log = c.log.Component("controller")
	return c
}

// State returns the connection state.
func (c *Controller) State() State {
	return c.state
}

// Device returns the controlled device.
func (c *Controller) Device() *device.Device {
	return c.dev
}

// Attempts returns the number of connection attempts made so far.
func (c *Controller) Attempts() int {
	return c.attempts
}

// Connecting reports whether a connection attempt is still handshaking.
func (c *Controller) Connecting() bool {
	return c.pending != nil
}

// SessionID returns the live link's id, or "" when disconnected.
func (c *Controller) SessionID() string {
	if !c.state.Connected() {
		return ""
	}
	return c.link.ID()
}

// Start makes the startup connection attempt and sets the initial playback
// state: paused under an editor, otherwise as the standalone policy says. An
// attempt still handshaking when Start returns pauses playback once it
// completes.
func (c *Controller) Start() {
	if c.tryConnect() {
		return
	}
	c.dev.SetPaused(c.standalonePaused)
	if c.pending != nil {
		c.log.Debug("editor handshake in progress", "session", c.pending.ID())
		return
	}
	c.log.Info("no editor, running standalone", "paused", c.standalonePaused)
}

// Update runs one tick: it applies pending editor messages, retries the
// connection when the gate allows, and reports the playing row back to the
// editor. It returns true when track data or the row changed and the host
// should redraw even if paused.
func (c *Controller) Update() bool {
	drawAnyway := false

	if c.state.Connected() {
		changed, err := c.drain()
		drawAnyway = changed
		if err != nil {
			c.drop(err)
		}
	}

	if !c.state.Connected() {
		if c.pending != nil {
			c.finishConnect()
		} else if c.clock.Now().Sub(c.lastAttempt) >= c.retryInterval {
			c.tryConnect()
		}
	}

	if c.state == ConnectedRunning {
		c.sendRow()
	}

	return drawAnyway
}

// TrackValue samples the track at index on the current row. An unknown index
// is logged and yields 0 so rendering continues.
func (c *Controller) TrackValue(index int) float64 {
	v, err := c.dev.TrackValue(index)
	if err != nil {
		if !c.reportedUnknown[index] {
			c.reportedUnknown[index] = true
			c.log.Error("track value unavailable", "index", index, "error", err)
		} else {
			c.log.Debug("track value unavailable", "index", index)
		}
		return 0
	}
	return v
}

// Close drops the editor link and any attempt in progress.
func (c *Controller) Close() error {
	if c.pending != nil {
		c.pending.Close()
		c.pending = nil
	}
	if !c.state.Connected() {
		return nil
	}
	err := c.link.Close()
	c.link = nil
	c.state = Disconnected
	return err
}

func (c *Controller) tryConnect() bool {
	c.attempts++
	c.lastAttempt = c.clock.Now()

	link, err := c.connector.TryConnect()
	if err != nil {
		c.log.Debug("editor not reachable", "attempt", c.attempts, "error", err)
		return false
	}
	c.pending = link
	return c.finishConnect()
}

// finishConnect advances the pending attempt. Track names are registered and
// the controller enters ConnectedPaused only once the handshake is done.
func (c *Controller) finishConnect() bool {
	link := c.pending
	if h, ok := link.(Handshaker); ok {
		ready, err := h.Handshake()
		if err != nil {
			link.Close()
			c.pending = nil
			c.log.Debug("editor handshake failed", "attempt", c.attempts, "kind", transport.KindOf(err), "error", err)
			return false
		}
		if !ready {
			return false
		}
	}
	c.pending = nil

	names := c.dev.Tracks().Names()
	if err := link.Send(protocol.SetTrackNames{Names: names}); err != nil {
		link.Close()
		c.log.Warn("failed to register tracks with editor", "session", link.ID(), "error", err)
		return false
	}

	c.link = link
	c.state = ConnectedPaused
	c.dev.SetPaused(true)
	c.rowKnown = false
	c.log.Info("editor connected", "session", link.ID(), "tracks", len(names))
	return true
}

func (c *Controller) drop(err error) {
	id := c.link.ID()
	c.link.Close()
	c.link = nil
	c.state = Disconnected
	c.rowKnown = false

	if transport.IsDisconnect(err) {
		c.log.Warn("editor disconnected", "session", id)
		return
	}
	c.log.Error("dropping editor connection", "session", id, "kind", transport.KindOf(err), "error", err)
}

func (c *Controller) drain() (bool, error) {
	changed := false
	for i := 0; i < c.maxPerTick; i++ {
		msg, err := c.link.TryReceive()
		if err != nil {
			return changed, err
		}
		if msg == nil {
			return changed, nil
		}
		redraw, err := c.apply(msg)
		if err != nil {
			return changed, err
		}
		changed = changed || redraw
	}
	c.log.Debug("inbound message limit reached", "limit", c.maxPerTick)
	return changed, nil
}

// apply mutates the device for one editor message and reports whether the
// visible output changed.
func (c *Controller) apply(msg protocol.Message) (bool, error) {
	tracks := c.dev.Tracks()

	switch m := msg.(type) {
	case protocol.SetKey:
		if err := tracks.SetKey(int(m.Track), m.Key()); err != nil {
			return false, &transport.Fault{Kind: transport.FaultProtocol, Op: "set_key", Err: err}
		}
		return true, nil
	case protocol.DeleteKey:
		if err := tracks.DeleteKey(int(m.Track), m.Row); err != nil {
			return false, &transport.Fault{Kind: transport.FaultProtocol, Op: "delete_key", Err: err}
		}
		return true, nil
	case protocol.SetRow:
		c.dev.SetRow(m.Row)
		c.lastRow = m.Row
		c.rowKnown = true
		return true, nil
	case protocol.Pause:
		c.dev.SetPaused(true)
		c.state = ConnectedPaused
		return false, nil
	case protocol.Play:
		c.dev.SetPaused(false)
		c.state = ConnectedRunning
		return false, nil
	case protocol.SaveTracks:
		c.save()
		return false, nil
	default:
		c.log.Debug("ignoring message", "command", msg.Command())
		return false, nil
	}
}

func (c *Controller) save() {
	if c.saver == nil {
		c.log.Debug("save requested, no saver configured")
		return
	}
	if err := c.saver.SaveTracks(c.dev.Tracks()); err != nil {
		c.log.Error("failed to save tracks", "error", err)
		return
	}
	c.log.Info("tracks saved", "tracks", c.dev.Tracks().Len())
}

func (c *Controller) sendRow() {
	row := c.dev.Row()
	if c.rowKnown && row == c.lastRow {
		return
	}
	if err := c.link.Send(protocol.SetRow{Row: row}); err != nil {
		c.drop(err)
		return
	}
	c.lastRow = row
	c.rowKnown = true
}
