// Package transport manages the optional TCP connection to a sync editor. It
// never blocks the caller for longer than a short configured deadline and
// never retries on its own; reconnect policy belongs to the controller.
package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/thruflo/tracksync/internal/protocol"
)

// Default deadlines. They are short because every call happens inside a
// render frame.
const (
	DefaultDialTimeout      = 50 * time.Millisecond
	DefaultHandshakeTimeout = 100 * time.Millisecond
	DefaultPollTimeout      = time.Millisecond
	DefaultWriteTimeout     = 100 * time.Millisecond
)

const readBufferSize = 4096

// ErrHandshakePending is wrapped by Send and TryReceive on a Conn whose
// handshake has not completed.
var ErrHandshakePending = errors.New("handshake not complete")

type phase int

const (
	phaseDialing phase = iota
	phaseGreeting
	phaseReady
)

type dialResult struct {
	nc  net.Conn
	err error
}

// Conn is an editor connection. A Conn from Dialer.TryConnect starts out
// dialing; Handshake advances it to ready without blocking for longer than
// the poll timeout.
type Conn struct {
	nc           net.Conn
	id           string
	addr         string
	dec          *protocol.Decoder
	buf          []byte
	pollTimeout  time.Duration
	writeTimeout time.Duration

	phase    phase
	dialed   chan dialResult
	greeting []byte
	deadline time.Time

	// readErr is held back until buffered messages are drained so frames
	// that arrived before a disconnect are still applied in order.
	readErr error
	closed  bool
}

// NewConn wraps an already handshaken net.Conn.
func NewConn(nc net.Conn, pollTimeout, writeTimeout time.Duration) *Conn {
	c := newConn(nc.RemoteAddr().String(), pollTimeout, writeTimeout)
	c.nc = nc
	c.phase = phaseReady
	return c
}

func newConn(addr string, pollTimeout, writeTimeout time.Duration) *Conn {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Conn{
		id:           uuid.NewString(),
		addr:         addr,
		dec:          protocol.NewDecoder(),
		buf:          make([]byte, readBufferSize),
		pollTimeout:  pollTimeout,
		writeTimeout: writeTimeout,
	}
}

// Handshake advances connection setup by one step and reports whether the
// Conn is ready for Send and TryReceive. It waits at most the poll timeout.
// A refused dial or a missing, wrong or late greeting yields a *Fault and the
// Conn must be closed.
func (c *Conn) Handshake() (bool, error) {
	if c.closed {
		return false, &Fault{Kind: FaultDisconnected, Op: "handshake", Err: net.ErrClosed}
	}
	if c.phase == phaseReady {
		return true, nil
	}
	if !c.deadline.IsZero() && time.Now().After(c.deadline) {
		return false, &Fault{Kind: FaultProtocol, Op: "handshake",
			Err: fmt.Errorf("%w: %s: no greeting in time", ErrHandshake, c.addr)}
	}

	if c.phase == phaseDialing {
		select {
		case r := <-c.dialed:
			c.dialed = nil
			if r.err != nil {
				return false, classify("dial", r.err)
			}
			c.nc = r.nc
			if tcp, ok := c.nc.(*net.TCPConn); ok {
				_ = tcp.SetNoDelay(true)
			}
			if err := c.writeGreeting(); err != nil {
				return false, err
			}
			c.phase = phaseGreeting
		default:
			return false, nil
		}
	}

	return c.readGreeting()
}

func (c *Conn) writeGreeting() error {
	if c.writeTimeout > 0 {
		if err := c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return classify("handshake", err)
		}
	}
	if _, err := io.WriteString(c.nc, protocol.ClientGreeting); err != nil {
		return classify("handshake", err)
	}
	return nil
}

// readGreeting reads only the bytes still missing from the greeting so that
// frames sent right behind it stay in the socket for TryReceive.
func (c *Conn) readGreeting() (bool, error) {
	want := len(protocol.ServerGreeting) - len(c.greeting)
	if err := c.nc.SetReadDeadline(time.Now().Add(c.pollTimeout)); err != nil {
		return false, classify("handshake", err)
	}
	n, err := c.nc.Read(c.buf[:want])
	c.greeting = append(c.greeting, c.buf[:n]...)
	if !bytes.HasPrefix([]byte(protocol.ServerGreeting), c.greeting) {
		return false, &Fault{Kind: FaultProtocol, Op: "handshake",
			Err: fmt.Errorf("%w: %s: unexpected greeting %q", ErrHandshake, c.addr, c.greeting)}
	}
	if err != nil && !isTimeout(err) {
		return false, classify("handshake", err)
	}
	if len(c.greeting) < len(protocol.ServerGreeting) {
		return false, nil
	}
	c.phase = phaseReady
	c.greeting = nil
	return true, nil
}

func (c *Conn) pending(op string) error {
	return &Fault{Kind: FaultProtocol, Op: op, Err: ErrHandshakePending}
}

// ID returns a random identifier for this connection, used to correlate logs.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the editor address.
func (c *Conn) RemoteAddr() string {
	return c.addr
}

// Send writes msg in full. Any failure, including a short write, returns a
// *Fault and the connection must be dropped.
func (c *Conn) Send(msg protocol.Message) error {
	if c.closed {
		return &Fault{Kind: FaultDisconnected, Op: "send", Err: net.ErrClosed}
	}
	if c.phase != phaseReady {
		return c.pending("send")
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		return &Fault{Kind: FaultProtocol, Op: "send", Err: err}
	}
	if c.writeTimeout > 0 {
		if err := c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return classify("send", err)
		}
	}
	n, err := c.nc.Write(data)
	if err != nil {
		return classify("send", err)
	}
	if n != len(data) {
		return &Fault{Kind: FaultTransport, Op: "send", Err: io.ErrShortWrite}
	}
	return nil
}

// TryReceive returns the next message if one is available, or (nil, nil) if
// nothing is pending. It waits at most the poll timeout.
func (c *Conn) TryReceive() (protocol.Message, error) {
	if c.closed {
		return nil, &Fault{Kind: FaultDisconnected, Op: "receive", Err: net.ErrClosed}
	}
	if c.phase != phaseReady {
		return nil, c.pending("receive")
	}
	if msg, err := c.decode(); msg != nil || err != nil {
		return msg, err
	}
	if c.readErr == nil {
		c.fill()
		if msg, err := c.decode(); msg != nil || err != nil {
			return msg, err
		}
	}
	if c.readErr != nil {
		return nil, c.readErr
	}
	return nil, nil
}

func (c *Conn) decode() (protocol.Message, error) {
	msg, err := c.dec.Next()
	if err != nil {
		return nil, &Fault{Kind: FaultProtocol, Op: "decode", Err: err}
	}
	return msg, nil
}

func (c *Conn) fill() {
	if err := c.nc.SetReadDeadline(time.Now().Add(c.pollTimeout)); err != nil {
		c.readErr = classify("receive", err)
		return
	}
	n, err := c.nc.Read(c.buf)
	if n > 0 {
		c.dec.Feed(c.buf[:n])
	}
	if err != nil && !isTimeout(err) {
		c.readErr = classify("receive", err)
	}
}

// Close closes the socket. It is safe to call more than once, including
// while the dial is still in flight.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.nc == nil {
		if dialed := c.dialed; dialed != nil {
			go func() {
				if r := <-dialed; r.nc != nil {
					r.nc.Close()
				}
			}()
		}
		return nil
	}
	return c.nc.Close()
}

// ErrHandshake is wrapped by failures of the greeting exchange.
var ErrHandshake = errors.New("handshake failed")

// AcceptHandshake performs the editor side of the greeting exchange on nc
// within timeout.
func AcceptHandshake(nc net.Conn, timeout time.Duration) error {
	if timeout > 0 {
		if err := nc.SetDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
		defer nc.SetDeadline(time.Time{})
	}
	greeting := make([]byte, len(protocol.ClientGreeting))
	if _, err := io.ReadFull(nc, greeting); err != nil {
		return fmt.Errorf("%w: read greeting: %v", ErrHandshake, err)
	}
	if !bytes.Equal(greeting, []byte(protocol.ClientGreeting)) {
		return fmt.Errorf("%w: unexpected greeting %q", ErrHandshake, greeting)
	}
	if _, err := io.WriteString(nc, protocol.ServerGreeting); err != nil {
		return fmt.Errorf("%w: write greeting: %v", ErrHandshake, err)
	}
	return nil
}
