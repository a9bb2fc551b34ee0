package testutil

import (
	"net"
	"sync"
	"syscall"

	"github.com/thruflo/tracksync/internal/controller"
	"github.com/thruflo/tracksync/internal/protocol"
	"github.com/thruflo/tracksync/internal/transport"
)

type inbound struct {
	msg protocol.Message
	err error
}

// FakeLink is an in-memory editor link. Inbound messages and errors are
// delivered by TryReceive in the order they were pushed.
type FakeLink struct {
	mu       sync.Mutex
	id       string
	inbox    []inbound
	sent     []protocol.Message
	sendErr  error
	closed   bool
	receives int

	// handshake scripting: ready after waitTicks calls, or fail with shakeErr.
	waitTicks  int
	shakeErr   error
	handshakes int
}

// NewFakeLink creates a link with the given session id.
func NewFakeLink(id string) *FakeLink {
	return &FakeLink{id: id}
}

// Push queues inbound messages.
func (l *FakeLink) Push(msgs ...protocol.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range msgs {
		l.inbox = append(l.inbox, inbound{msg: m})
	}
}

// Fail queues an inbound error after any pending messages.
func (l *FakeLink) Fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inbox = append(l.inbox, inbound{err: err})
}

// Disconnect queues an editor hang-up.
func (l *FakeLink) Disconnect() {
	l.Fail(&transport.Fault{Kind: transport.FaultDisconnected, Op: "receive", Err: net.ErrClosed})
}

// FailSends makes every following Send return err.
func (l *FakeLink) FailSends(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendErr = err
}

// DelayHandshake makes Handshake report not ready for the next n calls.
func (l *FakeLink) DelayHandshake(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waitTicks = n
}

// FailHandshake makes the next Handshake return err.
func (l *FakeLink) FailHandshake(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shakeErr = err
}

// Handshakes returns how many times Handshake has been called.
func (l *FakeLink) Handshakes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handshakes
}

// Handshake is ready at once unless delayed or failed.
func (l *FakeLink) Handshake() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handshakes++
	if l.shakeErr != nil {
		return false, l.shakeErr
	}
	if l.waitTicks > 0 {
		l.waitTicks--
		return false, nil
	}
	return true, nil
}

// Sent returns a copy of every message sent so far.
func (l *FakeLink) Sent() []protocol.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]protocol.Message, len(l.sent))
	copy(out, l.sent)
	return out
}

// Pending returns the number of inbound entries not yet received.
func (l *FakeLink) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inbox)
}

// Receives returns how many times TryReceive has been called.
func (l *FakeLink) Receives() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.receives
}

// Closed reports whether Close was called.
func (l *FakeLink) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// ID returns the session id.
func (l *FakeLink) ID() string {
	return l.id
}

// Send records msg.
func (l *FakeLink) Send(msg protocol.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return &transport.Fault{Kind: transport.FaultDisconnected, Op: "send", Err: net.ErrClosed}
	}
	if l.sendErr != nil {
		return l.sendErr
	}
	l.sent = append(l.sent, msg)
	return nil
}

// TryReceive pops the next inbound entry, or returns (nil, nil).
func (l *FakeLink) TryReceive() (protocol.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receives++
	if l.closed {
		return nil, &transport.Fault{Kind: transport.FaultDisconnected, Op: "receive", Err: net.ErrClosed}
	}
	if len(l.inbox) == 0 {
		return nil, nil
	}
	next := l.inbox[0]
	l.inbox = l.inbox[1:]
	return next.msg, next.err
}

// Close marks the link closed.
func (l *FakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// ErrRefused is returned by FakeConnector when no link is queued.
var ErrRefused = &transport.Fault{Kind: transport.FaultTransport, Op: "dial", Err: syscall.ECONNREFUSED}

// FakeConnector hands out queued links; with none queued every attempt is
// refused.
type FakeConnector struct {
	mu       sync.Mutex
	queue    []*FakeLink
	attempts int
}

// NewFakeConnector creates a connector with nothing queued.
func NewFakeConnector() *FakeConnector {
	return &FakeConnector{}
}

// Queue makes the next attempt succeed with a new link and returns it.
func (c *FakeConnector) Queue(id string) *FakeLink {
	link := NewFakeLink(id)
	c.QueueLink(link)
	return link
}

// QueueLink queues an existing link.
func (c *FakeConnector) QueueLink(link *FakeLink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, link)
}

// Attempts returns how many times TryConnect was called.
func (c *FakeConnector) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// TryConnect returns the next queued link or ErrRefused.
func (c *FakeConnector) TryConnect() (controller.Link, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if len(c.queue) == 0 {
		return nil, ErrRefused
	}
	link := c.queue[0]
	c.queue = c.queue[1:]
	return link, nil
}
