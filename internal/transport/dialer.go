package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Dialer opens editor connections.
type Dialer struct {
	addr             string
	dialTimeout      time.Duration
	handshakeTimeout time.Duration
	pollTimeout      time.Duration
	writeTimeout     time.Duration
	netDialer        *net.Dialer
}

// DialerOption configures a Dialer.
type DialerOption func(*Dialer)

// WithDialTimeout bounds the TCP connect.
func WithDialTimeout(d time.Duration) DialerOption {
	return func(dl *Dialer) {
		dl.dialTimeout = d
	}
}

// WithHandshakeTimeout bounds the greeting exchange.
func WithHandshakeTimeout(d time.Duration) DialerOption {
	return func(dl *Dialer) {
		dl.handshakeTimeout = d
	}
}

// WithPollTimeout sets how long TryReceive waits for bytes when none are buffered.
func WithPollTimeout(d time.Duration) DialerOption {
	return func(dl *Dialer) {
		dl.pollTimeout = d
	}
}

// WithWriteTimeout bounds each Send.
func WithWriteTimeout(d time.Duration) DialerOption {
	return func(dl *Dialer) {
		dl.writeTimeout = d
	}
}

// NewDialer creates a Dialer for addr (host:port).
func NewDialer(addr string, opts ...DialerOption) *Dialer {
	d := &Dialer{
		addr:             addr,
		dialTimeout:      DefaultDialTimeout,
		handshakeTimeout: DefaultHandshakeTimeout,
		pollTimeout:      DefaultPollTimeout,
		writeTimeout:     DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.netDialer = &net.Dialer{Timeout: d.dialTimeout}
	return d
}

// Addr returns the editor address.
func (d *Dialer) Addr() string {
	return d.addr
}

// TryConnect starts a single connection attempt and returns at once. The
// returned Conn is still dialing: call Handshake on later ticks until it
// reports ready or fails. Only a malformed address fails synchronously; there
// are no internal retries.
func (d *Dialer) TryConnect() (*Conn, error) {
	if _, _, err := net.SplitHostPort(d.addr); err != nil {
		return nil, &Fault{Kind: FaultTransport, Op: "dial", Err: err}
	}
	c := newConn(d.addr, d.pollTimeout, d.writeTimeout)
	c.dialed = make(chan dialResult, 1)
	c.deadline = time.Now().Add(d.dialTimeout + d.handshakeTimeout)
	go func(dialed chan<- dialResult) {
		nc, err := d.netDialer.Dial("tcp", d.addr)
		dialed <- dialResult{nc: nc, err: err}
	}(c.dialed)
	return c, nil
}

// Dial connects and completes the handshake, blocking until the Conn is
// ready, the attempt fails or ctx is done. It suits tools and tests; a render
// loop uses TryConnect.
func (d *Dialer) Dial(ctx context.Context) (*Conn, error) {
	c, err := d.TryConnect()
	if err != nil {
		return nil, err
	}
	for {
		ready, err := c.Handshake()
		if err != nil {
			c.Close()
			return nil, err
		}
		if ready {
			return c, nil
		}
		if err := ctx.Err(); err != nil {
			c.Close()
			return nil, fmt.Errorf("dial %s: %w", d.addr, err)
		}
		if c.phase == phaseDialing {
			time.Sleep(d.pollTimeout)
		}
	}
}
