// Package editor is a minimal editor-side endpoint of the sync protocol. It
// accepts one demo at a time, records the track names the demo requests and
// lets callers push keys, rows and transport commands to it. The CLI drives
// it from a script; tests use it as a real peer for the controller.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/thruflo/tracksync/internal/logging"
	"github.com/thruflo/tracksync/internal/protocol"
	"github.com/thruflo/tracksync/internal/track"
	"github.com/thruflo/tracksync/internal/transport"
)

// DefaultAddr is where Rocket editors conventionally listen.
const DefaultAddr = "localhost:1338"

const (
	handshakeTimeout = time.Second
	writeTimeout     = time.Second
	readBufferSize   = 4096
)

var (
	// ErrNotConnected is returned when no demo is attached.
	ErrNotConnected = errors.New("no demo connected")

	// ErrUnknownTrack is returned when a command names a track the demo has
	// not requested.
	ErrUnknownTrack = errors.New("track not requested by demo")
)

// Server listens for demos.
type Server struct {
	addr string
	log  *logging.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	listener net.Listener
	session  *session
	sessions int
	closed   bool
}

// session is one attached demo.
type session struct {
	nc      net.Conn
	writeMu sync.Mutex

	// Guarded by Server.mu.
	names  []string
	row    uint32
	gotRow bool
}

// NewServer creates a Server for addr (host:port). Port 0 picks a free port.
func NewServer(addr string, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}
	s := &Server{addr: addr, log: log.Component("editor")}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("editor already listening")
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Serve accepts demos until ctx is done or Close is called. A new demo
// replaces the current one.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("editor not listening")
	}

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	s.log.Info("editor listening", "addr", ln.Addr().String())
	for {
		nc, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		go s.handle(nc)
	}
}

func (s *Server) handle(nc net.Conn) {
	if err := transport.AcceptHandshake(nc, handshakeTimeout); err != nil {
		s.log.Warn("rejected connection", "remote", nc.RemoteAddr().String(), "error", err)
		nc.Close()
		return
	}
	if tcp, ok := nc.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	sess := &session{nc: nc}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		nc.Close()
		return
	}
	if old := s.session; old != nil {
		old.nc.Close()
	}
	s.session = sess
	s.sessions++
	s.cond.Broadcast()
	s.mu.Unlock()

	s.log.Info("demo connected", "remote", nc.RemoteAddr().String())
	err := s.read(sess)

	s.mu.Lock()
	if s.session == sess {
		s.session = nil
	}
	s.cond.Broadcast()
	s.mu.Unlock()
	nc.Close()

	if err != nil {
		s.log.Warn("demo session ended", "error", err)
	} else {
		s.log.Info("demo disconnected")
	}
}

func (s *Server) read(sess *session) error {
	dec := protocol.NewDecoder()
	buf := make([]byte, readBufferSize)
	for {
		n, err := sess.nc.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			for {
				msg, derr := dec.Next()
				if derr != nil {
					return derr
				}
				if msg == nil {
					break
				}
				s.apply(sess, msg)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func (s *Server) apply(sess *session, msg protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m := msg.(type) {
	case protocol.RequestTrack:
		sess.names = append(sess.names, m.Name)
		s.log.Debug("track requested", "name", m.Name, "index", len(sess.names)-1)
	case protocol.SetRow:
		sess.row = m.Row
		sess.gotRow = true
	default:
		s.log.Debug("ignoring message from demo", "command", msg.Command().String())
	}
	s.cond.Broadcast()
}

// Connected reports whether a demo is attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// Sessions returns how many demos have attached since the server started.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

// Tracks returns the names requested by the current demo, in index order.
func (s *Server) Tracks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	return append([]string(nil), s.session.names...)
}

// Row returns the last row the current demo reported and whether it has
// reported one.
func (s *Server) Row() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return 0, false
	}
	return s.session.row, s.session.gotRow
}

// waitFor blocks until cond holds or ctx is done. cond runs with s.mu held.
func (s *Server) waitFor(ctx context.Context, cond func() bool) error {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for !cond() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.closed {
			return net.ErrClosed
		}
		s.cond.Wait()
	}
	return nil
}

// WaitConnected blocks until a demo is attached.
func (s *Server) WaitConnected(ctx context.Context) error {
	return s.waitFor(ctx, func() bool { return s.session != nil })
}

// WaitSessions blocks until n demos have attached in total.
func (s *Server) WaitSessions(ctx context.Context, n int) error {
	return s.waitFor(ctx, func() bool { return s.sessions >= n && s.session != nil })
}

// WaitTracks blocks until the current demo has requested at least n tracks.
func (s *Server) WaitTracks(ctx context.Context, n int) error {
	return s.waitFor(ctx, func() bool { return s.session != nil && len(s.session.names) >= n })
}

// WaitRow blocks until the current demo reports a row satisfying ok.
func (s *Server) WaitRow(ctx context.Context, ok func(uint32) bool) error {
	return s.waitFor(ctx, func() bool {
		return s.session != nil && s.session.gotRow && ok(s.session.row)
	})
}

// index resolves name against the current demo's requests.
func (s *Server) index(name string) (*session, uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, 0, ErrNotConnected
	}
	for i, n := range s.session.names {
		if n == name {
			return s.session, uint32(i), nil
		}
	}
	return nil, 0, fmt.Errorf("%w: %s", ErrUnknownTrack, name)
}

func (s *Server) current() (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, ErrNotConnected
	}
	return s.session, nil
}

// Send writes msg to the current demo.
func (s *Server) Send(msg protocol.Message) error {
	sess, err := s.current()
	if err != nil {
		return err
	}
	return sess.send(msg)
}

func (sess *session) send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if err := sess.nc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if _, err := sess.nc.Write(data); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Command(), err)
	}
	return nil
}

// SetKey sets a key on the named track.
func (s *Server) SetKey(name string, k track.Key) error {
	sess, idx, err := s.index(name)
	if err != nil {
		return err
	}
	return sess.send(protocol.SetKey{Track: idx, Row: k.Row, Value: k.Value, Interp: k.Interp})
}

// DeleteKey removes the key at row from the named track.
func (s *Server) DeleteKey(name string, row uint32) error {
	sess, idx, err := s.index(name)
	if err != nil {
		return err
	}
	return sess.send(protocol.DeleteKey{Track: idx, Row: row})
}

// SetRow moves the demo to row.
func (s *Server) SetRow(row uint32) error {
	return s.Send(protocol.SetRow{Row: row})
}

// Pause pauses the demo.
func (s *Server) Pause() error {
	return s.Send(protocol.Pause{})
}

// Play resumes the demo.
func (s *Server) Play() error {
	return s.Send(protocol.Play{})
}

// SaveTracks asks the demo to persist its tracks.
func (s *Server) SaveTracks() error {
	return s.Send(protocol.SaveTracks{})
}

// Disconnect drops the current demo, if any. The demo may reconnect.
func (s *Server) Disconnect() {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess != nil {
		sess.nc.Close()
	}
}

// Close stops listening and drops the current demo. It is safe to call more
// than once.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln, sess := s.listener, s.session
	s.cond.Broadcast()
	s.mu.Unlock()

	if sess != nil {
		sess.nc.Close()
	}
	if ln != nil {
		return ln.Close()
	}
	return nil
}
