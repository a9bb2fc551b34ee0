// Package monitor serves a live view of the frame loop over HTTP. It
// implements host.Renderer: every drawn frame is encoded once as JSON and
// pushed to connected websocket clients. Slow clients miss frames rather than
// slowing the loop.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/thruflo/tracksync/internal/host"
	"github.com/thruflo/tracksync/internal/logging"
	"github.com/thruflo/tracksync/web"
)

const (
	// clientBuffer is how many frames may queue per client before frames
	// are dropped for it.
	clientBuffer = 8
	writeTimeout = time.Second
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server is the monitor HTTP server.
type Server struct {
	addr     string
	assets   fs.FS
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
	started  bool
	clients  map[*client]struct{}
	last     []byte
	frames   uint64
	dropped  uint64
}

// Option configures a Server.
type Option func(*Server)

// WithAssets overrides the static files served at /.
func WithAssets(assets fs.FS) Option {
	return func(s *Server) {
		s.assets = assets
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// NewServer creates a monitor for addr (host:port). Port 0 picks a free port.
func NewServer(addr string, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		log:     logging.Default(),
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The monitor binds to loopback and serves read-only data.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.assets == nil {
		s.assets = web.GetAssets("")
	}
	s.log = s.log.Component("monitor")
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/frame", s.handleFrame)
	mux.Handle("/", http.FileServer(http.FS(s.assets)))
	return mux
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("server already started")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.started = true
	return nil
}

// Serve serves on the bound socket until Stop is called or ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.RLock()
	server, listener := s.server, s.listener
	s.mu.RUnlock()
	if server == nil {
		return errors.New("server not listening")
	}

	stop := context.AfterFunc(ctx, func() { s.Stop() })
	defer stop()

	s.log.Info("monitor listening", "addr", listener.Addr().String())
	err := server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Start binds and serves. It blocks until Stop or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Stop shuts the server down and disconnects every client.
func (s *Server) Stop() error {
	s.mu.Lock()
	server := s.server
	if !s.started || server == nil {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	for c := range s.clients {
		c.conn.Close()
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// ListenAddr returns the bound address, or "" before Listen.
func (s *Server) ListenAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Dropped returns how many per-client frames were discarded.
func (s *Server) Dropped() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

// Draw implements host.Renderer.
func (s *Server) Draw(frame host.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = data
	s.frames++
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.dropped++
		}
	}
	return nil
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
	if s.last != nil {
		c.send <- s.last
	}
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	s.register(c)
	s.log.Debug("monitor client connected", "remote", r.RemoteAddr)

	go s.writeLoop(c)

	// Clients never send anything meaningful; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.unregister(c)
	conn.Close()
	s.log.Debug("monitor client disconnected", "remote", r.RemoteAddr)
}

func (s *Server) writeLoop(c *client) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	status := struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
		Frames  uint64 `json:"frames"`
	}{"ok", len(s.clients), s.frames}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	if last == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(last)
}
