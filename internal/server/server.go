// Package server accepts relay clients over TCP and WebSocket and runs the
// per-connection session protocol.
package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adcondev/relay-daemon/internal/auth"
	"github.com/adcondev/relay-daemon/internal/dependencies/clock"
	"github.com/adcondev/relay-daemon/internal/protocol"
)

// Authenticator answers the credential questions of a session.
type Authenticator interface {
	Lookup(ctx context.Context, address, password string) (auth.LookupResult, error)
	Register(ctx context.Context, address, password, username string) error
}

// Config holds server configuration
type Config struct {
	ListenAddr string
	QueueSize  int
	SendBuffer int
	// MaxFrameBytes bounds a request and an unterminated chat frame
	MaxFrameBytes  int
	Sentinel       string
	RequestTimeout time.Duration
	WriteTimeout   time.Duration
	// IdleTimeout closes a relaying session that sends nothing; 0 waits forever
	IdleTimeout time.Duration
	// MaxMessagesPerMinute per address; 0 disables the limit
	MaxMessagesPerMinute int
	// RegisterOnSameConnection keeps the connection open after "registration
	// required" so the client can send its registration without reconnecting
	RegisterOnSameConnection bool
	// TrustAuthenticatedAddress lets a new connection inherit the username of
	// an authenticated connection from the same address
	TrustAuthenticatedAddress bool
	// AllowedOrigins for the WebSocket upgrade; empty enforces same origin
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the server
func DefaultConfig() Config {
	return Config{
		ListenAddr:     ":9090",
		QueueSize:      100,
		SendBuffer:     256,
		MaxFrameBytes:  64 * 1024,
		Sentinel:       protocol.DefaultSentinel,
		RequestTimeout: 30 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// RelayJob is one complete chat frame waiting to be broadcast.
type RelayJob struct {
	ID         string
	ConnID     string
	Username   string
	Text       string
	ReceivedAt time.Time
}

// Stats is a snapshot of server state for health reporting
type Stats struct {
	Listening     bool          `json:"listening"`
	ListenAddr    string        `json:"listen_addr"`
	Registry      RegistryStats `json:"registry"`
	QueueCurrent  int           `json:"queue_current"`
	QueueCapacity int           `json:"queue_capacity"`
}

// Server owns the registry, the listener and the relay queue.
type Server struct {
	cfg      Config
	auth     Authenticator
	registry *Registry
	listener *Listener
	limiter  *MessageRateLimiter
	logger   *slog.Logger

	relayQueue chan *RelayJob

	ctx    context.Context
	cancel context.CancelFunc

	sessionsMu   sync.Mutex
	sessions     sync.WaitGroup
	shuttingDown bool
	shutdownOnce sync.Once
}

// NewServer creates a relay server. Call StartListener to accept TCP clients.
func NewServer(cfg Config, authenticator Authenticator, clk clock.Clock, logger *slog.Logger) *Server {
	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = def.MaxFrameBytes
	}
	if cfg.Sentinel == "" {
		cfg.Sentinel = def.Sentinel
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With(slog.String("component", "server"))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg,
		auth:       authenticator,
		registry:   NewRegistry(),
		logger:     logger,
		relayQueue: make(chan *RelayJob, cfg.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}
	if cfg.MaxMessagesPerMinute > 0 {
		s.limiter = NewMessageRateLimiter(cfg.MaxMessagesPerMinute, clk)
	}
	s.listener = NewListener(cfg.ListenAddr, s.handleTCP, logger)
	return s
}

// Registry returns the connection registry
func (s *Server) Registry() *Registry {
	return s.registry
}

// RelayQueue returns the relay queue channel (for worker consumption)
func (s *Server) RelayQueue() <-chan *RelayJob {
	return s.relayQueue
}

// QueueStatus returns current and max queue size
func (s *Server) QueueStatus() (current, capacity int) {
	return len(s.relayQueue), cap(s.relayQueue)
}

// StartListener binds the TCP listen address and starts accepting.
func (s *Server) StartListener() error {
	return s.listener.Start()
}

// StopListener stops accepting new TCP connections. Live sessions continue.
func (s *Server) StopListener() error {
	return s.listener.Stop()
}

// Listening reports whether the TCP listener is accepting
func (s *Server) Listening() bool {
	return s.listener.Running()
}

// ListenAddr returns the bound TCP address, or the configured one when stopped.
func (s *Server) ListenAddr() string {
	if addr := s.listener.Addr(); addr != nil {
		return addr.String()
	}
	return s.cfg.ListenAddr
}

// Stats returns a snapshot for health reporting
func (s *Server) Stats() Stats {
	current, capacity := s.QueueStatus()
	return Stats{
		Listening:     s.Listening(),
		ListenAddr:    s.ListenAddr(),
		Registry:      s.registry.Stats(),
		QueueCurrent:  current,
		QueueCapacity: capacity,
	}
}

func (s *Server) handleTCP(raw net.Conn) {
	if !s.trackSession() {
		_ = raw.Close()
		return
	}
	go func() {
		defer s.sessions.Done()
		s.ServeConn(raw, hostOf(raw.RemoteAddr().String()), TransportTCP)
	}()
}

// trackSession registers a session unless the server is shutting down.
func (s *Server) trackSession() bool {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	if s.shuttingDown {
		return false
	}
	s.sessions.Add(1)
	return true
}

// ServeConn runs the session protocol on raw until the peer leaves or the
// server shuts down. addr is the peer host used for credential lookups.
func (s *Server) ServeConn(raw net.Conn, addr, transport string) {
	id := uuid.New().String()
	logger := s.logger.With(
		slog.String("conn", id),
		slog.String("addr", addr),
		slog.String("transport", transport))

	c := newConn(raw, id, addr, transport, s.cfg.SendBuffer, s.cfg.WriteTimeout, logger)
	s.registry.Add(c)
	logger.Info("➕ client connected", slog.Int("total", s.registry.Count()))

	sess := &session{
		srv:    s,
		conn:   c,
		reader: raw,
		logger: logger,
	}
	sess.run(s.ctx)

	s.registry.Remove(id)
	c.Close()
	if s.limiter != nil && !s.registry.HasAddress(addr) {
		s.limiter.Forget(addr)
	}
	logger.Info("➖ client disconnected",
		slog.Int64("delivered", c.Delivered()),
		slog.Int("remaining", s.registry.Count()))
}

// submit hands a frame to the relay worker. It blocks while the queue is
// full so frames keep their arrival order.
func (s *Server) submit(ctx context.Context, job *RelayJob) bool {
	select {
	case s.relayQueue <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// Shutdown stops the listener, closes every live connection and waits up to
// timeout for sessions to finish.
func (s *Server) Shutdown(timeout time.Duration) {
	s.shutdownOnce.Do(func() {
		_ = s.listener.Stop()

		s.sessionsMu.Lock()
		s.shuttingDown = true
		s.sessionsMu.Unlock()

		s.cancel()

		s.logger.Info("🛑 shutting down, disconnecting clients", slog.Int("count", s.registry.Count()))
		s.registry.ForEach(func(c *Conn) {
			c.Abort()
		})

		done := make(chan struct{})
		go func() {
			s.sessions.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			s.logger.Warn("sessions still running after shutdown timeout")
		}
	})
}

// hostOf strips the port from a network address.
func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
