package server

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Listener runs a TCP accept loop that can be stopped and started again.
// Stopping closes the socket only; accepted connections are not touched.
type Listener struct {
	addr   string
	handle func(net.Conn)
	logger *slog.Logger

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// NewListener creates a stopped listener for addr. handle must not block.
func NewListener(addr string, handle func(net.Conn), logger *slog.Logger) *Listener {
	return &Listener{
		addr:   addr,
		handle: handle,
		logger: logger.With(slog.String("listener", "tcp")),
	}
}

// Start binds the address and starts accepting. Starting a running listener
// is a no-op.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return nil
	}

	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	l.ln = ln

	l.wg.Add(1)
	go l.acceptLoop(ln)

	l.logger.Info("👂 accepting connections", slog.String("addr", ln.Addr().String()))
	return nil
}

// Stop closes the socket and waits for the accept loop to exit.
func (l *Listener) Stop() error {
	l.mu.Lock()
	ln := l.ln
	l.ln = nil
	l.mu.Unlock()

	if ln == nil {
		return nil
	}
	err := ln.Close()
	l.wg.Wait()
	l.logger.Info("📴 stopped accepting connections")
	return err
}

// Running reports whether the accept loop is active
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ln != nil
}

// Addr returns the bound address, or nil when stopped
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *Listener) acceptLoop(ln net.Listener) {
	defer l.wg.Done()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// Transient accept errors (e.g. EMFILE): back off and retry
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff < time.Second {
				backoff *= 2
			}
			l.logger.Warn("accept failed", slog.String("error", err.Error()), slog.Duration("retry_in", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		l.handle(conn)
	}
}
