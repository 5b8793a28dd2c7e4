package server

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adcondev/relay-daemon/internal/relayerr"
)

// Transport names
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "ws"
)

// Conn is one client connection. Outbound bytes go through a bounded queue
// drained by a dedicated writer goroutine, so a slow peer never blocks the
// caller of Send.
type Conn struct {
	id        string
	addr      string
	transport string
	raw       net.Conn

	send         chan []byte
	writeTimeout time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}

	failed    atomic.Bool
	delivered atomic.Int64
}

func newConn(raw net.Conn, id, addr, transport string, sendBuffer int, writeTimeout time.Duration, logger *slog.Logger) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	c := &Conn{
		id:           id,
		addr:         addr,
		transport:    transport,
		raw:          raw,
		send:         make(chan []byte, sendBuffer),
		writeTimeout: writeTimeout,
		logger:       logger,
		done:         make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// ID returns the unique connection identifier.
func (c *Conn) ID() string { return c.id }

// Addr returns the peer host without port.
func (c *Conn) Addr() string { return c.addr }

// Transport returns TransportTCP or TransportWebSocket.
func (c *Conn) Transport() string { return c.transport }

// Send enqueues msg without blocking. A full queue, a closed connection or an
// earlier write failure is reported as a delivery failure.
func (c *Conn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("%s: %w: %w", c.id, relayerr.ErrDeliveryFailure, relayerr.ErrPeerClosed)
	}
	if c.failed.Load() {
		return fmt.Errorf("%s: %w: previous write failed", c.id, relayerr.ErrDeliveryFailure)
	}

	select {
	case c.send <- msg:
		return nil
	default:
		return fmt.Errorf("%s: %w: send buffer full", c.id, relayerr.ErrDeliveryFailure)
	}
}

// Close stops accepting messages, waits for the writer to flush what is
// queued and closes the socket.
func (c *Conn) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	<-c.done
}

// Abort closes the socket immediately. Pending reads and writes fail.
func (c *Conn) Abort() {
	_ = c.raw.Close()
}

// Delivered returns the number of messages written to the peer.
func (c *Conn) Delivered() int64 {
	return c.delivered.Load()
}

func (c *Conn) writeLoop() {
	defer close(c.done)
	defer func() { _ = c.raw.Close() }()

	for msg := range c.send {
		if c.failed.Load() {
			continue
		}
		if c.writeTimeout > 0 {
			_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		}
		if _, err := c.raw.Write(msg); err != nil {
			c.failed.Store(true)
			c.logger.Warn("⚠️ write failed",
				slog.String("conn", c.id),
				slog.String("reason", relayerr.Describe(err)))
			continue
		}
		c.delivered.Add(1)
	}
}
