package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/adcondev/relay-daemon/internal/auth"
	"github.com/adcondev/relay-daemon/internal/protocol"
	"github.com/adcondev/relay-daemon/internal/relayerr"
)

type state int

const (
	stateClassifying state = iota
	stateRegistering
	stateAuthenticating
	stateRelaying
	stateTerminated
)

func (st state) String() string {
	switch st {
	case stateClassifying:
		return "classifying"
	case stateRegistering:
		return "registering"
	case stateAuthenticating:
		return "authenticating"
	case stateRelaying:
		return "relaying"
	default:
		return "terminated"
	}
}

// readChunk is the size of a single read while relaying
const readChunk = 1024

// session drives one connection through the protocol states.
type session struct {
	srv      *Server
	conn     *Conn
	reader   io.Reader
	username string
	logger   *slog.Logger
	// awaitTerminator is set when the auth request arrived without its
	// sentinel; a first relay frame holding only the sentinel completes the
	// request and is not relayed.
	awaitTerminator bool
}

func (ss *session) run(ctx context.Context) {
	st := stateClassifying
	for st != stateTerminated {
		next := ss.step(ctx, st)
		if next != st {
			ss.logger.Debug("state change", slog.String("from", st.String()), slog.String("to", next.String()))
		}
		st = next
	}
}

func (ss *session) step(ctx context.Context, st state) state {
	if ctx.Err() != nil {
		return stateTerminated
	}
	switch st {
	case stateClassifying:
		return ss.classify()
	case stateRegistering:
		return ss.register(ctx)
	case stateAuthenticating:
		return ss.authenticate(ctx)
	case stateRelaying:
		return ss.relay(ctx)
	default:
		return stateTerminated
	}
}

func (ss *session) classify() state {
	class, username := ss.srv.registry.Classify(ss.conn.ID(), ss.srv.cfg.TrustAuthenticatedAddress)
	switch class {
	case ClassPendingRegistration:
		return stateRegistering
	case ClassAuthenticated:
		ss.username = username
		ss.logger.Info("🔗 joined authenticated address", slog.String("username", username))
		return stateRelaying
	default:
		return stateAuthenticating
	}
}

// register reads one registration request. Only a malformed request releases
// the pending address; a peer that simply leaves may come back to register.
func (ss *session) register(ctx context.Context) state {
	addr := ss.conn.Addr()

	var req protocol.RegistrationRequest
	if _, err := ss.readRequest(&req); err != nil {
		if errors.Is(err, relayerr.ErrMalformedRequest) {
			ss.srv.registry.ClearPending(addr)
		}
		ss.logger.Info("registration aborted", slog.String("reason", relayerr.Describe(err)))
		return stateTerminated
	}

	if err := ss.srv.auth.Register(ctx, addr, *req.Password, *req.Username); err != nil {
		if errors.Is(err, relayerr.ErrMalformedRequest) {
			ss.srv.registry.ClearPending(addr)
		}
		ss.logger.Error("❌ registration failed", slog.String("reason", relayerr.Describe(err)))
		return stateTerminated
	}

	ss.srv.registry.ClearPending(addr)
	ss.reply(protocol.RegistrationAccepted())
	ss.logger.Info("✅ registration complete", slog.String("username", *req.Username))
	return stateTerminated
}

func (ss *session) authenticate(ctx context.Context) state {
	var req protocol.AuthRequest
	terminated, err := ss.readRequest(&req)
	if err != nil {
		ss.logger.Info("authentication aborted", slog.String("reason", relayerr.Describe(err)))
		return stateTerminated
	}

	res, err := ss.srv.auth.Lookup(ctx, ss.conn.Addr(), *req.Password)
	if err != nil {
		ss.logger.Error("❌ credential lookup failed", slog.String("reason", relayerr.Describe(err)))
		return stateTerminated
	}

	switch res.Outcome {
	case auth.OutcomeAuthenticated:
		// Reply first so it precedes every broadcast on this connection.
		ss.reply(protocol.AuthAccepted(res.Username))
		if err := ss.srv.registry.Authenticate(ss.conn.ID(), res.Username); err != nil {
			ss.logger.Error("registry rejected authentication", slog.String("error", err.Error()))
			return stateTerminated
		}
		ss.username = res.Username
		ss.awaitTerminator = !terminated
		ss.logger.Info("✅ authenticated", slog.String("username", res.Username))
		return stateRelaying

	case auth.OutcomeUnknownAddress:
		ss.srv.registry.MarkPending(ss.conn.ID())
		ss.reply(protocol.AuthRegistrationRequired())
		ss.logger.Info("📝 registration required")
		if ss.srv.cfg.RegisterOnSameConnection {
			return stateRegistering
		}
		return stateTerminated

	default:
		ss.reply(protocol.AuthWrong())
		ss.logger.Info("🚫 wrong auth", slog.String("outcome", res.Outcome.String()))
		return stateTerminated
	}
}

// relay cuts the stream into sentinel-terminated frames and submits each
// one for broadcast.
func (ss *session) relay(ctx context.Context) state {
	cfg := ss.srv.cfg
	framer := protocol.NewFramer(cfg.Sentinel, cfg.MaxFrameBytes)
	buf := make([]byte, readChunk)

	for {
		if cfg.IdleTimeout > 0 {
			_ = ss.conn.raw.SetReadDeadline(time.Now().Add(cfg.IdleTimeout))
		}
		n, err := ss.reader.Read(buf)
		if n > 0 {
			frames, ferr := framer.Push(buf[:n])
			for _, frame := range frames {
				if ss.awaitTerminator {
					ss.awaitTerminator = false
					if string(frame) == cfg.Sentinel {
						ss.logger.Debug("late request terminator discarded")
						continue
					}
				}
				if !ss.submitFrame(ctx, frame) {
					return stateTerminated
				}
			}
			if ferr != nil {
				ss.logger.Warn("closing session", slog.String("reason", relayerr.Describe(ferr)))
				return stateTerminated
			}
			if framer.Pending() > 0 {
				ss.logger.Debug("partial frame buffered", slog.Int("bytes", framer.Pending()))
			}
		}
		if err != nil {
			ss.logger.Debug("relay loop ended", slog.String("reason", relayerr.Describe(err)))
			return stateTerminated
		}
	}
}

func (ss *session) submitFrame(ctx context.Context, frame []byte) bool {
	if ss.srv.limiter != nil && !ss.srv.limiter.Allow(ss.conn.Addr()) {
		ss.logger.Warn("🚫 rate limit exceeded, frame dropped")
		return true
	}

	job := &RelayJob{
		ID:         uuid.New().String(),
		ConnID:     ss.conn.ID(),
		Username:   ss.username,
		Text:       string(frame),
		ReceivedAt: time.Now(),
	}
	if !ss.srv.submit(ctx, job) {
		return false
	}
	current, capacity := ss.srv.QueueStatus()
	ss.logger.Debug("📥 frame queued",
		slog.String("job", job.ID),
		slog.Int("queue", current),
		slog.Int("capacity", capacity))
	return true
}

// readRequest decodes one request within RequestTimeout. Bytes the peer sent
// after the request stay available to the next read. It reports whether the
// request's sentinel was consumed.
func (ss *session) readRequest(req protocol.Request) (bool, error) {
	cfg := ss.srv.cfg
	if cfg.RequestTimeout > 0 {
		_ = ss.conn.raw.SetReadDeadline(time.Now().Add(cfg.RequestTimeout))
		defer func() { _ = ss.conn.raw.SetReadDeadline(time.Time{}) }()
	}

	rest, terminated, err := protocol.ReadRequest(ss.reader, int64(cfg.MaxFrameBytes), cfg.Sentinel, req)
	ss.reader = rest
	return terminated, err
}

func (ss *session) reply(v any) {
	data, err := protocol.Encode(v)
	if err != nil {
		ss.logger.Error("encode reply", slog.String("error", err.Error()))
		return
	}
	if err := ss.conn.Send(data); err != nil {
		ss.logger.Warn("reply not delivered", slog.String("reason", relayerr.Describe(err)))
	}
}
