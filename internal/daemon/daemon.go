// Package daemon runs the relay as a service: it owns the process lifecycle,
// the HTTP surface and the operator controls.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/judwhite/go-svc"

	"github.com/adcondev/relay-daemon/internal/config"
	"github.com/adcondev/relay-daemon/internal/factory"
	"github.com/adcondev/relay-daemon/internal/logging"
)

const (
	shutdownTimeout = 10 * time.Second
	sessionDrain    = 5 * time.Second
)

// GetEnvConfig returns the current environment configuration
func GetEnvConfig() config.Environment {
	return config.GetEnvironment(config.BuildEnvironment)
}

// Program implements svc.Service interface
type Program struct {
	env config.Environment

	wg         sync.WaitGroup
	quit       chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	sink       *logging.Sink
	logger     *slog.Logger
	app        *factory.App
	httpServer *http.Server
	httpAddr   string
	startTime  time.Time

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
}

// NewProgram creates a service program for env
func NewProgram(env config.Environment) *Program {
	return &Program{env: env}
}

// Init opens the log sink
func (p *Program) Init(_ svc.Environment) error {
	if p.env.Name == "" {
		p.env = GetEnvConfig()
	}

	if err := p.initLogging(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	p.logger.Info("╔════════════════════════════════════════════════════════════╗")
	p.logger.Info("║   💬 RELAY DAEMON - Multi-client text relay                ║")
	p.logger.Info("╚════════════════════════════════════════════════════════════╝")
	p.logger.Info("🚀 starting service", slog.String("env", p.env.Name))
	p.logger.Info("📅 build", slog.String("date", config.BuildDate), slog.String("time", config.BuildTime))
	return nil
}

// Start wires the application, starts the relay worker, the TCP listener
// and the HTTP server.
func (p *Program) Start() error {
	if p.logger == nil {
		return errors.New("daemon: Start called before Init")
	}

	p.quit = make(chan struct{})
	p.startTime = time.Now()
	p.ctx, p.cancel = context.WithCancel(context.Background())

	app, err := factory.New(factory.Config{Env: p.env, Logger: p.logger})
	if err != nil {
		p.cancel()
		return fmt.Errorf("failed to create application: %w", err)
	}
	p.app = app

	p.app.AuthService.StartCleanup(p.ctx)
	p.app.Worker.Start()

	if err := p.app.Server.StartListener(); err != nil {
		p.app.Worker.Stop()
		_ = p.app.Close()
		p.cancel()
		return fmt.Errorf("failed to listen on %s: %w", p.env.ListenAddr, err)
	}

	p.mu.Lock()
	p.started = true
	p.mu.Unlock()

	if p.env.HTTPAddr != "" {
		if err := p.startHTTP(); err != nil {
			_ = p.Stop()
			return err
		}
	}

	p.logReady()
	return nil
}

func (p *Program) startHTTP() error {
	p.httpServer = &http.Server{
		Addr:         p.env.HTTPAddr,
		Handler:      p.routes(),
		ReadTimeout:  p.env.ReadTimeout,
		WriteTimeout: p.env.WriteTimeout,
		IdleTimeout:  p.env.IdleTimeout,
	}

	ln, err := listenHTTP(p.env.HTTPAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", p.env.HTTPAddr, err)
	}
	p.httpAddr = ln.Addr().String()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("❌ HTTP server error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Stop shuts the service down: listener, HTTP, relay worker, live sessions,
// credential store, log sink. Calling Stop more than once is safe.
func (p *Program) Stop() error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		started := p.started
		p.started = false
		p.mu.Unlock()
		if !started {
			return
		}

		p.logger.Info("🛑 service shutting down...")

		// 1. Stop accepting relay clients
		if err := p.app.Server.StopListener(); err != nil {
			p.logger.Warn("⚠️ listener close error", slog.String("error", err.Error()))
		}

		// 2. Graceful HTTP shutdown
		if p.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := p.httpServer.Shutdown(ctx); err != nil {
				p.logger.Warn("⚠️ HTTP shutdown error", slog.String("error", err.Error()))
			}
			cancel()
		}

		// 3. Stop relay worker
		p.app.Worker.Stop()

		// 4. Close every live connection
		p.app.Server.Shutdown(sessionDrain)

		// 5. Stop auth cleanup, close the store
		p.cancel()
		if err := p.app.Close(); err != nil {
			p.logger.Warn("⚠️ store close error", slog.String("error", err.Error()))
		}

		close(p.quit)
		p.wg.Wait()

		p.logger.Info("✅ service stopped", slog.Duration("uptime", time.Since(p.startTime).Round(time.Second)))

		// 6. Close the log sink last
		_ = p.sink.Close()
	})
	return nil
}

// Done is closed once Stop has finished
func (p *Program) Done() <-chan struct{} {
	return p.quit
}

// HTTPAddr returns the bound HTTP address, empty when HTTP is disabled
func (p *Program) HTTPAddr() string {
	return p.httpAddr
}
