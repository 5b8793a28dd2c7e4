package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adcondev/relay-daemon/internal/config"
)

// ErrNotRunning is returned by operator controls before Start or after Stop.
var ErrNotRunning = errors.New("daemon: service not running")

func (p *Program) running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// StartAccepting re-opens the TCP listener after StopAccepting.
func (p *Program) StartAccepting() error {
	if !p.running() {
		return ErrNotRunning
	}
	return p.app.Server.StartListener()
}

// StopAccepting closes the TCP listener. Live sessions keep running.
func (p *Program) StopAccepting() error {
	if !p.running() {
		return ErrNotRunning
	}
	return p.app.Server.StopListener()
}

// ClearCredentials empties the credential store. Authenticated sessions are
// not disconnected.
func (p *Program) ClearCredentials(ctx context.Context) error {
	if !p.running() {
		return ErrNotRunning
	}
	if err := p.app.AuthService.Clear(ctx); err != nil {
		return err
	}
	p.logger.Warn("🧹 credential store cleared")
	return nil
}

// SetConsoleLogs shows or hides log records on the console.
func (p *Program) SetConsoleLogs(on bool) {
	p.sink.SetConsole(on)
	p.logger.Info("🖥️ console logs", slog.Bool("enabled", on))
}

// SetVerbose switches the log level between debug and info.
func (p *Program) SetVerbose(on bool) {
	p.sink.SetVerbose(on)
}

// ClearLogs truncates the log file.
func (p *Program) ClearLogs() error {
	if err := p.sink.Clear(); err != nil {
		return err
	}
	p.logger.Info("🧹 log file cleared")
	return nil
}

// Health gathers the current service state
func (p *Program) Health(ctx context.Context) HealthResponse {
	resp := HealthResponse{
		Status: "ok",
		Logs: LogStatus{
			Path:      p.sink.Path(),
			SizeBytes: p.sink.Size(),
			Console:   p.sink.ConsoleEnabled(),
			Verbose:   p.sink.Verbose(),
		},
		Build: BuildInfo{
			Env:  config.BuildEnvironment,
			Date: config.BuildDate,
			Time: config.BuildTime,
		},
	}
	if !p.running() {
		resp.Status = "stopped"
		return resp
	}

	stats := p.app.Server.Stats()
	resp.Listener = ListenerStatus{Accepting: stats.Listening, Addr: stats.ListenAddr}
	resp.Clients = stats.Registry

	var utilization float64
	if stats.QueueCapacity > 0 {
		utilization = float64(stats.QueueCurrent) / float64(stats.QueueCapacity) * 100
	}
	resp.Queue = QueueStatus{
		Current:     stats.QueueCurrent,
		Capacity:    stats.QueueCapacity,
		Utilization: utilization,
	}

	ws := p.app.Worker.Stats()
	resp.Worker = WorkerStatus{
		Running:          ws.IsRunning,
		JobsRelayed:      ws.JobsRelayed,
		JobsFailed:       ws.JobsFailed,
		Deliveries:       ws.Deliveries,
		DeliveriesFailed: ws.DeliveriesFailed,
	}

	accounts, err := p.app.AuthService.Count(ctx)
	if err != nil {
		p.logger.Warn("⚠️ health: store count failed", slog.String("error", err.Error()))
		resp.Status = "degraded"
	}
	resp.Accounts = accounts

	if !stats.Listening && resp.Status == "ok" {
		resp.Status = "paused"
	}
	resp.Uptime = int(time.Since(p.startTime).Seconds())
	return resp
}

// StatusSummary is a one-line status for the operator console
func (p *Program) StatusSummary() string {
	h := p.Health(context.Background())
	if h.Status == "stopped" {
		return "stopped"
	}
	return fmt.Sprintf("%s | accepting=%t addr=%s | connections=%d (tcp=%d ws=%d) authenticated=%d pending=%d | accounts=%d | relayed=%d | console logs=%t verbose=%t | uptime=%ds",
		h.Status, h.Listener.Accepting, h.Listener.Addr,
		h.Clients.Connections, h.Clients.TCP, h.Clients.WebSocket,
		h.Clients.Authenticated, h.Clients.PendingAddresses,
		h.Accounts, h.Worker.JobsRelayed, h.Logs.Console, h.Logs.Verbose, h.Uptime)
}
