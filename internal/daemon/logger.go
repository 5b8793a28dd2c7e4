package daemon

import (
	"log/slog"
	"os"

	"github.com/adcondev/relay-daemon/internal/logging"
)

// initLogging opens the sink for the environment and makes it the default
// slog logger.
func (p *Program) initLogging() error {
	logPath := p.env.LogPath(os.Getenv("PROGRAMDATA"))

	sink, err := logging.Open(logging.Config{
		Path:    logPath,
		Verbose: p.env.Verbose,
		Format:  p.env.LogFormat,
		Console: p.env.ConsoleLogs,
	})
	if err != nil {
		return err
	}

	p.sink = sink
	p.logger = sink.Logger()
	slog.SetDefault(p.logger)

	p.logger.Info("📁 log file", slog.String("path", logPath))
	return nil
}

func (p *Program) logReady() {
	p.logger.Info("┌─────────────────────────────────────────────────────────────┐")
	p.logger.Info("│ 💬 RELAY DAEMON READY", slog.String("env", p.env.Name))
	p.logger.Info("│ 🔌 TCP relay", slog.String("addr", p.app.Server.ListenAddr()))
	if p.httpAddr != "" {
		p.logger.Info("│ 🌐 Test client", slog.String("url", "http://"+p.httpAddr))
		p.logger.Info("│ 🔗 WebSocket", slog.String("url", "ws://"+p.httpAddr+"/ws"))
		p.logger.Info("│ 💚 Health", slog.String("url", "http://"+p.httpAddr+"/health"))
		p.logger.Info("│ 🔐 Admin API", slog.Bool("enabled", p.env.AdminToken != ""))
	}
	p.logger.Info("└─────────────────────────────────────────────────────────────┘")
}
