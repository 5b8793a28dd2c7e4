package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/judwhite/go-svc"
	"github.com/spf13/cobra"

	"github.com/adcondev/relay-daemon/internal/console"
	"github.com/adcondev/relay-daemon/internal/daemon"
)

func newServeCmd(opts *Options) *cobra.Command {
	var consoleMode bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		Long: `Run the relay server. From a terminal (or with --console) it runs in the
foreground and reads operator commands from stdin; otherwise it runs under
the service manager.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prg := daemon.NewProgram(opts.Environment())

			if consoleMode || isInteractive() {
				return runConsole(cmd, prg)
			}
			// Run as a service
			return svc.Run(prg, syscall.SIGINT, syscall.SIGTERM)
		},
	}

	cmd.Flags().BoolVar(&consoleMode, "console", false, "Run in console mode (not as service)")
	cmd.Flags().StringVar(&opts.ListenAddr, "listen", "", "TCP relay address (env: RELAY_LISTEN_ADDR)")
	cmd.Flags().StringVar(&opts.HTTPAddr, "http", "", "HTTP address for health, WebSocket and test client (env: RELAY_HTTP_ADDR)")

	return cmd
}

// runConsole runs the program in the foreground until the operator types
// exit, stdin closes or an interrupt arrives.
func runConsole(cmd *cobra.Command, prg *daemon.Program) error {
	if err := prg.Init(nil); err != nil {
		return fmt.Errorf("init failed: %w", err)
	}
	if err := prg.Start(); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	_, _ = fmt.Fprintln(out, "  💬 RELAY SERVICIO - Console mode")
	_, _ = fmt.Fprintln(out, "  Type help for commands, exit or Ctrl+C to stop")
	_, _ = fmt.Fprintln(out, "═══════════════════════════════════════════════════════")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := console.Run(ctx, cmd.InOrStdin(), out, prg)
	if ctx.Err() != nil {
		_, _ = fmt.Fprintln(out, "\n🛑 Shutting down...")
	}

	_ = prg.Stop()

	// End of input and interrupts are normal ways to leave
	if err != nil && ctx.Err() == nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// isInteractive checks if running from a terminal (not as service)
func isInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	// If stdin is a character device (terminal), we're interactive
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
