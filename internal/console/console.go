// Package console reads operator commands from a terminal and applies them
// to the running service.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Controller is the part of the service the operator can drive
type Controller interface {
	StartAccepting() error
	StopAccepting() error
	ClearCredentials(ctx context.Context) error
	SetConsoleLogs(on bool)
	SetVerbose(on bool)
	ClearLogs() error
	StatusSummary() string
}

const helpText = `commands:
  start       accept new connections
  stop        stop accepting new connections (live sessions continue)
  clear       delete every registered account
  logs on     show log records on the console
  logs off    hide log records from the console
  verbose on  log debug records
  verbose off log info records and above
  clear-logs  truncate the log file
  status      show service status
  help        show this help
  exit        shut the service down`

// Run reads commands from in until "exit", end of input or ctx is done.
// It returns nil on "exit" and io.EOF when the input ends.
func Run(ctx context.Context, in io.Reader, out io.Writer, ctrl Controller) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			readErr <- err
			return
		}
		readErr <- io.EOF
	}()

	prompt(out)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case line := <-lines:
			if exit := Execute(ctx, line, out, ctrl); exit {
				return nil
			}
			prompt(out)
		}
	}
}

// Execute applies one command line. It reports whether the operator asked
// to exit.
func Execute(ctx context.Context, line string, out io.Writer, ctrl Controller) bool {
	cmd := strings.Join(strings.Fields(strings.ToLower(line)), " ")

	switch cmd {
	case "":
	case "start":
		report(out, ctrl.StartAccepting(), "accepting connections")
	case "stop":
		report(out, ctrl.StopAccepting(), "stopped accepting connections")
	case "clear":
		report(out, ctrl.ClearCredentials(ctx), "credentials cleared")
	case "logs on":
		ctrl.SetConsoleLogs(true)
		_, _ = fmt.Fprintln(out, "console logs shown")
	case "logs off":
		ctrl.SetConsoleLogs(false)
		_, _ = fmt.Fprintln(out, "console logs hidden")
	case "verbose on":
		ctrl.SetVerbose(true)
		_, _ = fmt.Fprintln(out, "verbose logging on")
	case "verbose off":
		ctrl.SetVerbose(false)
		_, _ = fmt.Fprintln(out, "verbose logging off")
	case "clear-logs", "clear logs":
		report(out, ctrl.ClearLogs(), "log file cleared")
	case "status":
		_, _ = fmt.Fprintln(out, ctrl.StatusSummary())
	case "help", "?":
		_, _ = fmt.Fprintln(out, helpText)
	case "exit", "quit":
		_, _ = fmt.Fprintln(out, "exiting")
		return true
	default:
		_, _ = fmt.Fprintf(out, "unknown command %q (type help)\n", cmd)
	}
	return false
}

func report(out io.Writer, err error, ok string) {
	if err != nil {
		_, _ = fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	_, _ = fmt.Fprintln(out, ok)
}

func prompt(out io.Writer) {
	_, _ = fmt.Fprint(out, "> ")
}
