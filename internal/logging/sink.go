// Package logging provides the process log sink: a file with size-based
// rotation plus a console mirror that can be switched on and off at runtime.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log configuration
const (
	DefaultMaxSize = 5 * 1024 * 1024 // 5MB
	keepOnRotate   = 1000
)

// Formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds sink settings
type Config struct {
	// Path of the log file; empty logs to the console only
	Path string
	// MaxSize triggers rotation at Open; 0 uses DefaultMaxSize
	MaxSize int64
	Verbose bool
	Format  string
	// Console mirrors every record to ConsoleWriter (os.Stderr when nil)
	Console       bool
	ConsoleWriter io.Writer
}

// Sink is an io.Writer behind the slog handler. Every component logs
// through the *slog.Logger it returns.
type Sink struct {
	path    string
	maxSize int64

	mu        sync.Mutex
	file      *os.File
	console   io.Writer
	consoleOn bool

	level  *slog.LevelVar
	logger *slog.Logger
}

// Open creates the sink, rotating the file first if it exceeds MaxSize.
func Open(cfg Config) (*Sink, error) {
	s := &Sink{
		path:      cfg.Path,
		maxSize:   cfg.MaxSize,
		console:   cfg.ConsoleWriter,
		consoleOn: cfg.Console,
		level:     new(slog.LevelVar),
	}
	if s.maxSize <= 0 {
		s.maxSize = DefaultMaxSize
	}
	if s.console == nil {
		s.console = os.Stderr
	}
	s.applyVerbose(cfg.Verbose)

	if s.path != "" {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		if err := rotateLogIfNeeded(s.path, s.maxSize); err != nil {
			_, _ = fmt.Fprintf(s.console, "[!] log rotation failed: %v\n", err)
		}
		f, err := openAppend(s.path)
		if err != nil {
			return nil, err
		}
		s.file = f
	}

	opts := &slog.HandlerOptions{Level: s.level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, FormatJSON) {
		handler = slog.NewJSONHandler(s, opts)
	} else {
		handler = slog.NewTextHandler(s, opts)
	}
	s.logger = slog.New(handler)
	return s, nil
}

// Logger returns the root logger
func (s *Sink) Logger() *slog.Logger {
	return s.logger
}

// Write sends p to the file and, when enabled, to the console.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.consoleOn {
		_, _ = s.console.Write(p)
	}
	if s.file == nil {
		return len(p), nil
	}
	return s.file.Write(p)
}

// SetConsole toggles the console mirror. File output is unaffected.
func (s *Sink) SetConsole(on bool) {
	s.mu.Lock()
	s.consoleOn = on
	s.mu.Unlock()
}

// ConsoleEnabled reports whether records are mirrored to the console
func (s *Sink) ConsoleEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consoleOn
}

// SetVerbose changes the verbosity level at runtime
func (s *Sink) SetVerbose(v bool) {
	s.applyVerbose(v)
	s.logger.Info("log verbosity changed", slog.Bool("verbose", v))
}

func (s *Sink) applyVerbose(v bool) {
	if v {
		s.level.Set(slog.LevelDebug)
	} else {
		s.level.Set(slog.LevelInfo)
	}
}

// Verbose returns current verbosity level
func (s *Sink) Verbose() bool {
	return s.level.Level() <= slog.LevelDebug
}

// Clear truncates the log file. Later records are appended to the empty file.
func (s *Sink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	if err := s.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate log: %w", err)
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind log: %w", err)
	}
	return nil
}

// Size returns current log file size
func (s *Sink) Size() int64 {
	if s.path == "" {
		return 0
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Path returns the log file path, empty when logging to the console only
func (s *Sink) Path() string {
	return s.path
}

// Close flushes and closes the file. Later records go to the console only.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600) //nolint:gosec
}

// rotateLogIfNeeded keeps the last lines of a file that exceeds maxSize
func rotateLogIfNeeded(path string, maxSize int64) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if info.Size() < maxSize {
		return nil
	}

	lines := readLastNLines(path, keepOnRotate)
	if len(lines) == 0 {
		return nil
	}

	content := strings.Join(lines, "\n") + "\n"
	return os.WriteFile(path, []byte(content), 0o600)
}

// readLastNLines reads last N lines from file
func readLastNLines(path string, n int) []string {
	file, err := os.Open(path) //nolint:gosec
	if err != nil {
		return []string{}
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return []string{}
	}

	size := stat.Size()
	if size == 0 {
		return []string{}
	}

	// Read last 64KB max
	bufSize := int64(64 * 1024)
	if size < bufSize {
		bufSize = size
	}

	buf := make([]byte, bufSize)
	if _, err := file.ReadAt(buf, size-bufSize); err != nil && err != io.EOF {
		return []string{}
	}

	allLines := strings.Split(string(buf), "\n")

	// Clean empty lines at end
	for len(allLines) > 0 && allLines[len(allLines)-1] == "" {
		allLines = allLines[:len(allLines)-1]
	}

	// If we started mid-line, discard first partial line
	if size > bufSize && len(allLines) > 0 {
		allLines = allLines[1:]
	}

	if len(allLines) <= n {
		return allLines
	}
	return allLines[len(allLines)-n:]
}
