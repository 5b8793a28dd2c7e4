// Package file persists credentials as a YAML list of accounts.
package file

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/adcondev/relay-daemon/internal/model"
	"github.com/adcondev/relay-daemon/internal/storage"
)

// Config holds file storage settings
type Config struct {
	// Path to the YAML document, e.g. data/users.yml
	Path string
	// Watch reloads the cache when the file is replaced by another process
	Watch bool
	// Logger is optional; nil discards output
	Logger *slog.Logger
}

// Storage keeps an in-memory copy of the YAML document. Every write builds the
// complete new document, replaces the file atomically and only then swaps the
// cached copy.
type Storage struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	accounts []*model.Account
	closed   bool
	// lastSum is the digest of the document as last written or loaded
	lastSum [sha256.Size]byte

	watcher   *fsnotify.Watcher
	stopWatch chan struct{}
	watchDone chan struct{}
}

// New loads the document at cfg.Path. A missing or empty file is an empty
// store; the parent directory is created if needed.
func New(cfg Config) (*Storage, error) {
	if cfg.Path == "" {
		return nil, errors.New("file storage: empty path")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	data, err := readFile(cfg.Path)
	if err != nil {
		return nil, err
	}
	accounts, err := decodeDocument(cfg.Path, data)
	if err != nil {
		return nil, err
	}

	s := &Storage{
		path:     cfg.Path,
		logger:   logger.With(slog.String("component", "file_store")),
		accounts: accounts,
		lastSum:  sha256.Sum256(data),
	}

	if cfg.Watch {
		if err := s.startWatch(); err != nil {
			s.logger.Warn("file watcher unavailable", slog.String("error", err.Error()))
		}
	}
	return s, nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) Append(ctx context.Context, account *model.Account) error {
	if account.Address == "" {
		return model.ErrEmptyAddress
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.ErrStoreClosed
	}

	cp := *account
	next := make([]*model.Account, len(s.accounts), len(s.accounts)+1)
	copy(next, s.accounts)
	next = append(next, &cp)

	sum, err := writeDocument(s.path, next)
	if err != nil {
		return err
	}
	s.accounts = next
	s.lastSum = sum
	return nil
}

func (s *Storage) AccountsByAddress(ctx context.Context, address string) ([]*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, model.ErrStoreClosed
	}
	var result []*model.Account
	for _, a := range s.accounts {
		if a.Address == address {
			cp := *a
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (s *Storage) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.ErrStoreClosed
	}
	sum, err := writeDocument(s.path, nil)
	if err != nil {
		return err
	}
	s.accounts = nil
	s.lastSum = sum
	return nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, model.ErrStoreClosed
	}
	return len(s.accounts), nil
}

// Close stops the watcher. The file itself is always up to date.
func (s *Storage) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.watcher != nil {
		close(s.stopWatch)
		err := s.watcher.Close()
		<-s.watchDone
		return err
	}
	return nil
}

// Reload replaces the cached copy with the file's current content. It holds
// the write lock while reading, so it never observes the file between a
// writer's rename and its cache swap. Content equal to the last document
// this store wrote is skipped.
func (s *Storage) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.ErrStoreClosed
	}

	data, err := readFile(s.path)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(data)
	if sum == s.lastSum {
		return nil
	}
	accounts, err := decodeDocument(s.path, data)
	if err != nil {
		return err
	}
	s.accounts = accounts
	s.lastSum = sum
	return nil
}

func (s *Storage) startWatch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// The file is replaced by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return err
	}
	s.watcher = watcher
	s.stopWatch = make(chan struct{})
	s.watchDone = make(chan struct{})
	go s.watchFile()
	return nil
}

// watchFile reloads the cache on changes to the document
func (s *Storage) watchFile() {
	defer close(s.watchDone)
	target := filepath.Clean(s.path)
	for {
		select {
		case <-s.stopWatch:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				if errors.Is(err, model.ErrStoreClosed) {
					return
				}
				s.logger.Warn("reload failed, keeping cached accounts", slog.String("error", err.Error()))
				continue
			}
			s.logger.Debug("credential file reloaded")
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("file watcher error", slog.String("error", err.Error()))
		}
	}
}

func readDocument(path string) ([]*model.Account, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return decodeDocument(path, data)
}

// readFile returns the raw document; a missing file reads as empty.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func decodeDocument(path string, data []byte) ([]*model.Account, error) {
	var accounts []*model.Account
	if err := yaml.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return accounts, nil
}

// writeDocument writes <path>.tmp, syncs it and renames it over path. It
// returns the digest of the written document.
func writeDocument(path string, accounts []*model.Account) ([sha256.Size]byte, error) {
	var sum [sha256.Size]byte
	if accounts == nil {
		accounts = []*model.Account{}
	}
	data, err := yaml.Marshal(accounts)
	if err != nil {
		return sum, fmt.Errorf("encode accounts: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return sum, fmt.Errorf("open %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return sum, fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return sum, fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return sum, fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return sum, fmt.Errorf("replace %s: %w", path, err)
	}
	return sha256.Sum256(data), nil
}
