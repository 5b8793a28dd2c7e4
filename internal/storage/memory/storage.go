package memory

import (
	"context"
	"sync"

	"github.com/adcondev/relay-daemon/internal/model"
	"github.com/adcondev/relay-daemon/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu       sync.RWMutex
	accounts []*model.Account
	closed   bool
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{}
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
	s.accounts = append(s.accounts, &cp)
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
	s.accounts = nil
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

// Close marks the storage closed. Further calls fail with model.ErrStoreClosed.
func (s *Storage) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
