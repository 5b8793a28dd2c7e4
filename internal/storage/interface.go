package storage

import (
	"context"

	"github.com/adcondev/relay-daemon/internal/model"
)

// Storage defines the interface for credential persistence.
// Accounts are append-only; the only removal is Clear.
type Storage interface {
	// Append adds an account to the end of the list. Duplicates are allowed.
	Append(ctx context.Context, account *model.Account) error

	// AccountsByAddress returns every account registered from address, in
	// the order they were appended.
	AccountsByAddress(ctx context.Context, address string) ([]*model.Account, error)

	// Clear removes every account.
	Clear(ctx context.Context) error

	// Count returns the total number of accounts.
	Count(ctx context.Context) (int, error)

	Close() error
}
