package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adcondev/relay-daemon/internal/model"
	"github.com/adcondev/relay-daemon/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
// Each address owns a LIST of JSON accounts; a SET indexes the addresses.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) Append(ctx context.Context, account *model.Account) error {
	if account.Address == "" {
		return model.ErrEmptyAddress
	}
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}

	// MULTI/EXEC so the list, the index and the counter move together
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, accountsKey(account.Address), data)
		pipe.SAdd(ctx, addressIndexKey(), account.Address)
		pipe.Incr(ctx, countKey())
		return nil
	})
	return s.mapErr(err)
}

func (s *Storage) AccountsByAddress(ctx context.Context, address string) ([]*model.Account, error) {
	items, err := s.client.LRange(ctx, accountsKey(address), 0, -1).Result()
	if err != nil {
		return nil, s.mapErr(err)
	}

	accounts := make([]*model.Account, 0, len(items))
	for _, item := range items {
		var acc model.Account
		if err := json.Unmarshal([]byte(item), &acc); err != nil {
			return nil, err
		}
		accounts = append(accounts, &acc)
	}
	return accounts, nil
}

// maxClearRetries bounds the optimistic retries of Clear
const maxClearRetries = 10

// Clear deletes every account. The address index and counter are WATCHed, so
// an Append landing between reading the index and deleting the keys aborts
// the transaction and the clear is retried.
func (s *Storage) Clear(ctx context.Context) error {
	txf := func(tx *redis.Tx) error {
		addresses, err := tx.SMembers(ctx, addressIndexKey()).Result()
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(addresses)+2)
		for _, addr := range addresses {
			keys = append(keys, accountsKey(addr))
		}
		keys = append(keys, addressIndexKey(), countKey())

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, keys...)
			return nil
		})
		return err
	}

	for i := 0; i < maxClearRetries; i++ {
		err := s.client.Watch(ctx, txf, addressIndexKey(), countKey())
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return s.mapErr(err)
	}
	return fmt.Errorf("clear: %w after %d attempts", redis.TxFailedErr, maxClearRetries)
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	n, err := s.client.Get(ctx, countKey()).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, s.mapErr(err)
	}
	return n, nil
}

func (s *Storage) mapErr(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return model.ErrStoreClosed
	}
	return err
}
