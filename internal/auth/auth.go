// Package auth provides credential lookup, registration and brute-force protection.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/adcondev/relay-daemon/internal/dependencies/clock"
	"github.com/adcondev/relay-daemon/internal/model"
	"github.com/adcondev/relay-daemon/internal/relayerr"
	"github.com/adcondev/relay-daemon/internal/storage"
)

// Outcome is the result of an authentication lookup.
type Outcome int

const (
	// OutcomeUnknownAddress means no account was ever registered from the address.
	OutcomeUnknownAddress Outcome = iota
	// OutcomeWrongPassword means the address has accounts but none matched.
	OutcomeWrongPassword
	// OutcomeAuthenticated means an account matched; Username is set.
	OutcomeAuthenticated
	// OutcomeLockedOut means the address exceeded MaxAuthFailures and the
	// store was not consulted.
	OutcomeLockedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeWrongPassword:
		return "wrong_password"
	case OutcomeLockedOut:
		return "locked_out"
	default:
		return "unknown_address"
	}
}

// LookupResult is returned by Service.Lookup.
type LookupResult struct {
	Outcome  Outcome
	Username string
}

// Config holds configuration for the auth service
type Config struct {
	// BcryptCost for new hashes; 0 uses bcrypt.DefaultCost
	BcryptCost int
	// MaxAuthFailures consecutive wrong passwords lock an address; 0 disables lockout
	MaxAuthFailures int
	LockoutDuration time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		BcryptCost:      bcrypt.DefaultCost,
		MaxAuthFailures: 5,
		LockoutDuration: 5 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

type failInfo struct {
	count       int
	lockedUntil time.Time
}

// Service answers the credential questions a session asks.
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
	cfg     Config

	mu           sync.Mutex
	failedLogins map[string]failInfo
}

// New creates an auth service over storage. logger may be nil.
func New(storage storage.Storage, clock clock.Clock, cfg Config, logger *slog.Logger) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig().CleanupInterval
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		storage:      storage,
		clock:        clock,
		logger:       logger.With(slog.String("component", "auth")),
		cfg:          cfg,
		failedLogins: make(map[string]failInfo),
	}
}

// Lookup scans the accounts of address in registration order; the first
// account whose hash matches password wins.
func (s *Service) Lookup(ctx context.Context, address, password string) (LookupResult, error) {
	if s.IsLockedOut(address) {
		return LookupResult{Outcome: OutcomeLockedOut}, nil
	}

	accounts, err := s.storage.AccountsByAddress(ctx, address)
	if err != nil {
		return LookupResult{}, relayerr.StoreError("lookup", err)
	}
	if len(accounts) == 0 {
		return LookupResult{Outcome: OutcomeUnknownAddress}, nil
	}

	for _, acc := range accounts {
		if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) == nil {
			s.clearFailures(address)
			return LookupResult{Outcome: OutcomeAuthenticated, Username: acc.Username}, nil
		}
	}

	s.recordFailure(address)
	return LookupResult{Outcome: OutcomeWrongPassword}, nil
}

// Register hashes password and appends a new account. Duplicate addresses
// and usernames are accepted.
func (s *Service) Register(ctx context.Context, address, password, username string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return fmt.Errorf("%w: %v", relayerr.ErrMalformedRequest, err)
		}
		return fmt.Errorf("hash password: %w", err)
	}

	acc := &model.Account{
		Address:      address,
		PasswordHash: string(hash),
		Username:     username,
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := s.storage.Append(ctx, acc); err != nil {
		return relayerr.StoreError("register", err)
	}
	s.logger.Info("account registered", slog.String("address", address), slog.String("username", username))
	return nil
}

// Clear empties the credential store. Live sessions are not affected.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.storage.Clear(ctx); err != nil {
		return relayerr.StoreError("clear", err)
	}
	s.mu.Lock()
	s.failedLogins = make(map[string]failInfo)
	s.mu.Unlock()
	s.logger.Info("credential store cleared")
	return nil
}

// Count returns the number of stored accounts.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.storage.Count(ctx)
	if err != nil {
		return 0, relayerr.StoreError("count", err)
	}
	return n, nil
}

// IsLockedOut returns true if the address has exceeded MaxAuthFailures.
func (s *Service) IsLockedOut(address string) bool {
	if s.cfg.MaxAuthFailures <= 0 {
		return false
	}
	s.mu.Lock()
	info, exists := s.failedLogins[address]
	s.mu.Unlock()
	if !exists {
		return false
	}
	return info.count >= s.cfg.MaxAuthFailures && s.clock.Now().Before(info.lockedUntil)
}

// recordFailure increments the failure counter for an address.
func (s *Service) recordFailure(address string) {
	if s.cfg.MaxAuthFailures <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	info := s.failedLogins[address]
	if info.count >= s.cfg.MaxAuthFailures && now.After(info.lockedUntil) {
		info = failInfo{}
	}
	info.count++
	if info.count >= s.cfg.MaxAuthFailures {
		info.lockedUntil = now.Add(s.cfg.LockoutDuration)
		s.logger.Warn("address locked out",
			slog.String("address", address),
			slog.Duration("duration", s.cfg.LockoutDuration),
			slog.Int("failures", info.count))
	}
	s.failedLogins[address] = info
}

func (s *Service) clearFailures(address string) {
	s.mu.Lock()
	delete(s.failedLogins, address)
	s.mu.Unlock()
}

// StartCleanup prunes expired lockouts until ctx is done.
func (s *Service) StartCleanup(ctx context.Context) {
	go s.cleanupLoop(ctx)
}

func (s *Service) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("auth cleanup stopped")
			return
		case <-ticker.C:
			s.pruneExpired()
		}
	}
}

func (s *Service) pruneExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for k, v := range s.failedLogins {
		if v.count >= s.cfg.MaxAuthFailures && now.After(v.lockedUntil) {
			delete(s.failedLogins, k)
		}
	}
}
