package factory

import (
	"errors"
	"io"
	"log/slog"

	"github.com/adcondev/relay-daemon/internal/auth"
	"github.com/adcondev/relay-daemon/internal/config"
	"github.com/adcondev/relay-daemon/internal/dependencies/clock"
	"github.com/adcondev/relay-daemon/internal/server"
	"github.com/adcondev/relay-daemon/internal/storage"
	filestorage "github.com/adcondev/relay-daemon/internal/storage/file"
	"github.com/adcondev/relay-daemon/internal/storage/memory"
	redisstorage "github.com/adcondev/relay-daemon/internal/storage/redis"
	"github.com/adcondev/relay-daemon/internal/worker"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock clock.Clock

	// Services
	AuthService *auth.Service
	Server      *server.Server
	Worker      *worker.Worker
}

// Config holds configuration for the application factory
type Config struct {
	// Env is the resolved environment
	Env config.Environment
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := NewStorage(cfg.Env, logger)
	if err != nil {
		return nil, err
	}

	return newWithDependencies(store, clock.New(), cfg.Env, logger), nil
}

// NewStorage opens the credential store selected by env.StoreBackend
func NewStorage(env config.Environment, logger *slog.Logger) (storage.Storage, error) {
	backend := env.StoreBackend
	if backend == "" {
		backend = config.StoreFile
	}

	switch backend {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreFile:
		return filestorage.New(filestorage.Config{
			Path:   env.StorePath,
			Watch:  env.WatchStore,
			Logger: logger,
		})
	case config.StoreRedis:
		redisCfg := redisstorage.DefaultConfig()
		if env.RedisURL != "" {
			redisCfg.URL = env.RedisURL
		}
		return redisstorage.New(redisCfg)
	default:
		return nil, errors.New("invalid StoreBackend: must be 'file', 'memory' or 'redis'")
	}
}

// AuthConfig maps the environment onto auth settings
func AuthConfig(env config.Environment) auth.Config {
	cfg := auth.DefaultConfig()
	if env.BcryptCost > 0 {
		cfg.BcryptCost = env.BcryptCost
	}
	cfg.MaxAuthFailures = env.MaxAuthFailures
	if env.LockoutDuration > 0 {
		cfg.LockoutDuration = env.LockoutDuration
	}
	return cfg
}

// ServerConfig maps the environment onto server settings
func ServerConfig(env config.Environment) server.Config {
	return server.Config{
		ListenAddr:                env.ListenAddr,
		QueueSize:                 env.QueueCapacity,
		SendBuffer:                env.SendBuffer,
		MaxFrameBytes:             env.MaxFrameBytes,
		Sentinel:                  env.Sentinel,
		RequestTimeout:            env.RequestTimeout,
		WriteTimeout:              env.RelayWriteTimeout,
		IdleTimeout:               env.RelayIdleTimeout,
		MaxMessagesPerMinute:      env.MaxMessagesPerMinute,
		RegisterOnSameConnection:  env.RegisterOnSameConnection,
		TrustAuthenticatedAddress: env.TrustAuthenticatedAddress,
		AllowedOrigins:            env.AllowedOrigins,
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, env config.Environment, logger *slog.Logger) *App {
	authService := auth.New(store, clk, AuthConfig(env), logger)
	srv := server.NewServer(ServerConfig(env), authService, clk, logger)
	relayWorker := worker.NewWorker(srv.RelayQueue(), srv.Registry(), logger)

	return &App{
		Storage:     store,
		Clock:       clk,
		AuthService: authService,
		Server:      srv,
		Worker:      relayWorker,
	}
}

// Close releases the credential store
func (a *App) Close() error {
	return a.Storage.Close()
}
