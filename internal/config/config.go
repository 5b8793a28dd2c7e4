// Package config defines environment-specific settings for the relay service.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Build variables, injected at compile time
var (
	BuildEnvironment = "local"
	BuildDate        = "unknown"
	BuildTime        = "unknown"
	// ServiceName is used for logging and as part of the log file path.
	ServiceName = "RelayServicio"
	// AdminToken guards the /admin HTTP routes. If empty, the routes are not registered.
	AdminToken = ""
	// ServerPort is the default relay (TCP) port, can be overridden by environment config.
	ServerPort = "9090"
	// HTTPPort serves /health, /ws and the test client.
	HTTPPort = "8766"
	// AllowedOrigins is a comma-separated list of allowed WebSocket origins injected via ldflags.
	// Example: "chat.example.com,localhost:*"
	AllowedOrigins = ""
)

// Store backends
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Environment holds environment-specific settings
type Environment struct {
	// Identificación
	Name        string
	ServiceName string

	// Red
	ListenAddr   string
	HTTPAddr     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Sesiones
	RequestTimeout            time.Duration
	RelayWriteTimeout         time.Duration
	RelayIdleTimeout          time.Duration
	MaxFrameBytes             int
	Sentinel                  string
	TrustAuthenticatedAddress bool
	RegisterOnSameConnection  bool
	MaxMessagesPerMinute      int

	// Cola
	QueueCapacity int
	SendBuffer    int

	// Logging
	Verbose     bool
	LogFormat   string
	ConsoleLogs bool
	// LogFile overrides the path derived by LogPath
	LogFile string

	// Credenciales
	StoreBackend    string
	StorePath       string
	RedisURL        string
	WatchStore      bool
	BcryptCost      int
	MaxAuthFailures int
	LockoutDuration time.Duration

	// Security
	AllowedOrigins []string
	AdminToken     string
}

// LogPath returns the full log file path for this environment.
// Uses the convention: <programData>/<ServiceName>/<ServiceName>.log, or
// logs/<ServiceName>.log when programData is empty. LogFile wins when set.
func (e Environment) LogPath(programData string) string {
	if e.LogFile != "" {
		return e.LogFile
	}
	if programData == "" {
		return filepath.Join("logs", e.ServiceName+".log")
	}
	return filepath.Join(programData, e.ServiceName, e.ServiceName+".log")
}

// environments defines available deployment configurations
var environments = map[string]Environment{
	"remote": {
		Name:                 "REMOTO",
		ServiceName:          ServiceName,
		ListenAddr:           "0.0.0.0:" + ServerPort,
		HTTPAddr:             "0.0.0.0:" + HTTPPort,
		ReadTimeout:          15 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		RequestTimeout:       30 * time.Second,
		RelayWriteTimeout:    10 * time.Second,
		RelayIdleTimeout:     0,
		MaxFrameBytes:        64 * 1024,
		Sentinel:             "CRLF",
		MaxMessagesPerMinute: 120,
		QueueCapacity:        256,
		SendBuffer:           256,
		Verbose:              false,
		LogFormat:            "json",
		ConsoleLogs:          false,
		StoreBackend:         StoreFile,
		StorePath:            filepath.Join("data", "users.yml"),
		RedisURL:             "redis://localhost:6379/0",
		WatchStore:           true,
		BcryptCost:           12,
		MaxAuthFailures:      5,
		LockoutDuration:      5 * time.Minute,
		// By default, restrict the browser client to localhost
		AllowedOrigins: []string{"localhost:*", "127.0.0.1:*"},
	},
	"local": {
		Name:                 "LOCAL",
		ServiceName:          ServiceName,
		ListenAddr:           "localhost:" + ServerPort,
		HTTPAddr:             "localhost:" + HTTPPort,
		ReadTimeout:          30 * time.Second,
		WriteTimeout:         30 * time.Second,
		IdleTimeout:          120 * time.Second,
		RequestTimeout:       60 * time.Second,
		RelayWriteTimeout:    10 * time.Second,
		RelayIdleTimeout:     0,
		MaxFrameBytes:        64 * 1024,
		Sentinel:             "CRLF",
		MaxMessagesPerMinute: 0,
		QueueCapacity:        100,
		SendBuffer:           256,
		Verbose:              true,
		LogFormat:            "text",
		ConsoleLogs:          true,
		StoreBackend:         StoreFile,
		StorePath:            filepath.Join("data", "users.yml"),
		RedisURL:             "redis://localhost:6379/0",
		WatchStore:           false,
		BcryptCost:           10,
		MaxAuthFailures:      0,
		LockoutDuration:      time.Minute,
		// Allow all in local dev mode for convenience, but can be overridden
		AllowedOrigins: []string{"*"},
	},
}

// GetEnvironment returns config for the specified environment.
func GetEnvironment(env string) Environment {
	cfg, ok := environments[env]
	if !ok {
		slog.Warn("unknown environment, defaulting to 'local'", slog.String("env", env))
		cfg = environments["local"]
	}

	// Override allowed origins from ldflags if provided
	if AllowedOrigins != "" {
		cfg.AllowedOrigins = strings.Split(AllowedOrigins, ",")
	}
	cfg.AdminToken = AdminToken

	return ApplyEnv(cfg)
}

// ApplyEnv overrides cfg with RELAY_* environment variables. Values that do
// not parse keep the configured default.
func ApplyEnv(cfg Environment) Environment {
	cfg.ListenAddr = getEnvOrDefault("RELAY_LISTEN_ADDR", cfg.ListenAddr)
	cfg.HTTPAddr = getEnvOrDefault("RELAY_HTTP_ADDR", cfg.HTTPAddr)
	cfg.Sentinel = getEnvOrDefault("RELAY_SENTINEL", cfg.Sentinel)
	cfg.LogFormat = getEnvOrDefault("RELAY_LOG_FORMAT", cfg.LogFormat)
	cfg.LogFile = getEnvOrDefault("RELAY_LOG_FILE", cfg.LogFile)
	cfg.StoreBackend = getEnvOrDefault("RELAY_STORE_BACKEND", cfg.StoreBackend)
	cfg.StorePath = getEnvOrDefault("RELAY_STORE_PATH", cfg.StorePath)
	cfg.RedisURL = getEnvOrDefault("RELAY_REDIS_URL", cfg.RedisURL)
	cfg.AdminToken = getEnvOrDefault("RELAY_ADMIN_TOKEN", cfg.AdminToken)

	cfg.Verbose = getEnvBool("RELAY_VERBOSE", cfg.Verbose)
	cfg.ConsoleLogs = getEnvBool("RELAY_CONSOLE_LOGS", cfg.ConsoleLogs)
	cfg.WatchStore = getEnvBool("RELAY_WATCH_STORE", cfg.WatchStore)
	cfg.TrustAuthenticatedAddress = getEnvBool("RELAY_TRUST_ADDRESS", cfg.TrustAuthenticatedAddress)
	cfg.RegisterOnSameConnection = getEnvBool("RELAY_REGISTER_SAME_CONNECTION", cfg.RegisterOnSameConnection)

	cfg.QueueCapacity = getEnvInt("RELAY_QUEUE_CAPACITY", cfg.QueueCapacity)
	cfg.MaxFrameBytes = getEnvInt("RELAY_MAX_FRAME_BYTES", cfg.MaxFrameBytes)
	cfg.MaxMessagesPerMinute = getEnvInt("RELAY_MAX_MESSAGES_PER_MINUTE", cfg.MaxMessagesPerMinute)
	cfg.MaxAuthFailures = getEnvInt("RELAY_MAX_AUTH_FAILURES", cfg.MaxAuthFailures)
	cfg.BcryptCost = getEnvInt("RELAY_BCRYPT_COST", cfg.BcryptCost)

	cfg.RequestTimeout = getEnvDuration("RELAY_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.RelayIdleTimeout = getEnvDuration("RELAY_IDLE_TIMEOUT", cfg.RelayIdleTimeout)
	cfg.LockoutDuration = getEnvDuration("RELAY_LOCKOUT_DURATION", cfg.LockoutDuration)

	if origins := os.Getenv("RELAY_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}
	return cfg
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		slog.Warn("ignoring invalid boolean", slog.String("key", key), slog.String("value", val))
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("ignoring invalid integer", slog.String("key", key), slog.String("value", val))
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("ignoring invalid duration", slog.String("key", key), slog.String("value", val))
		return defaultVal
	}
	return d
}
