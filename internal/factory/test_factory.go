package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/adcondev/relay-daemon/internal/config"
	"github.com/adcondev/relay-daemon/internal/dependencies/mocks"
	"github.com/adcondev/relay-daemon/internal/storage/memory"
	"github.com/adcondev/relay-daemon/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
}

// NewTestApp creates an App on memory storage listening on a random
// loopback port, with cheap password hashing.
func NewTestApp(mutate func(*config.Environment)) *TestApp {
	env := config.GetEnvironment("local")
	env.ListenAddr = "127.0.0.1:0"
	env.StoreBackend = config.StoreMemory
	env.BcryptCost = bcrypt.MinCost
	env.RequestTimeout = 2 * time.Second
	env.AllowedOrigins = nil
	if mutate != nil {
		mutate(&env)
	}

	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	app := newWithDependencies(memory.New(), mockClock, env, testutil.NopLogger())

	return &TestApp{
		App:       app,
		MockClock: mockClock,
	}
}
