package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adcondev/relay-daemon/internal/model"
	filestorage "github.com/adcondev/relay-daemon/internal/storage/file"
)

func seedFileStore(t *testing.T, accounts ...*model.Account) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.yml")

	store, err := filestorage.New(filestorage.Config{Path: path})
	require.NoError(t, err)
	for _, acc := range accounts {
		require.NoError(t, store.Append(context.Background(), acc))
	}
	require.NoError(t, store.Close())
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAccountsCountAndClear(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	path := seedFileStore(t,
		&model.Account{Address: "10.0.0.1", PasswordHash: "x", Username: "alice", CreatedAt: now},
		&model.Account{Address: "10.0.0.2", PasswordHash: "y", Username: "bob", CreatedAt: now},
	)
	flags := []string{"--env", "local", "--store", "file", "--store-path", path}

	out, err := run(t, append([]string{"accounts", "count"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "2", strings.TrimSpace(out))

	out, err = run(t, append([]string{"accounts", "clear"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "credentials cleared")

	out, err = run(t, append([]string{"accounts", "count"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, "0", strings.TrimSpace(out))
}

func TestAccountsUnknownStore(t *testing.T) {
	_, err := run(t, "accounts", "count", "--store", "sqlite")
	assert.Error(t, err)
}

func TestServeConsoleExit(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader("status\nexit\n"))
	cmd.SetArgs([]string{
		"serve", "--console",
		"--env", "local",
		"--store", "memory",
		"--listen", "127.0.0.1:0",
		"--http", "127.0.0.1:0",
	})
	t.Setenv("RELAY_LOG_FILE", filepath.Join(t.TempDir(), "relay.log"))
	t.Setenv("RELAY_CONSOLE_LOGS", "false")

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "accepting=true")
	assert.Contains(t, out.String(), "exiting")
}

func TestOptionsEnvironmentOverrides(t *testing.T) {
	opts := &Options{
		Env:        "remote",
		Store:      "redis",
		RedisURL:   "redis://cache:6379/1",
		ListenAddr: "127.0.0.1:7000",
	}
	env := opts.Environment()

	assert.Equal(t, "REMOTO", env.Name)
	assert.Equal(t, "redis", env.StoreBackend)
	assert.Equal(t, "redis://cache:6379/1", env.RedisURL)
	assert.Equal(t, "127.0.0.1:7000", env.ListenAddr)
}
