// Package cli defines the RelayServicio command line.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/adcondev/relay-daemon/internal/config"
)

// Options holds flags shared by every command
type Options struct {
	Env        string
	Store      string
	StorePath  string
	RedisURL   string
	ListenAddr string
	HTTPAddr   string
}

// DefaultOptions returns options with the build environment selected
func DefaultOptions() *Options {
	return &Options{Env: config.BuildEnvironment}
}

// Environment resolves the selected environment and applies flag overrides
func (o *Options) Environment() config.Environment {
	env := config.GetEnvironment(o.Env)
	if o.Store != "" {
		env.StoreBackend = o.Store
	}
	if o.StorePath != "" {
		env.StorePath = o.StorePath
	}
	if o.RedisURL != "" {
		env.RedisURL = o.RedisURL
	}
	if o.ListenAddr != "" {
		env.ListenAddr = o.ListenAddr
	}
	if o.HTTPAddr != "" {
		env.HTTPAddr = o.HTTPAddr
	}
	return env
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := DefaultOptions()

	rootCmd := &cobra.Command{
		Use:   config.ServiceName,
		Short: "Multi-client text relay server",
		Long: `RelayServicio accepts chat clients over TCP and WebSocket, authenticates
them against a credential store and relays every message to all
authenticated clients.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.Env, "env", opts.Env, "Environment: local, remote")
	rootCmd.PersistentFlags().StringVar(&opts.Store, "store", "", "Credential store: file, memory, redis (env: RELAY_STORE_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&opts.StorePath, "store-path", "", "Credential file path (env: RELAY_STORE_PATH)")
	rootCmd.PersistentFlags().StringVar(&opts.RedisURL, "redis-url", "", "Redis URL (env: RELAY_REDIS_URL)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newAccountsCmd(opts))

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
