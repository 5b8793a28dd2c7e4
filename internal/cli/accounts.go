package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/adcondev/relay-daemon/internal/auth"
	"github.com/adcondev/relay-daemon/internal/dependencies/clock"
	"github.com/adcondev/relay-daemon/internal/factory"
)

func newAccountsCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage registered accounts",
	}

	cmd.AddCommand(newAccountsCountCmd(opts))
	cmd.AddCommand(newAccountsClearCmd(opts))

	return cmd
}

func newAccountsCountCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of registered accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := openAuth(opts)
			if err != nil {
				return err
			}
			defer closeStore()

			n, err := svc.Count(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func newAccountsClearCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every registered account",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := openAuth(opts)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := svc.Clear(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "credentials cleared")
			return nil
		},
	}
}

// openAuth opens the configured store without starting the server
func openAuth(opts *Options) (*auth.Service, func(), error) {
	env := opts.Environment()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	store, err := factory.NewStorage(env, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open credential store: %w", err)
	}

	svc := auth.New(store, clock.New(), factory.AuthConfig(env), logger)
	return svc, func() { _ = store.Close() }, nil
}
