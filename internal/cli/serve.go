package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/backoffice"
	"github.com/roach88/possync/internal/store"
)

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the back-office HTTP service",
		Long: `Serve the back-office API that terminals replicate to.

Operations are applied at most once per operation id. Terminals
authenticate with HS256 tokens signed with jwt_secret.

Example:
  POSSYNC_JWT_SECRET=s3cret possync serve --db ./backoffice.db --listen :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if listen != "" {
				cfg.Listen = listen
			}
			if cfg.JWTSecret == "" {
				return WrapExitError(ExitCommandError, "serve", errors.New("jwt_secret is required"))
			}

			st, err := store.Open(cfg.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer st.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			fmt.Fprintf(cmd.OutOrStdout(), "Back-office listening on %s\n", cfg.Listen)
			if err := backoffice.New(st, []byte(cfg.JWTSecret)).ListenAndServe(ctx, cfg.Listen); err != nil {
				return WrapExitError(ExitFailure, "serve", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}
