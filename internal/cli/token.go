package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/session"
)

// NewTokenCommand creates the token command.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		user, role, storeID, branchID string
		ttl                           time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a terminal token signed with jwt_secret",
		Long: `Sign an HS256 token for a terminal user. Flags default to the
configured user.

Example:
  possync token --user u-csh --role cashier --store store-1 --ttl 24h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cfg.JWTSecret == "" {
				return NewExitError(ExitCommandError, "jwt_secret is required")
			}
			c := session.Context{
				UserID:   firstNonEmpty(user, cfg.UserID),
				Role:     session.Role(firstNonEmpty(role, cfg.Role)),
				StoreID:  firstNonEmpty(storeID, cfg.StoreID),
				BranchID: firstNonEmpty(branchID, cfg.BranchID),
			}
			if ttl == 0 {
				ttl = cfg.TokenTTL
			}
			token, err := session.Sign(c, []byte(cfg.JWTSecret), ttl, time.Now())
			if err != nil {
				return WrapExitError(ExitCommandError, "sign token", err)
			}
			return opts.formatter(cmd).Emit(token+"\n", map[string]any{
				"token": token, "user_id": c.UserID, "role": c.Role, "expires_in": ttl.String(),
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().StringVar(&role, "role", "", "role (owner|manager|cashier)")
	cmd.Flags().StringVar(&storeID, "store", "", "store id")
	cmd.Flags().StringVar(&branchID, "branch", "", "branch id")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default token_ttl)")
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
