package cli

import (
	"fmt"
	"io"
	"time"

	"shopify-order-sync/internal/middleware"

	"github.com/spf13/cobra"
)

func newTokenCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the admin API",
		Long:  "Issue a bearer token for the admin API, signed with ADMIN_JWT_SECRET.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			token, err := middleware.IssueToken(o.cfg.Admin.JWTSecret, subject, ttl)
			if err != nil {
				return err
			}
			result := map[string]string{
				"token":      token,
				"expires_at": time.Now().Add(ttl).UTC().Format(time.RFC3339),
			}
			return o.render(cmd, result, func(w io.Writer) {
				fmt.Fprintln(w, token)
			})
		},
	}
	cmd.Flags().String("subject", "operator", "Token subject")
	cmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	return cmd
}
