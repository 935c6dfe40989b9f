package cli

import (
	"fmt"
	"io"

	"shopify-order-sync/internal/model"

	"github.com/spf13/cobra"
)

func newRateLimitCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate-limit",
		Short: "Manage outbound rate limit buckets",
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop a store's bucket so the next call starts with a full one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := requireFlag(cmd, "store")
			if err != nil {
				return err
			}
			api, _ := cmd.Flags().GetString("api")

			a, err := o.open()
			if err != nil {
				return err
			}

			if err := a.Admin.ResetRateLimit(cmd.Context(), store, model.APIType(api)); err != nil {
				return err
			}
			result := map[string]string{"store": store, "api": api, "status": "reset"}
			return o.render(cmd, result, func(w io.Writer) {
				fmt.Fprintf(w, "reset %s bucket of store %s\n", api, store)
			})
		},
	}
	resetCmd.Flags().String("store", "", "Store id (required)")
	resetCmd.Flags().String("api", string(model.APIRest), "API type: rest, graphql")

	cmd.AddCommand(resetCmd)
	return cmd
}
