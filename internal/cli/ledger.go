package cli

import (
	"fmt"
	"io"

	"shopify-order-sync/internal/dto"
	"shopify-order-sync/internal/service"

	"github.com/spf13/cobra"
)

func newReprocessCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <ledger-entry-id>",
		Short: "Re-run a ledger entry with its stored payload",
		Long: `Re-run a ledger entry. Queued and incomplete entries are processed in
place; finished entries are copied into a new entry linked to the original.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}

			entry, outcome, err := a.Admin.Reprocess(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			resp := dto.ReprocessResponse{
				EntryID: entry.ID,
				RetryOf: entry.RetryOf,
				Status:  string(entry.Status),
				Message: entry.Message,
				Invoice: outcome.Invoice,
			}
			return o.render(cmd, resp, func(w io.Writer) {
				fmt.Fprintf(w, "entry:   %s\n", resp.EntryID)
				if resp.RetryOf != nil {
					fmt.Fprintf(w, "retry of: %s\n", *resp.RetryOf)
				}
				fmt.Fprintf(w, "status:  %s\n", resp.Status)
				fmt.Fprintf(w, "message: %s\n", resp.Message)
				if resp.Invoice != "" {
					fmt.Fprintf(w, "invoice: %s\n", resp.Invoice)
				}
			})
		},
	}
}

func newRecheckCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recheck-incomplete",
		Short: "Re-run incomplete orders for a store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := requireFlag(cmd, "store")
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := o.open()
			if err != nil {
				return err
			}

			result, err := a.Admin.RecheckIncomplete(cmd.Context(), store, limit)
			if err != nil {
				return err
			}
			return o.render(cmd, result, func(w io.Writer) {
				fmt.Fprintf(w, "checked %d, resolved %d, still incomplete %d, failed %d\n",
					result.Checked, result.Resolved, result.StillIncomplete, result.Failed)
			})
		},
	}
	cmd.Flags().String("store", "", "Store id (required)")
	cmd.Flags().Int("limit", service.DefaultRecheckLimit, "Max entries to recheck")
	return cmd
}
