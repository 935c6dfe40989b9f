package cli

import (
	"fmt"
	"io"

	"shopify-order-sync/internal/dto"

	"github.com/spf13/cobra"
)

func newResyncInvoiceCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resync-invoice <invoice>",
		Short: "Rebuild the lines of a hollow draft invoice from its order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}

			inv, err := a.Admin.ResyncInvoiceItems(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			resp := dto.InvoiceResponse{
				Name:       inv.Name,
				Status:     string(inv.Status),
				Items:      len(inv.Items),
				GrandTotal: inv.GrandTotal.StringFixed(2),
			}
			return o.render(cmd, resp, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s: %d items, grand total %s\n", resp.Name, resp.Status, resp.Items, resp.GrandTotal)
			})
		},
	}
}

func newFixHollowCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix-hollow",
		Short: "Resync every draft invoice of a store that has no lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := requireFlag(cmd, "store")
			if err != nil {
				return err
			}

			a, err := o.open()
			if err != nil {
				return err
			}

			result, err := a.Admin.FixHollowInvoices(cmd.Context(), store)
			if err != nil {
				return err
			}
			return o.render(cmd, result, func(w io.Writer) {
				fmt.Fprintf(w, "fixed %d, still hollow %d, errors %d\n", result.Fixed, result.StillHollow, result.Errors)
				for _, d := range result.Details {
					fmt.Fprintf(w, "  %s\n", d)
				}
			})
		},
	}
	cmd.Flags().String("store", "", "Store id (required)")
	return cmd
}

func newRepairInvoiceCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "repair-invoice <invoice>",
		Short: "Create the missing payment and delivery note of a submitted invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}

			result, err := a.Admin.CreateMissingDocuments(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return o.render(cmd, result, func(w io.Writer) {
				fmt.Fprintf(w, "%s: payment created %t, delivery note created %t\n",
					result.Invoice, result.PaymentCreated, result.DeliveryNoteCreated)
			})
		},
	}
}

func newBulkSubmitCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "bulk-submit <invoice>...",
		Short: "Submit draft invoices and create their documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}

			results := a.Admin.BulkSubmitInvoices(cmd.Context(), args)

			failed := 0
			for _, r := range results {
				if !r.Submitted {
					failed++
				}
			}
			if err := o.render(cmd, results, func(w io.Writer) {
				for _, r := range results {
					if r.Submitted {
						fmt.Fprintf(w, "%s: submitted\n", r.Invoice)
					} else {
						fmt.Fprintf(w, "%s: %s\n", r.Invoice, r.Error)
					}
				}
			}); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d invoices not submitted", failed, len(results))
			}
			return nil
		},
	}
}
