package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func newSummaryCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show order and invoice counts for a store",
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

			s, err := a.Admin.OrderSummary(cmd.Context(), store)
			if err != nil {
				return err
			}
			return o.render(cmd, s, func(w io.Writer) {
				fmt.Fprintf(w, "store:             %s\n", s.StoreID)
				fmt.Fprintf(w, "incomplete orders: %d\n", s.IncompleteOrders)
				fmt.Fprintf(w, "draft invoices:    %d\n", s.DraftInvoices)
				fmt.Fprintf(w, "submitted today:   %d\n", s.SubmittedToday)
				fmt.Fprintf(w, "pending delivery:  %d\n", s.PendingDelivery)
			})
		},
	}
	cmd.Flags().String("store", "", "Store id (required)")
	return cmd
}

func newHealthCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show integration health for a store over the last 24 hours",
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

			h, err := a.Admin.IntegrationHealth(cmd.Context(), store)
			if err != nil {
				return err
			}
			return o.render(cmd, h, func(w io.Writer) {
				last := "never"
				if h.LastSuccess != nil {
					last = h.LastSuccess.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "store:        %s\n", h.StoreID)
				fmt.Fprintf(w, "status:       %s\n", h.Status)
				fmt.Fprintf(w, "queued 24h:   %d\n", h.Queued24h)
				fmt.Fprintf(w, "errors 24h:   %d\n", h.Errors24h)
				fmt.Fprintf(w, "last success: %s\n", last)
			})
		},
	}
	cmd.Flags().String("store", "", "Store id (required)")
	return cmd
}
