package cli

import (
	"os/signal"
	"syscall"

	"shopify-order-sync/internal/logger"

	"github.com/spf13/cobra"
)

func newServeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook service and background workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.cfg.Log.Dir != "" {
				if err := logger.AddFileLogger(o.cfg.Log.Dir); err != nil {
					return err
				}
			}

			a, err := o.open()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.Serve(ctx)
		},
	}
}
