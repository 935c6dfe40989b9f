// Package cli is the ordersync operator command line. Every command opens
// the same database the HTTP service uses and calls the admin operations
// directly, without going through the admin API.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"shopify-order-sync/internal/app"
	"shopify-order-sync/internal/config"
	"shopify-order-sync/internal/logger"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	formatText = "text"
	formatJSON = "json"
)

type options struct {
	dbURL    string
	driver   string
	format   string
	logLevel string

	cfg *config.Config
	app *app.App
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *options) {
	o := &options{}

	root := &cobra.Command{
		Use:   "ordersync",
		Short: "Storefront order to accounting sync",
		Long: `ordersync turns storefront order webhooks into invoices, payments and
delivery notes. Run "ordersync serve" for the webhook service; the other
commands are operator tools against the same database.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: o.load,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.dbURL, "db", "", "Database URL (overrides DATABASE_URL)")
	flags.StringVar(&o.driver, "driver", "", "Database driver: sqlite, mysql (overrides DATABASE_DRIVER)")
	flags.StringVarP(&o.format, "format", "o", formatText, "Output format: text, json")
	flags.StringVar(&o.logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	root.AddCommand(
		newServeCmd(o),
		newReprocessCmd(o),
		newRecheckCmd(o),
		newResyncInvoiceCmd(o),
		newFixHollowCmd(o),
		newRepairInvoiceCmd(o),
		newBulkSubmitCmd(o),
		newSummaryCmd(o),
		newHealthCmd(o),
		newStoreCmd(o),
		newItemCmd(o),
		newRateLimitCmd(o),
		newTokenCmd(o),
	)
	return root, o
}

// Execute runs the root command
func Execute(version string) error {
	root, o := newRootCommand()
	root.Version = version
	err := root.Execute()
	if cerr := o.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func (o *options) load(cmd *cobra.Command, args []string) error {
	if o.format != formatText && o.format != formatJSON {
		return fmt.Errorf("unknown output format %q", o.format)
	}

	_ = godotenv.Load()

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if o.dbURL != "" {
		cfg.Database.URL = o.dbURL
	}
	if o.driver != "" {
		cfg.Database.Driver = o.driver
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	o.cfg = cfg

	logger.Init(cfg.Log.Level, "console")
	// stdout carries command output
	logger.Logger = logger.Logger.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true})
	return nil
}

// open lazily builds the app; commands that need no database never call it.
func (o *options) open() (*app.App, error) {
	if o.app != nil {
		return o.app, nil
	}
	a, err := app.New(o.cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	o.app = a
	return a, nil
}

func (o *options) close() error {
	if o.app == nil {
		return nil
	}
	err := o.app.Close()
	o.app = nil
	return err
}

// render writes v as JSON, or calls text for the human format.
func (o *options) render(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if o.format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func requireFlag(cmd *cobra.Command, name string) (string, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return "", fmt.Errorf("--%s is required", name)
	}
	return v, nil
}
