package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nixlim/herd-top/internal/errors"
)

type globalFlags struct {
	configPath string
	farm       string
	scope      string
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "herd-top",
	Short: "Terminal alert center for goat farms",
	Long: `herd-top - pending tasks of your farms in one terminal dashboard.

Alerts from the sanitary agenda, pregnancy diagnosis and dry-off sources are
merged per farm. Inventory movements are submitted with idempotency keys so
a submission that got no answer can be retried safely.

Examples:
  herd-top                          # Open the dashboard
  herd-top --farm 12 alerts --json  # Print farm 12 alerts as JSON
  herd-top inventory pending        # List submissions waiting for retry
  herd-top exporter --farm 12       # Serve Prometheus metrics`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDashboard,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Config file (default ~/.config/herd-top/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flags.farm, "farm", "", "Farm ID (default [farm] default_id)")
	rootCmd.PersistentFlags().StringVar(&flags.scope, "scope", "", "Storage scope for persisted state (default [storage] scope)")

	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(inventoryCmd)
	rootCmd.AddCommand(exporterCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "herd-top: %v\n", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
