package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nixlim/herd-top/internal/alerts"
	"github.com/nixlim/herd-top/internal/errors"
)

var alertsJSON bool

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Print the pending alerts of a farm",
	Long: `Fetch every alert source once for the selected farm and print the result.

A source that fails is reported as an error row; the others are still shown.

Examples:
  herd-top alerts --farm 12
  herd-top alerts --farm 12 --json | jq .total`,
	RunE: runAlerts,
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsJSON, "json", false, "Output JSON")
}

func runAlerts(cmd *cobra.Command, _ []string) error {
	a, err := newApp(flags)
	if err != nil {
		return err
	}
	defer a.Close()

	farmID, err := a.farmID()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agg := a.newAggregator(farmID)
	agg.Start(ctx)
	defer agg.Stop()

	snap := alerts.Snapshot{
		FarmID:    farmID,
		Total:     agg.TotalCount(),
		States:    agg.ProviderStates(),
		FetchedAt: time.Now().UTC(),
	}

	if alertsJSON {
		return writeJSON(cmd.OutOrStdout(), snap)
	}
	printAlerts(cmd.OutOrStdout(), snap, a.registry)
	return nil
}

func printAlerts(w io.Writer, snap alerts.Snapshot, reg *alerts.Registry) {
	fmt.Fprintf(w, "Fazenda %s: %d pendente(s)\n\n", snap.FarmID, snap.Total)
	for _, st := range snap.States {
		label := st.ProviderKey
		if p, ok := reg.Provider(st.ProviderKey); ok {
			label = p.Label()
		}
		switch {
		case st.Error:
			fmt.Fprintf(w, "  %-24s [erro]\n", label)
		default:
			fmt.Fprintf(w, "  %-24s %4d", label, st.Summary.Count)
			if st.Summary.Headline != "" {
				fmt.Fprintf(w, "  %s", st.Summary.Headline)
			}
			fmt.Fprintln(w)
		}
		for _, it := range st.Summary.PreviewItems {
			fmt.Fprintf(w, "      - %s [%s]\n", it.Title, alerts.FormatOverdue(it.DaysOverdue))
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "encoding output")
	}
	return nil
}

// contextOrBackground lets commands run under tests that never set one.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
