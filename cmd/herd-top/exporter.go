package main

import (
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nixlim/herd-top/internal/errors"
	"github.com/nixlim/herd-top/internal/exporter"
)

var (
	exporterListen string
	exporterFarms  []string
)

var exporterCmd = &cobra.Command{
	Use:   "exporter",
	Short: "Serve pending alert counts as Prometheus metrics",
	Long: `Serve /metrics and /healthz for the configured farms.

Each scrape reads the per-farm totals through a short-lived cache, so
frequent scrapes do not multiply backend calls.

Examples:
  herd-top exporter --farms 12 --farms 40
  herd-top exporter --listen 127.0.0.1:9464`,
	RunE: runExporter,
}

func init() {
	exporterCmd.Flags().StringVar(&exporterListen, "listen", "", "Listen address (default [exporter] listen)")
	exporterCmd.Flags().StringSliceVar(&exporterFarms, "farms", nil, "Farms to export, repeatable (default [exporter] farms)")
}

func runExporter(cmd *cobra.Command, _ []string) error {
	a, err := newApp(flags)
	if err != nil {
		return err
	}
	defer a.Close()

	listen := exporterListen
	if listen == "" {
		listen = a.cfg.Exporter.Listen
	}
	farms := exportedFarms(exporterFarms, a.cfg.Exporter.Farms, a.cfg.Farm.DefaultID)
	if len(farms) == 0 {
		return errors.WithHint(errors.New("no farms to export"),
			"pass --farms or set [exporter] farms in the config file")
	}

	timeout := time.Duration(a.cfg.API.TimeoutSeconds) * time.Second
	collector := exporter.NewCollector(a.newHeaderCache(), farms, timeout)
	srv, err := exporter.NewServer(listen, collector, a.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Infow("exporter listening", "listen", listen, "farms", farms)
	return srv.Run(ctx)
}

// exportedFarms picks the first non-empty source and drops duplicates.
func exportedFarms(fromFlags, fromConfig []string, defaultID string) []string {
	src := fromFlags
	if len(src) == 0 {
		src = fromConfig
	}
	if len(src) == 0 && defaultID != "" {
		src = []string{defaultID}
	}
	var out []string
	for _, f := range src {
		if f != "" && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}
