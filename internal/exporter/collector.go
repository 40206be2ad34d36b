// Package exporter publishes pending alert counts as Prometheus metrics.
package exporter

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nixlim/herd-top/internal/alerts"
)

// SnapshotSource is satisfied by *alerts.HeaderCache.
type SnapshotSource interface {
	Get(ctx context.Context, farmID string) alerts.Snapshot
}

var (
	pendingDesc = prometheus.NewDesc(
		"herdtop_pending_alerts",
		"Pending alerts per farm and alert source.",
		[]string{"farm", "provider"}, nil,
	)
	totalDesc = prometheus.NewDesc(
		"herdtop_pending_alerts_total",
		"Pending alerts per farm across all sources.",
		[]string{"farm"}, nil,
	)
	upDesc = prometheus.NewDesc(
		"herdtop_alert_source_up",
		"1 when the last fetch of the alert source succeeded.",
		[]string{"farm", "provider"}, nil,
	)
)

// Collector reads every scrape through a SnapshotSource, so the cache TTL
// bounds how often the farm API is hit.
type Collector struct {
	source  SnapshotSource
	farms   []string
	timeout time.Duration
}

func NewCollector(source SnapshotSource, farms []string, timeout time.Duration) *Collector {
	return &Collector{source: source, farms: append([]string(nil), farms...), timeout: timeout}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pendingDesc
	ch <- totalDesc
	ch <- upDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	for _, farm := range c.farms {
		snap := c.source.Get(ctx, farm)
		ch <- prometheus.MustNewConstMetric(totalDesc, prometheus.GaugeValue, float64(snap.Total), farm)
		for _, st := range snap.States {
			ch <- prometheus.MustNewConstMetric(pendingDesc, prometheus.GaugeValue,
				float64(st.Summary.Count), farm, st.ProviderKey)
			up := 1.0
			if st.Error {
				up = 0
			}
			ch <- prometheus.MustNewConstMetric(upDesc, prometheus.GaugeValue, up, farm, st.ProviderKey)
		}
	}
}
