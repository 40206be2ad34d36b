// Package sources holds the alert providers backed by the farm REST API.
//
// Every provider swallows its own fetch errors: a failed summary reports
// Count 0 and a failed list is empty. Only Resolve surfaces errors, because
// it changes state on the backend.
package sources

import (
	"fmt"
	"net/url"
	"time"

	"github.com/nixlim/herd-top/internal/alerts"
	"github.com/nixlim/herd-top/internal/api"
	"github.com/nixlim/herd-top/internal/config"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type Option func(*base)

// WithClock fixes "today" for reference dates and overdue calculations.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

type base struct {
	client       *api.Client
	logger       *zap.SugaredLogger
	now          func() time.Time
	previewItems int
	pageSize     int
}

func newBase(client *api.Client, cfg config.AlertsConfig, logger *zap.SugaredLogger, opts []Option) base {
	b := base{
		client:       client,
		logger:       logger,
		now:          time.Now,
		previewItems: cfg.PreviewItems,
		pageSize:     cfg.ListPageSize,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b base) today() time.Time {
	y, m, d := b.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (b base) todayString() string {
	return b.today().Format(dateLayout)
}

func (b base) listSize(params alerts.ListParams) int {
	if params.Size > 0 {
		return params.Size
	}
	return b.pageSize
}

// daysSince returns how many whole days date lies before today. Unparseable
// dates count as not overdue.
func (b base) daysSince(date string) int {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return 0
	}
	days := int(b.today().Sub(t).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func farmRoute(farmID, suffix string) string {
	return fmt.Sprintf("/app/goatfarms/%s/%s", url.PathEscape(farmID), suffix)
}

func limitItems(items []alerts.Item, n int) []alerts.Item {
	if n <= 0 {
		return nil
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}

// RegisterDefaults registers the health, reproduction and lactation
// providers.
func RegisterDefaults(reg *alerts.Registry, client *api.Client, cfg config.AlertsConfig, logger *zap.SugaredLogger, opts ...Option) {
	reg.Register(NewHealth(client, cfg, logger, opts...))
	reg.Register(NewReproduction(client, cfg, logger, opts...))
	reg.Register(NewLactation(client, cfg, logger, opts...))
}
