package sources

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nixlim/herd-top/internal/alerts"
	"github.com/nixlim/herd-top/internal/api"
	"github.com/nixlim/herd-top/internal/config"
	"go.uber.org/zap"
)

const statusScheduled = "AGENDADO"

// Health reports overdue and due-today events of the health agenda.
type Health struct {
	base
	windowDays int
}

func NewHealth(client *api.Client, cfg config.AlertsConfig, logger *zap.SugaredLogger, opts ...Option) *Health {
	return &Health{
		base:       newBase(client, cfg, logger, opts),
		windowDays: cfg.HealthWindowDays,
	}
}

func (h *Health) Key() string   { return "health" }
func (h *Health) Label() string { return "Agenda sanitária" }
func (h *Health) Priority() int { return 100 }

func (h *Health) Route(farmID string) string {
	return farmRoute(farmID, "health-agenda")
}

func (h *Health) Summary(ctx context.Context, farmID string) (alerts.Summary, error) {
	resp, err := h.client.HealthAlerts(ctx, farmID, h.windowDays)
	if err != nil {
		h.logger.Warnw("health alerts fetch failed", "farm", farmID, "error", err)
		return alerts.Summary{}, nil
	}

	worst := 0
	items := make([]alerts.Item, 0, len(resp.OverdueTop)+len(resp.DueTodayTop))
	for _, ev := range resp.OverdueTop {
		item := h.item(farmID, ev)
		worst = max(worst, item.DaysOverdue)
		items = append(items, item)
	}
	for _, ev := range resp.DueTodayTop {
		items = append(items, h.item(farmID, ev))
	}

	return alerts.Summary{
		Count:            max(resp.OverdueCount+resp.DueTodayCount, 0),
		Headline:         healthHeadline(resp.OverdueCount, resp.DueTodayCount),
		WorstOverdueDays: worst,
		PreviewItems:     limitItems(items, h.previewItems),
	}, nil
}

func healthHeadline(overdue, dueToday int) string {
	switch {
	case overdue > 0 && dueToday > 0:
		return fmt.Sprintf("%d evento(s) atrasado(s), %d para hoje", overdue, dueToday)
	case overdue > 0:
		return fmt.Sprintf("%d evento(s) atrasado(s)", overdue)
	case dueToday > 0:
		return fmt.Sprintf("%d evento(s) para hoje", dueToday)
	default:
		return ""
	}
}

// List pages scheduled events up to the end of the alert window.
func (h *Health) List(ctx context.Context, farmID string, params alerts.ListParams) ([]alerts.Item, error) {
	page, err := h.client.HealthCalendar(ctx, farmID, api.CalendarQuery{
		To:     h.today().AddDate(0, 0, h.windowDays).Format(dateLayout),
		Status: statusScheduled,
		Page:   params.Page,
		Size:   h.listSize(params),
	})
	if err != nil {
		h.logger.Warnw("health calendar fetch failed", "farm", farmID, "error", err)
		return []alerts.Item{}, nil
	}

	items := make([]alerts.Item, 0, len(page.Content))
	for _, ev := range page.Content {
		items = append(items, h.item(farmID, ev))
	}
	return items, nil
}

// Resolve marks a health event as done.
func (h *Health) Resolve(ctx context.Context, farmID, itemID string) error {
	if err := h.client.MarkHealthEventDone(ctx, farmID, itemID); err != nil {
		return err
	}
	h.logger.Infow("health event resolved", "farm", farmID, "event", itemID)
	return nil
}

func (h *Health) item(farmID string, ev api.HealthEvent) alerts.Item {
	days := h.daysSince(ev.ScheduledDate)
	title := ev.Title
	if title == "" {
		title = ev.Type
	}
	return alerts.Item{
		ID:          strconv.FormatInt(ev.ID, 10),
		Title:       title,
		Description: ev.Description,
		Date:        ev.ScheduledDate,
		Severity:    alerts.SeverityForOverdue(days),
		Link:        h.Route(farmID),
		ActionLabel: "Marcar como realizado",
		GoatID:      ev.GoatID,
		DaysOverdue: days,
	}
}
