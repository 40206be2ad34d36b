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

// Lactation reports pregnant lactating goats that should be dried off.
type Lactation struct {
	base
}

func NewLactation(client *api.Client, cfg config.AlertsConfig, logger *zap.SugaredLogger, opts ...Option) *Lactation {
	return &Lactation{base: newBase(client, cfg, logger, opts)}
}

func (l *Lactation) Key() string   { return "lactation" }
func (l *Lactation) Label() string { return "Secagem" }
func (l *Lactation) Priority() int { return 70 }

func (l *Lactation) Route(farmID string) string {
	return farmRoute(farmID, "lactations?tab=dry-off")
}

func (l *Lactation) Summary(ctx context.Context, farmID string) (alerts.Summary, error) {
	resp, err := l.client.DryOffAlerts(ctx, farmID, api.AlertQuery{
		ReferenceDate: l.todayString(),
		Size:          max(l.previewItems, 1),
	})
	if err != nil {
		l.logger.Warnw("dry-off alerts fetch failed", "farm", farmID, "error", err)
		return alerts.Summary{}, nil
	}

	count := max(resp.TotalPending, 0)
	summary := alerts.Summary{Count: count}
	if count > 0 {
		summary.Headline = fmt.Sprintf("%d cabra(s) com secagem pendente", count)
	}

	items := make([]alerts.Item, 0, len(resp.Alerts))
	for _, a := range resp.Alerts {
		summary.WorstOverdueDays = max(summary.WorstOverdueDays, a.DaysOverdue)
		items = append(items, l.item(farmID, a))
	}
	summary.PreviewItems = limitItems(items, l.previewItems)
	return summary, nil
}

func (l *Lactation) List(ctx context.Context, farmID string, params alerts.ListParams) ([]alerts.Item, error) {
	resp, err := l.client.DryOffAlerts(ctx, farmID, api.AlertQuery{
		ReferenceDate: l.todayString(),
		Page:          params.Page,
		Size:          l.listSize(params),
	})
	if err != nil {
		l.logger.Warnw("dry-off list fetch failed", "farm", farmID, "error", err)
		return []alerts.Item{}, nil
	}

	items := make([]alerts.Item, 0, len(resp.Alerts))
	for _, a := range resp.Alerts {
		items = append(items, l.item(farmID, a))
	}
	return items, nil
}

func (l *Lactation) item(farmID string, a api.DryOffAlert) alerts.Item {
	id := a.GoatID
	if a.LactationID != 0 {
		id = strconv.FormatInt(a.LactationID, 10)
	}
	desc := "Secagem pendente"
	if a.DryOffDate != "" {
		desc = fmt.Sprintf("Secagem prevista para %s", a.DryOffDate)
	}
	if a.GestationDays > 0 {
		desc += fmt.Sprintf(", %d dias de gestação", a.GestationDays)
	}
	return alerts.Item{
		ID:                 id,
		Title:              "Cabra " + a.GoatID,
		Description:        desc,
		Date:               a.DryOffDate,
		Severity:           alerts.SeverityForOverdue(a.DaysOverdue),
		Link:               l.Route(farmID),
		ActionLabel:        "Registrar secagem",
		GoatID:             a.GoatID,
		StartDatePregnancy: a.StartDatePregnancy,
		DryOffDate:         a.DryOffDate,
		GestationDays:      a.GestationDays,
		DaysOverdue:        a.DaysOverdue,
	}
}
