package sources

import (
	"context"
	"fmt"

	"github.com/nixlim/herd-top/internal/alerts"
	"github.com/nixlim/herd-top/internal/api"
	"github.com/nixlim/herd-top/internal/config"
	"go.uber.org/zap"
)

// Reproduction reports goats eligible for a pregnancy diagnosis.
type Reproduction struct {
	base
}

func NewReproduction(client *api.Client, cfg config.AlertsConfig, logger *zap.SugaredLogger, opts ...Option) *Reproduction {
	return &Reproduction{base: newBase(client, cfg, logger, opts)}
}

func (r *Reproduction) Key() string   { return "reproduction" }
func (r *Reproduction) Label() string { return "Diagnóstico de prenhez" }
func (r *Reproduction) Priority() int { return 80 }

func (r *Reproduction) Route(farmID string) string {
	return farmRoute(farmID, "reproduction?tab=alerts")
}

func (r *Reproduction) Summary(ctx context.Context, farmID string) (alerts.Summary, error) {
	resp, err := r.client.PregnancyDiagnosisAlerts(ctx, farmID, api.AlertQuery{
		ReferenceDate: r.todayString(),
		Size:          max(r.previewItems, 1),
	})
	if err != nil {
		r.logger.Warnw("pregnancy diagnosis alerts fetch failed", "farm", farmID, "error", err)
		return alerts.Summary{}, nil
	}

	count := max(resp.TotalPending, 0)
	summary := alerts.Summary{Count: count}
	if count > 0 {
		summary.Headline = fmt.Sprintf("%d cabra(s) aguardando diagnóstico de prenhez", count)
	}

	items := make([]alerts.Item, 0, len(resp.Alerts))
	for _, a := range resp.Alerts {
		summary.WorstOverdueDays = max(summary.WorstOverdueDays, a.DaysOverdue)
		items = append(items, r.item(farmID, a))
	}
	summary.PreviewItems = limitItems(items, r.previewItems)
	return summary, nil
}

func (r *Reproduction) List(ctx context.Context, farmID string, params alerts.ListParams) ([]alerts.Item, error) {
	resp, err := r.client.PregnancyDiagnosisAlerts(ctx, farmID, api.AlertQuery{
		ReferenceDate: r.todayString(),
		Page:          params.Page,
		Size:          r.listSize(params),
	})
	if err != nil {
		r.logger.Warnw("pregnancy diagnosis list fetch failed", "farm", farmID, "error", err)
		return []alerts.Item{}, nil
	}

	items := make([]alerts.Item, 0, len(resp.Alerts))
	for _, a := range resp.Alerts {
		items = append(items, r.item(farmID, a))
	}
	return items, nil
}

func (r *Reproduction) item(farmID string, a api.PregnancyDiagnosisAlert) alerts.Item {
	desc := fmt.Sprintf("Apta ao diagnóstico desde %s", a.EligibleDate)
	if a.LastCoverageDate != "" {
		desc += fmt.Sprintf(" (cobertura em %s)", a.LastCoverageDate)
	}
	return alerts.Item{
		ID:          a.GoatID,
		Title:       "Cabra " + a.GoatID,
		Description: desc,
		Date:        a.EligibleDate,
		Severity:    alerts.SeverityForOverdue(a.DaysOverdue),
		Link:        r.Route(farmID),
		ActionLabel: "Registrar diagnóstico",
		GoatID:      a.GoatID,
		DaysOverdue: a.DaysOverdue,
	}
}
