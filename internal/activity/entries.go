package activity

import (
	"fmt"
	"time"

	"github.com/nixlim/herd-top/internal/alerts"
	"github.com/nixlim/herd-top/internal/inventory"
)

// AlertsRefreshed summarises a committed refresh cycle.
func AlertsRefreshed(farmID string, states []alerts.ProviderState, at time.Time) Entry {
	total, failed := 0, 0
	for _, s := range states {
		total += s.Summary.Count
		if s.Error {
			failed++
		}
	}
	text := fmt.Sprintf("Alertas atualizados: %d pendente(s)", total)
	if failed > 0 {
		text += fmt.Sprintf(", %d categoria(s) com erro", failed)
	}
	return Entry{FarmID: farmID, Kind: KindAlertsRefreshed, Text: text, At: at, Success: boolPtr(failed == 0)}
}

func CategoryFailed(farmID, label string, at time.Time) Entry {
	return Entry{
		FarmID:  farmID,
		Kind:    KindCategoryFailed,
		Text:    fmt.Sprintf("Falha ao carregar %s", label),
		At:      at,
		Success: boolPtr(false),
	}
}

func EventResolved(farmID string, item alerts.Item, err error, at time.Time) Entry {
	if err != nil {
		return Entry{
			FarmID:  farmID,
			Kind:    KindEventResolved,
			Text:    fmt.Sprintf("Não foi possível concluir %q: %v", item.Title, err),
			At:      at,
			Success: boolPtr(false),
		}
	}
	return Entry{
		FarmID:  farmID,
		Kind:    KindEventResolved,
		Text:    fmt.Sprintf("Evento %q marcado como realizado", item.Title),
		At:      at,
		Success: boolPtr(true),
	}
}

// MovementSubmitted records an inventory submission. A network failure is
// logged as a saved retry rather than a plain failure.
func MovementSubmitted(farmID string, res inventory.Result, at time.Time) Entry {
	if res.Outcome == inventory.OutcomeNetwork {
		return Entry{
			FarmID:  farmID,
			Kind:    KindRetrySaved,
			Text:    "Movimentação pendente salva para nova tentativa (" + res.Key + ")",
			At:      at,
			Success: boolPtr(false),
		}
	}
	text := res.Message
	if res.Movement != nil && res.Movement.ID != 0 {
		text = fmt.Sprintf("%s #%d", text, res.Movement.ID)
	}
	return Entry{
		FarmID:  farmID,
		Kind:    KindMovement,
		Text:    text,
		At:      at,
		Success: boolPtr(res.Outcome.Success()),
	}
}

func FarmSwitched(farmID string, at time.Time) Entry {
	return Entry{FarmID: farmID, Kind: KindFarmSwitched, Text: "Fazenda selecionada", At: at}
}
