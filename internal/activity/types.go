// Package activity keeps the recent things herd-top did, for the dashboard's
// activity panel.
package activity

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindAlertsRefreshed Kind = "alerts_refreshed"
	KindCategoryFailed  Kind = "category_failed"
	KindEventResolved   Kind = "event_resolved"
	KindMovement        Kind = "movement"
	KindRetrySaved      Kind = "retry_saved"
	KindFarmSwitched    Kind = "farm_switched"
)

type Entry struct {
	FarmID string
	Kind   Kind
	Text   string
	At     time.Time
	// Success is nil when the entry is neither a success nor a failure.
	Success *bool
}

// Line renders the entry for a single terminal row.
func (e Entry) Line() string {
	return fmt.Sprintf("%s [%s] %s", e.At.Format("15:04:05"), e.FarmID, e.Text)
}

func boolPtr(b bool) *bool { return &b }
