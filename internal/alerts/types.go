// Package alerts merges the pending-task counts of several farm alert
// sources into one alert center.
package alerts

import "context"

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Item is one pending task shown in a category list.
type Item struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Date        string   `json:"date,omitempty"`
	Severity    Severity `json:"severity"`
	Link        string   `json:"link,omitempty"`
	ActionLabel string   `json:"actionLabel,omitempty"`
	GoatID      string   `json:"goatId,omitempty"`

	StartDatePregnancy string `json:"startDatePregnancy,omitempty"`
	DryOffDate         string `json:"dryOffDate,omitempty"`
	GestationDays      int    `json:"gestationDays,omitempty"`
	DaysOverdue        int    `json:"daysOverdue,omitempty"`
}

// Summary is the per-category result of one fetch. Count is never negative.
type Summary struct {
	Count            int    `json:"count"`
	Headline         string `json:"headline,omitempty"`
	WorstOverdueDays int    `json:"worstOverdueDays,omitempty"`
	PreviewItems     []Item `json:"previewItems,omitempty"`
}

type ListParams struct {
	Page int
	Size int
}

// Provider is one alert source. Summary implementations are expected to
// swallow their own fetch errors and report Count 0.
type Provider interface {
	Key() string
	Label() string
	Priority() int
	Summary(ctx context.Context, farmID string) (Summary, error)
	Route(farmID string) string
}

// Lister is implemented by providers with a detailed item list.
type Lister interface {
	List(ctx context.Context, farmID string, params ListParams) ([]Item, error)
}

// Resolver is implemented by providers whose items can be closed from the
// dashboard. Callers emit on the Bus after a successful Resolve.
type Resolver interface {
	Resolve(ctx context.Context, farmID, itemID string) error
}

type ProviderState struct {
	ProviderKey string  `json:"providerKey"`
	Summary     Summary `json:"summary"`
	Loading     bool    `json:"loading"`
	Error       bool    `json:"error"`
}

func totalOf(states []ProviderState) int {
	total := 0
	for _, s := range states {
		total += s.Summary.Count
	}
	return total
}
