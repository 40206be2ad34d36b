package tui

import "github.com/nixlim/herd-top/internal/alerts"

// ItemFilter holds the current filter state for the items panel.
type ItemFilter struct {
	// Severities is the set of severities to display. If empty, all are shown.
	Severities map[alerts.Severity]bool

	// OverdueOnly hides items that are still within their deadline.
	OverdueOnly bool
}

func AllSeverities() map[alerts.Severity]bool {
	return map[alerts.Severity]bool{
		alerts.SeverityHigh:   true,
		alerts.SeverityMedium: true,
		alerts.SeverityLow:    true,
	}
}

func NewItemFilter() ItemFilter {
	return ItemFilter{Severities: AllSeverities()}
}

// Matches returns true if the item passes this filter.
func (f *ItemFilter) Matches(item alerts.Item) bool {
	if len(f.Severities) > 0 && !f.Severities[item.Severity] {
		return false
	}
	if f.OverdueOnly && item.DaysOverdue <= 0 {
		return false
	}
	return true
}

func (f *ItemFilter) Apply(items []alerts.Item) []alerts.Item {
	var out []alerts.Item
	for _, it := range items {
		if f.Matches(it) {
			out = append(out, it)
		}
	}
	return out
}

// Active reports whether anything is being hidden.
func (f *ItemFilter) Active() bool {
	if f.OverdueOnly {
		return true
	}
	for _, on := range f.Severities {
		if !on {
			return true
		}
	}
	return false
}

// FilterMenuState tracks the interactive filter menu.
type FilterMenuState struct {
	Active  bool
	Cursor  int
	Options []FilterOption
}

type FilterOption struct {
	Label   string
	Key     string
	Enabled bool
}

func NewFilterMenu() FilterMenuState {
	return FilterMenuState{
		Options: []FilterOption{
			{Label: "Alta", Key: string(alerts.SeverityHigh), Enabled: true},
			{Label: "Média", Key: string(alerts.SeverityMedium), Enabled: true},
			{Label: "Baixa", Key: string(alerts.SeverityLow), Enabled: true},
			{Label: "Somente atrasados", Key: "overdue_only", Enabled: false},
		},
	}
}

// Filter builds the ItemFilter the menu currently describes.
func (s FilterMenuState) Filter() ItemFilter {
	f := ItemFilter{Severities: make(map[alerts.Severity]bool)}
	for _, opt := range s.Options {
		if opt.Key == "overdue_only" {
			f.OverdueOnly = opt.Enabled
			continue
		}
		f.Severities[alerts.Severity(opt.Key)] = opt.Enabled
	}
	return f
}
