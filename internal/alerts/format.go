package alerts

import (
	"fmt"
	"strings"
)

// FormatOverdue renders the overdue badge shown next to list items.
func FormatOverdue(days int) string {
	if days > 0 {
		return fmt.Sprintf("+%d dia(s)", days)
	}
	return "No prazo"
}

func SeverityForOverdue(days int) Severity {
	switch {
	case days > 7:
		return SeverityHigh
	case days > 0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// WebLink prefixes a provider route with the web dashboard base URL.
// An empty base returns the route unchanged.
func WebLink(base, route string) string {
	if base == "" {
		return route
	}
	return strings.TrimRight(base, "/") + route
}
