package alerts

import "fmt"

// Notification describes a rise in a farm's pending alert total.
type Notification struct {
	FarmID   string
	Previous int
	Total    int
}

// Notifier delivers desktop notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// ShouldNotify reports whether moving from prev to total is worth a
// notification. Drops and unchanged totals are not.
func ShouldNotify(prev, total int) bool {
	return total > prev
}

func notificationText(n Notification) (title, body string) {
	title = fmt.Sprintf("herd-top: fazenda %s", truncateFarmID(n.FarmID))
	body = fmt.Sprintf("%d alerta(s) pendente(s) (antes %d)", n.Total, n.Previous)
	return title, body
}

func truncateFarmID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12] + "..."
}
