//go:build linux

package alerts

import (
	"os/exec"

	"go.uber.org/zap"
)

// NotifySendNotifier sends Linux desktop notifications via notify-send in a
// background goroutine.
type NotifySendNotifier struct {
	enabled bool
	logger  *zap.SugaredLogger
}

func NewNotifySendNotifier(enabled bool, logger *zap.SugaredLogger) *NotifySendNotifier {
	return &NotifySendNotifier{enabled: enabled, logger: logger}
}

func NewPlatformNotifier(enabled bool, logger *zap.SugaredLogger) Notifier {
	return NewNotifySendNotifier(enabled, logger)
}

func (n *NotifySendNotifier) Notify(note Notification) {
	if !n.enabled {
		return
	}

	title, body := notificationText(note)
	urgency := "normal"
	if note.Total-note.Previous > 5 {
		urgency = "critical"
	}

	go func() {
		if err := sendNotifySend(title, body, urgency); err != nil {
			n.logger.Warnw("desktop notification failed", "farm", note.FarmID, "error", err)
		}
	}()
}

func sendNotifySend(title, body, urgency string) error {
	cmd := exec.Command("notify-send", "--urgency", urgency, "--app-name", "herd-top", title, body)
	return cmd.Run()
}
