//go:build darwin

package alerts

import (
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// OSAScriptNotifier sends macOS notifications via osascript in a background
// goroutine.
type OSAScriptNotifier struct {
	enabled bool
	logger  *zap.SugaredLogger
}

func NewOSAScriptNotifier(enabled bool, logger *zap.SugaredLogger) *OSAScriptNotifier {
	return &OSAScriptNotifier{enabled: enabled, logger: logger}
}

func NewPlatformNotifier(enabled bool, logger *zap.SugaredLogger) Notifier {
	return NewOSAScriptNotifier(enabled, logger)
}

func (n *OSAScriptNotifier) Notify(note Notification) {
	if !n.enabled {
		return
	}

	title, body := notificationText(note)
	go func() {
		if err := sendOSANotification(title, body); err != nil {
			n.logger.Warnw("desktop notification failed", "farm", note.FarmID, "error", err)
		}
	}()
}

func sendOSANotification(title, message string) error {
	script := fmt.Sprintf(
		`display notification "%s" with title "%s"`,
		escapeAppleScript(message), escapeAppleScript(title),
	)
	return exec.Command("osascript", "-e", script).Run()
}

// escapeAppleScript escapes characters that could break AppleScript strings.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
