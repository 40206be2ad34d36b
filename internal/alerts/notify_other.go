//go:build !linux && !darwin

package alerts

import "go.uber.org/zap"

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

// NewPlatformNotifier returns a notifier that drops everything on platforms
// without a supported notification command.
func NewPlatformNotifier(enabled bool, logger *zap.SugaredLogger) Notifier {
	if enabled {
		logger.Debugw("desktop notifications unsupported on this platform")
	}
	return nopNotifier{}
}
