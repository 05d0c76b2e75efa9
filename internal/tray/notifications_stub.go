//go:build nogui || headless

package tray

import "go.uber.org/zap"

// Notifier logs would-be desktop notifications (stub version).
type Notifier struct {
	logger *zap.Logger
}

// NewNotifier creates a log-only notification handler.
func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Notify logs the notification; headless builds have nowhere to show it.
func (n *Notifier) Notify(title, message string) {
	n.logger.Info("Desktop notification (suppressed, headless build)",
		zap.String("title", title),
		zap.String("message", message))
}
