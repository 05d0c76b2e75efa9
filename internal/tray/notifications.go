//go:build !nogui && !headless

package tray

import (
	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// Notifier shows desktop notifications for fatal backend conditions.
type Notifier struct {
	logger *zap.Logger
}

// NewNotifier creates a desktop notification handler.
func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Notify shows one desktop notification. Failures are logged and swallowed;
// a missing notification daemon must not affect supervision.
func (n *Notifier) Notify(title, message string) {
	n.logger.Info("Desktop notification",
		zap.String("title", title),
		zap.String("message", message))

	if err := beeep.Notify(title, message, ""); err != nil {
		n.logger.Warn("Failed to show desktop notification", zap.Error(err))
	}
}
