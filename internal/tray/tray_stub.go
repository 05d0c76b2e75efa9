//go:build nogui || headless

package tray

import (
	"context"

	"go.uber.org/zap"

	"mnesis-launcher/internal/status"
)

// StatusSource is the tray's read side of the status broadcaster (stub
// version).
type StatusSource interface {
	Current() status.Snapshot
	Subscribe() (<-chan status.Snapshot, func())
}

// App is the system tray application (stub version).
type App struct {
	logger *zap.Logger
}

// New creates a no-op tray application for headless builds.
func New(_ StatusSource, logger *zap.Logger, _ string, _ func()) *App {
	return &App{logger: logger}
}

// Run blocks until ctx is cancelled; there is no tray to show.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Tray functionality disabled (nogui/headless build)")
	<-ctx.Done()
	return ctx.Err()
}
