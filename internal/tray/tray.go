//go:build !nogui && !headless

// Package tray renders the launcher's system tray indicator: a colored
// status icon, the negotiated backend address, and the quick actions.
package tray

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"fyne.io/systray"
	"go.uber.org/zap"

	"mnesis-launcher/internal/status"
)

//go:embed icon-yellow.png
var iconStarting []byte

//go:embed icon-green.png
var iconReady []byte

//go:embed icon-red.png
var iconOffline []byte

//go:embed icon-orange.png
var iconConflict []byte

// StatusSource is the tray's read side of the status broadcaster.
type StatusSource interface {
	Current() status.Snapshot
	Subscribe() (<-chan status.Snapshot, func())
}

// App is the system tray application. Run must be called on the main
// thread; most platforms require the event loop there.
type App struct {
	source   StatusSource
	logger   *zap.Logger
	version  string
	shutdown func()

	ctx context.Context

	statusItem *systray.MenuItem
	portsItem  *systray.MenuItem
}

// New creates the tray application. shutdown initiates the coordinated
// launcher shutdown when the user picks Quit.
func New(source StatusSource, logger *zap.Logger, version string, shutdown func()) *App {
	return &App{
		source:   source,
		logger:   logger,
		version:  version,
		shutdown: shutdown,
	}
}

// Run starts the tray event loop and blocks until ctx is cancelled or the
// user quits.
func (a *App) Run(ctx context.Context) error {
	a.ctx = ctx

	go func() {
		<-ctx.Done()
		systray.Quit()
	}()

	systray.Run(a.onReady, a.onExit)
	return ctx.Err()
}

func (a *App) onReady() {
	a.logger.Info("System tray ready", zap.String("version", a.version))

	systray.SetTooltip("Mnesis")
	a.statusItem = systray.AddMenuItem("Status: starting", "Backend status")
	a.statusItem.Disable()
	a.portsItem = systray.AddMenuItem("Backend: allocating ports", "Backend address")
	a.portsItem.Disable()
	systray.AddSeparator()

	openLogs := systray.AddMenuItem("Open Log Folder", "Open the launcher log directory")
	copyLink := systray.AddMenuItem("Copy Snapshot Link", "Copy a shareable backend snapshot URL")
	systray.AddSeparator()
	quit := systray.AddMenuItem(fmt.Sprintf("Quit Mnesis (v%s)", a.version), "Stop the backend and exit")

	a.applySnapshot(a.source.Current())

	go func() {
		snapshots, cancel := a.source.Subscribe()
		defer cancel()

		for {
			select {
			case <-a.ctx.Done():
				return
			case snap, ok := <-snapshots:
				if !ok {
					return
				}
				a.applySnapshot(snap)
			case <-openLogs.ClickedCh:
				if err := OpenLogDir(); err != nil {
					a.logger.Warn("Failed to open log directory", zap.Error(err))
				}
			case <-copyLink.ClickedCh:
				a.copySnapshotLink()
			case <-quit.ClickedCh:
				a.logger.Info("Quit selected from tray menu")
				a.shutdown()
				return
			}
		}
	}()
}

func (a *App) onExit() {
	a.logger.Info("System tray exited")
}

func (a *App) applySnapshot(snap status.Snapshot) {
	var icon []byte
	var label string

	switch snap.Status {
	case status.StatusReady:
		icon, label = iconReady, "Ready"
	case status.StatusConflict:
		icon = iconConflict
		label = fmt.Sprintf("%d conflicts need review", snap.PendingConflicts)
	case status.StatusOffline:
		icon, label = iconOffline, "Offline"
	default:
		icon, label = iconStarting, "Starting…"
	}

	systray.SetIcon(icon)
	systray.SetTooltip("Mnesis: " + label)
	a.statusItem.SetTitle("Status: " + label)

	if snap.PrimaryPort != 0 {
		a.portsItem.SetTitle(fmt.Sprintf("Backend: http://127.0.0.1:%d", snap.PrimaryPort))
	}
}

func (a *App) copySnapshotLink() {
	pair := a.source.Current()
	if pair.PrimaryPort == 0 {
		a.logger.Warn("Cannot copy snapshot link, backend has no port yet")
		return
	}

	ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()

	link, err := SnapshotLink(ctx, pair.PrimaryPort)
	if err != nil {
		a.logger.Warn("Failed to build snapshot link", zap.Error(err))
		return
	}
	if err := CopyToClipboard(link); err != nil {
		a.logger.Warn("Failed to copy snapshot link to clipboard", zap.Error(err))
		return
	}
	a.logger.Info("Snapshot link copied to clipboard")
}
