package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"mnesis-launcher/internal/config"
	"mnesis-launcher/internal/httpapi"
	"mnesis-launcher/internal/logs"
	"mnesis-launcher/internal/metrics"
	"mnesis-launcher/internal/status"
	"mnesis-launcher/internal/storage"
	"mnesis-launcher/internal/supervisor"
	"mnesis-launcher/internal/tray"
)

var (
	configFile   string
	dataDir      string
	resourcesDir string
	logLevel     string
	logDir       string
	logToFile    bool
	enableTray   bool
	primaryPort  uint16
	controlPort  uint16

	version = "v0.1.0" // Injected by -ldflags during build
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "mnesis-launcher",
		Short:   "Mnesis launcher - supervises the memory backend process for the desktop app",
		Version: version,
		RunE:    runLauncher,
	}

	registerFlags(rootCmd.PersistentFlags())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func registerFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&configFile, "config", "c", "", "Configuration file path")
	flags.StringVarP(&dataDir, "data-dir", "d", "", "Data directory path (default: ~/.mnesis)")
	flags.StringVar(&resourcesDir, "resources-dir", "", "Directory holding the backend executable (default: launcher directory)")
	flags.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&logDir, "log-dir", "", "Custom log directory path (overrides standard OS location)")
	flags.BoolVar(&logToFile, "log-to-file", true, "Enable logging to file in standard OS location")
	flags.BoolVar(&enableTray, "tray", true, "Enable system tray (use --tray=false to disable)")
	flags.Uint16Var(&primaryPort, "port", 0, "Preferred backend REST port (default: 7860)")
	flags.Uint16Var(&controlPort, "control-port", 0, "Preferred launcher control port (default: 7861)")
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if dataDir != "" {
		cfg.DataDir = dataDir
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
		}
	}
	if resourcesDir != "" {
		cfg.ResourcesDir = resourcesDir
	}
	if primaryPort != 0 {
		cfg.PreferredPrimaryPort = primaryPort
	}
	if controlPort != 0 {
		cfg.PreferredControlPort = controlPort
	}
	cfg.EnableTray = enableTray

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runLauncher(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.Logging.Level = logLevel
	cfg.Logging.EnableFile = logToFile
	if logDir != "" {
		cfg.Logging.LogDir = logDir
	}

	logger, err := logs.SetupLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Starting Mnesis launcher",
		zap.String("version", version),
		zap.String("data_dir", cfg.DataDir),
		zap.String("backend", cfg.BackendExecutable()))

	if err := metrics.Register(nil); err != nil {
		logger.Warn("Failed to register metrics collectors", zap.Error(err))
	}

	store, err := storage.Open(cfg.DataDir, logger)
	if err != nil {
		// History is a convenience; supervision works without it.
		logger.Warn("History database unavailable, continuing without persistence", zap.Error(err))
		store = nil
	} else {
		defer func() {
			_ = store.Close()
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	broadcaster := status.NewBroadcaster(logger)
	notifier := tray.NewNotifier(logger)

	sup := supervisor.New(supervisor.Options{
		Config:      cfg,
		Logger:      logger,
		Broadcaster: broadcaster,
		Store:       store,
		OnFatal: func(_ status.EventType, message string) {
			notifier.Notify("Mnesis backend stopped", message)
		},
	})

	api := httpapi.NewServer(broadcaster, historyOrNil(store), logger)
	go serveControlAPI(ctx, api, broadcaster, logger)

	supDone := make(chan error, 1)
	go func() {
		err := sup.Run(ctx)
		supDone <- err
		// A fatal supervisor exit must also stop the tray loop.
		cancel()
	}()

	if cfg.EnableTray {
		trayApp := tray.New(broadcaster, logger, version, cancel)
		if err := trayApp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Tray exited with error", zap.Error(err))
		}
	} else {
		<-ctx.Done()
	}
	cancel()

	if err := <-supDone; err != nil {
		return fmt.Errorf("backend supervision ended: %w", err)
	}
	logger.Info("Mnesis launcher stopped")
	return nil
}

// serveControlAPI waits for the supervisor to publish the allocated ports,
// then binds the control API on the control port.
func serveControlAPI(ctx context.Context, api *httpapi.Server, broadcaster *status.Broadcaster, logger *zap.Logger) {
	snapshots, cancelSub := broadcaster.Subscribe()
	defer cancelSub()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if snap.ControlPort == 0 {
				continue
			}
			if err := api.Serve(ctx, snap.ControlPort); err != nil {
				logger.Error("Control API failed", zap.Error(err))
			}
			return
		}
	}
}

// historyOrNil avoids handing the API a typed-nil interface when the
// history database failed to open.
func historyOrNil(store *storage.BoltDB) httpapi.History {
	if store == nil {
		return nil
	}
	return store
}
