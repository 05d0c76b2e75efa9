// Package readiness implements the two-phase readiness gate: the backend's
// HTTP server accepting connections is not enough, its embedding model must
// also have finished loading before the UI may attach.
package readiness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Model status values reported by the backend while initializing.
const (
	ModelStatusChecking    = "checking"
	ModelStatusDownloading = "downloading"
	ModelStatusLoading     = "loading"
	ModelStatusReady       = "ready"
	ModelStatusError       = "error"
)

// Snapshot is the health payload consumed from the backend. It is
// re-fetched on every poll tick and never cached beyond it.
type Snapshot struct {
	HTTPOk          bool    `json:"http_ok"`
	ModelReady      bool    `json:"model_ready"`
	ModelStatus     string  `json:"model_status"`
	DownloadPercent float64 `json:"download_percent,omitempty"`
	DownloadFile    string  `json:"download_file,omitempty"`
}

// Gate polls the backend health endpoint until it reports model-ready or
// the wall-clock timeout elapses. Polling is strictly sequential: a tick's
// request fully resolves before the next one is issued.
type Gate struct {
	Interval time.Duration
	Timeout  time.Duration

	logger *zap.Logger
	client *http.Client

	// OnSnapshot, when set, receives every parsed snapshot. The tray uses
	// it to surface model download progress.
	OnSnapshot func(Snapshot)
}

// NewGate returns a gate with a per-request timeout derived from the poll
// interval so a hung backend cannot stall the loop.
func NewGate(interval, timeout time.Duration, logger *zap.Logger) *Gate {
	reqTimeout := interval
	if reqTimeout < time.Second {
		reqTimeout = time.Second
	}
	return &Gate{
		Interval: interval,
		Timeout:  timeout,
		logger:   logger,
		client:   &http.Client{Timeout: reqTimeout},
	}
}

// Wait polls GET /health on the primary port until the backend reports
// model_ready, the timeout elapses, or ctx is cancelled. It returns true
// only on the model-ready signal; HTTP reachability alone never counts.
func (g *Gate) Wait(ctx context.Context, primaryPort uint16) bool {
	url := fmt.Sprintf("http://127.0.0.1:%d/health", primaryPort)
	deadline := time.Now().Add(g.Timeout)

	attempt := 0
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		attempt++

		snap, err := g.fetch(ctx, url)
		switch {
		case err != nil:
			// Connection refused and friends: the HTTP server is not up
			// yet. Keep waiting.
			g.logger.Debug("Health endpoint not reachable yet",
				zap.Int("attempt", attempt),
				zap.Error(err))
		case snap.ModelReady:
			g.logger.Info("Backend ready",
				zap.Int("attempt", attempt),
				zap.String("model_status", snap.ModelStatus))
			return true
		default:
			g.logger.Debug("Backend reachable but model not loaded",
				zap.Int("attempt", attempt),
				zap.String("model_status", snap.ModelStatus),
				zap.Float64("download_percent", snap.DownloadPercent))
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(g.Interval):
		}
	}

	g.logger.Warn("Readiness gate timed out",
		zap.Duration("timeout", g.Timeout),
		zap.Int("attempts", attempt))
	return false
}

// fetch issues one health GET and parses the snapshot. Non-2xx responses
// are errors: the backend is treated as not yet up.
func (g *Gate) fetch(ctx context.Context, url string) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return Snapshot{}, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Snapshot{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Snapshot{}, fmt.Errorf("health returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse health payload: %w", err)
	}
	snap.HTTPOk = true

	if g.OnSnapshot != nil {
		g.OnSnapshot(snap)
	}
	return snap, nil
}
