package tray

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"mnesis-launcher/internal/logs"
)

var snapshotClient = &http.Client{Timeout: 5 * time.Second}

// OpenLogDir opens the launcher log directory in the platform file browser.
func OpenLogDir() error {
	dir, err := logs.GetLogDir()
	if err != nil {
		return err
	}
	if err := logs.EnsureLogDir(dir); err != nil {
		return err
	}
	return openPath(dir)
}

func openPath(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	return cmd.Start()
}

// SnapshotLink requests a one-time snapshot token from the backend and
// formats the shareable loopback URL around it.
func SnapshotLink(ctx context.Context, primaryPort uint16) (string, error) {
	tokenURL := fmt.Sprintf("http://127.0.0.1:%d/api/snapshot/token", primaryPort)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := snapshotClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request snapshot token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("snapshot token request returned %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode snapshot token: %w", err)
	}
	if body.Token == "" {
		return "", fmt.Errorf("backend returned an empty snapshot token")
	}

	return fmt.Sprintf("http://127.0.0.1:%d/snapshot?token=%s", primaryPort, body.Token), nil
}

// CopyToClipboard pipes text into the platform clipboard tool.
func CopyToClipboard(text string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "windows":
		cmd = exec.Command("cmd", "/c", "clip")
	default:
		if _, err := exec.LookPath("wl-copy"); err == nil {
			cmd = exec.Command("wl-copy")
		} else {
			cmd = exec.Command("xclip", "-selection", "clipboard")
		}
	}
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}
