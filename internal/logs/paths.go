package logs

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	osWindows = "windows"
	osDarwin  = "darwin"
	osLinux   = "linux"

	appDirName = "Mnesis"

	// BackendLogFilename is the single append-only file receiving the
	// backend child's stdout and stderr, shared across restarts within a
	// session and never truncated by the launcher.
	BackendLogFilename = "backend.log"
)

// GetLogDir returns the conventional log directory for the current OS.
func GetLogDir() (string, error) {
	switch runtime.GOOS {
	case osWindows:
		return getWindowsLogDir()
	case osDarwin:
		return getMacOSLogDir()
	case osLinux:
		return getLinuxLogDir()
	default:
		return getDefaultLogDir()
	}
}

// getWindowsLogDir uses %LOCALAPPDATA%\Mnesis\logs.
func getWindowsLogDir() (string, error) {
	localAppData := os.Getenv("LOCALAPPDATA")
	if localAppData == "" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return getDefaultLogDir()
		}
		localAppData = filepath.Join(userProfile, "AppData", "Local")
	}
	return filepath.Join(localAppData, appDirName, "logs"), nil
}

// getMacOSLogDir uses ~/Library/Logs/Mnesis.
func getMacOSLogDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return getDefaultLogDir()
	}
	return filepath.Join(homeDir, "Library", "Logs", appDirName), nil
}

// getLinuxLogDir follows the XDG Base Directory Specification:
// $XDG_STATE_HOME/Mnesis/logs, defaulting to ~/.local/state.
func getLinuxLogDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return getDefaultLogDir()
	}

	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateDir, appDirName, "logs"), nil
}

func getDefaultLogDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appDirName, "logs"), nil
	}
	return filepath.Join(homeDir, "."+strings.ToLower(appDirName), "logs"), nil
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir(logDir string) error {
	return os.MkdirAll(logDir, 0o755)
}

// GetLogFilePath returns the full path for a log file in the standard log
// directory, creating the directory if needed.
func GetLogFilePath(filename string) (string, error) {
	logDir, err := GetLogDir()
	if err != nil {
		return "", err
	}
	if err := EnsureLogDir(logDir); err != nil {
		return "", err
	}
	return filepath.Join(logDir, filename), nil
}

// GetLogFilePathWithDir returns the full path for a log file in a custom
// log directory, falling back to the standard location when dir is empty.
func GetLogFilePathWithDir(logDir, filename string) (string, error) {
	if logDir == "" {
		return GetLogFilePath(filename)
	}

	if strings.HasPrefix(logDir, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		logDir = filepath.Join(homeDir, logDir[2:])
	}

	if err := EnsureLogDir(logDir); err != nil {
		return "", err
	}
	return filepath.Join(logDir, filename), nil
}

// BackendLogPath returns the deterministic path of the backend child's log
// file. The supervisor opens it in append mode on every spawn; the tray's
// "Open Log Directory" action resolves the same path.
func BackendLogPath() (string, error) {
	return GetLogFilePath(BackendLogFilename)
}
