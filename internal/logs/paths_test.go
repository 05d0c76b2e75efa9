package logs

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogDir(t *testing.T) {
	logDir, err := GetLogDir()
	require.NoError(t, err)
	assert.NotEmpty(t, logDir)
	assert.Contains(t, strings.ToLower(logDir), "mnesis")

	switch runtime.GOOS {
	case "darwin":
		assert.Contains(t, logDir, filepath.Join("Library", "Logs"))
	case "linux":
		if os.Getenv("XDG_STATE_HOME") == "" {
			assert.Contains(t, logDir, filepath.Join(".local", "state"))
		}
	}
}

func TestGetLogFilePathWithDir(t *testing.T) {
	dir := t.TempDir()

	path, err := GetLogFilePathWithDir(dir, "launcher.log")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "launcher.log"), path)
	assert.DirExists(t, dir)
}

func TestGetLogFilePathWithDirCreatesMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	path, err := GetLogFilePathWithDir(dir, "launcher.log")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Dir(path))
}

func TestBackendLogPathIsDeterministic(t *testing.T) {
	a, err := BackendLogPath()
	require.NoError(t, err)
	b, err := BackendLogPath()
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, BackendLogFilename, filepath.Base(a))
}
