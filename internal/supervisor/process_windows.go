//go:build windows

package supervisor

import (
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// setSysProcAttr creates the backend in a new process group so console
// signals aimed at the launcher don't reach it.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

func extractProcessGroupID(cmd *exec.Cmd, _ *zap.Logger) int {
	if cmd.Process == nil {
		return 0
	}
	// Group leader is the process itself on Windows.
	return cmd.Process.Pid
}

func exitSignal(_ *exec.ExitError) string {
	return ""
}

// terminateProcess kills the process directly; Windows has no graceful
// SIGTERM equivalent for a GUI-less child, so the grace period only bounds
// how long we wait for the exit notification.
func terminateProcess(p *osProcess, grace time.Duration) {
	if err := p.cmd.Process.Kill(); err != nil {
		p.logger.Debug("Process kill failed", zap.Int("pid", p.cmd.Process.Pid), zap.Error(err))
	}

	select {
	case <-p.done:
	case <-time.After(grace):
		p.logger.Warn("Timed out waiting for backend exit", zap.Int("pid", p.cmd.Process.Pid))
	}
}
