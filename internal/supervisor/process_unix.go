//go:build unix

package supervisor

import (
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// setSysProcAttr puts the backend in its own process group so the whole
// tree can be terminated when the launcher exits.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
}

func extractProcessGroupID(cmd *exec.Cmd, logger *zap.Logger) int {
	if cmd.Process == nil {
		return 0
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		logger.Warn("Failed to get process group ID",
			zap.Int("pid", cmd.Process.Pid),
			zap.Error(err))
		return 0
	}
	return pgid
}

func exitSignal(exitErr *exec.ExitError) string {
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ws.Signal().String()
	}
	return ""
}

// terminateProcess sends SIGTERM to the process group, waits out the grace
// period, then escalates to SIGKILL if anything is still alive.
func terminateProcess(p *osProcess, grace time.Duration) {
	target := -p.pgid
	if p.pgid <= 0 {
		target = p.cmd.Process.Pid
	}

	if err := syscall.Kill(target, syscall.SIGTERM); err != nil {
		// ESRCH: already gone.
		p.logger.Debug("SIGTERM delivery failed", zap.Int("target", target), zap.Error(err))
	}

	select {
	case <-p.done:
		return
	case <-time.After(grace):
	}

	p.logger.Warn("Backend still running after SIGTERM, sending SIGKILL",
		zap.Int("target", target))
	if err := syscall.Kill(target, syscall.SIGKILL); err != nil {
		p.logger.Debug("SIGKILL delivery failed", zap.Int("target", target), zap.Error(err))
	}
	<-p.done
}
