package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// Environment variables carrying the negotiated ports to the backend.
const (
	EnvPrimaryPort = "MNESIS_PORT"
	EnvControlPort = "MNESIS_CONTROL_PORT"
)

// SpawnSpec describes one backend spawn attempt.
type SpawnSpec struct {
	Executable string
	WorkDir    string
	// Env entries appended to the inherited process environment.
	Env []string
	// Output receives the child's stdout and stderr. Stdin is never
	// connected.
	Output *os.File
}

// Process is the supervisor's view of a live backend process. Exactly one
// live Process exists at a time; a restart produces a new one rather than
// mutating the old.
type Process interface {
	PID() int
	// Done is closed with the exit status once the process ends.
	Done() <-chan ExitStatus
	// Terminate signals the process (and its group) and blocks until it is
	// gone, escalating after the grace period. Idempotent.
	Terminate(grace time.Duration)
}

// StartFunc spawns a backend process. Swappable in tests for a fake.
type StartFunc func(ctx context.Context, spec SpawnSpec, logger *zap.Logger) (Process, error)

// osProcess wraps a real exec.Cmd with process-group handling.
type osProcess struct {
	cmd    *exec.Cmd
	pgid   int
	logger *zap.Logger
	done   chan ExitStatus
}

// StartBackend spawns the backend executable with the port environment and
// log capture wired up, and begins waiting on it.
func StartBackend(ctx context.Context, spec SpawnSpec, logger *zap.Logger) (Process, error) {
	cmd := exec.CommandContext(ctx, spec.Executable)
	cmd.Dir = spec.WorkDir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdout = spec.Output
	cmd.Stderr = spec.Output
	cmd.Stdin = nil
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start backend: %w", err)
	}

	p := &osProcess{
		cmd:    cmd,
		pgid:   extractProcessGroupID(cmd, logger),
		logger: logger,
		done:   make(chan ExitStatus, 1),
	}

	logger.Info("Backend process started",
		zap.Int("pid", cmd.Process.Pid),
		zap.String("executable", spec.Executable))

	go p.wait()
	return p, nil
}

func (p *osProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *osProcess) Done() <-chan ExitStatus {
	return p.done
}

func (p *osProcess) wait() {
	err := p.cmd.Wait()

	st := ExitStatus{Err: err}
	if err == nil {
		st.Code = 0
	} else if exitErr, ok := err.(*exec.ExitError); ok {
		st.Code = exitErr.ExitCode()
		st.Signal = exitSignal(exitErr)
	} else {
		st.Code = -1
	}

	p.done <- st
	close(p.done)
}

// Terminate kills the process group, waiting out the grace period before
// escalating. Safe to call after the process already exited.
func (p *osProcess) Terminate(grace time.Duration) {
	if p.cmd.Process == nil {
		return
	}
	terminateProcess(p, grace)
}
