package supervisor

import "time"

// ExitStatus describes how a backend process ended.
type ExitStatus struct {
	// Code is the process exit code; -1 when the process was killed by a
	// signal or never reached exec.
	Code   int
	Signal string
	Err    error
}

// Clean reports whether the exit was intentional.
func (e ExitStatus) Clean() bool {
	return e.Code == 0 && e.Signal == ""
}

// eventKind discriminates the supervisor loop's internal events. All
// supervisor state is mutated by the single goroutine draining these, which
// preserves the sequential ordering guarantees without locks.
type eventKind int

const (
	// evProcessExit: the watched process ended. Carries the handle
	// generation so exits from superseded handles are ignored.
	evProcessExit eventKind = iota
	// evSpawnFailed: the spawn itself errored after the executable was
	// found. Recovered through the same budget path as crashes.
	evSpawnFailed
	// evReadinessResult: the readiness gate finished for a generation.
	evReadinessResult
	// evRestartTimer: the flat restart delay elapsed.
	evRestartTimer
)

type event struct {
	kind eventKind
	gen  uint64

	exit     ExitStatus    // evProcessExit
	spawnErr error         // evSpawnFailed
	ready    bool          // evReadinessResult
	elapsed  time.Duration // evReadinessResult
}
