// Package status derives the launcher's user-visible backend status from
// supervisor and readiness events and fans it out to the tray and the UI.
package status

// Status is the small state the tray indicator and the UI consume.
type Status string

const (
	// StatusStarting (yellow): the supervisor has begun a spawn attempt
	// and the readiness gate has not passed yet.
	StatusStarting Status = "starting"
	// StatusReady (green): the readiness gate passed for the live process.
	StatusReady Status = "ready"
	// StatusOffline (red): a fatal condition was raised. Terminal for the
	// session; there is no automatic recovery out of it.
	StatusOffline Status = "offline"
	// StatusConflict: ready, with a user-attention item pending. Overlay
	// on green driven by an externally supplied pending count.
	StatusConflict Status = "conflict"
)

// EventType categorizes supervisor/readiness notifications.
type EventType string

const (
	// EventSpawnStarted fires on every spawn attempt, first boot and
	// restarts alike.
	EventSpawnStarted EventType = "spawn.started"
	// EventReadinessPassed fires when the readiness gate observes the
	// model-ready signal.
	EventReadinessPassed EventType = "readiness.passed"
	// EventReadinessTimeout fires when the gate gives up. Fatal.
	EventReadinessTimeout EventType = "readiness.timeout"
	// EventAbnormalExit fires on a non-clean process exit while a restart
	// is still permitted.
	EventAbnormalExit EventType = "process.abnormal_exit"
	// EventBudgetExhausted fires when the restart budget refuses a further
	// restart. Fatal.
	EventBudgetExhausted EventType = "process.budget_exhausted"
	// EventPortAllocationFailed fires when no port binds. Fatal.
	EventPortAllocationFailed EventType = "ports.allocation_failed"
	// EventBackendMissing fires when the backend executable is absent. Fatal.
	EventBackendMissing EventType = "process.backend_missing"
)

// IsFatal reports whether the event type is terminal for the session.
func (t EventType) IsFatal() bool {
	switch t {
	case EventReadinessTimeout, EventBudgetExhausted, EventPortAllocationFailed, EventBackendMissing:
		return true
	}
	return false
}

// Next is the pure transition function mapping (current, event) to the new
// status. Offline is absorbing: once fatal, always fatal.
func Next(current Status, event EventType) Status {
	if current == StatusOffline {
		return StatusOffline
	}
	if event.IsFatal() {
		return StatusOffline
	}

	switch event {
	case EventSpawnStarted:
		return StatusStarting
	case EventReadinessPassed:
		return StatusReady
	case EventAbnormalExit:
		// A restart is still permitted, so the backend is coming back.
		return StatusStarting
	}
	return current
}
