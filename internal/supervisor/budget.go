package supervisor

import "time"

// RestartBudget counts consecutive crash-triggered restarts since the last
// successful readiness transition. Owned by the supervisor and mutated
// only on its event loop.
type RestartBudget struct {
	attempts uint
	max      uint
	delay    time.Duration
}

// NewRestartBudget returns a budget permitting max restarts with a flat
// delay between a crash and the respawn.
func NewRestartBudget(maxAttempts uint, delay time.Duration) *RestartBudget {
	return &RestartBudget{max: maxAttempts, delay: delay}
}

// Consume records one abnormal exit and reports whether a restart is still
// permitted. Convention: with max=3, exactly three restarts are granted;
// the fourth abnormal exit is refused.
func (b *RestartBudget) Consume() bool {
	b.attempts++
	return b.attempts <= b.max
}

// Reset clears the attempt count. Called on every successful readiness
// transition so an independent later crash sequence gets a full budget.
func (b *RestartBudget) Reset() {
	b.attempts = 0
}

// Exhaust irrevocably disables further restarts. Called when intentional
// shutdown begins, before the child is terminated, so a shutdown-induced
// exit can never race a restart.
func (b *RestartBudget) Exhaust() {
	b.attempts = b.max
}

// Exhausted reports whether no further restart would be granted.
func (b *RestartBudget) Exhausted() bool {
	return b.attempts >= b.max
}

// Attempts returns the current consecutive-restart count.
func (b *RestartBudget) Attempts() uint {
	return b.attempts
}

// Delay returns the flat wait between a crash and the respawn.
func (b *RestartBudget) Delay() time.Duration {
	return b.delay
}
