package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current Status
		event   EventType
		want    Status
	}{
		{"spawn keeps starting", StatusStarting, EventSpawnStarted, StatusStarting},
		{"readiness pass goes green", StatusStarting, EventReadinessPassed, StatusReady},
		{"abnormal exit under budget goes back to yellow", StatusReady, EventAbnormalExit, StatusStarting},
		{"restart passes readiness again", StatusStarting, EventReadinessPassed, StatusReady},
		{"readiness timeout is fatal", StatusStarting, EventReadinessTimeout, StatusOffline},
		{"budget exhaustion is fatal", StatusStarting, EventBudgetExhausted, StatusOffline},
		{"port allocation failure is fatal", StatusStarting, EventPortAllocationFailed, StatusOffline},
		{"missing backend is fatal", StatusStarting, EventBackendMissing, StatusOffline},
		{"offline is terminal on spawn", StatusOffline, EventSpawnStarted, StatusOffline},
		{"offline is terminal on readiness", StatusOffline, EventReadinessPassed, StatusOffline},
		{"offline is terminal on exit", StatusOffline, EventAbnormalExit, StatusOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Next(tt.current, tt.event))
		})
	}
}

func TestNextIsPure(t *testing.T) {
	// Calling the transition twice with the same inputs yields the same
	// output; there is no hidden state.
	for i := 0; i < 3; i++ {
		assert.Equal(t, StatusReady, Next(StatusStarting, EventReadinessPassed))
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, EventReadinessTimeout.IsFatal())
	assert.True(t, EventBudgetExhausted.IsFatal())
	assert.True(t, EventPortAllocationFailed.IsFatal())
	assert.True(t, EventBackendMissing.IsFatal())
	assert.False(t, EventSpawnStarted.IsFatal())
	assert.False(t, EventReadinessPassed.IsFatal())
	assert.False(t, EventAbnormalExit.IsFatal())
}
