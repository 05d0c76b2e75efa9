package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRestartBudget_GrantsExactlyMaxRestarts(t *testing.T) {
	b := NewRestartBudget(3, time.Second)

	require.True(t, b.Consume(), "first restart should be granted")
	require.True(t, b.Consume(), "second restart should be granted")
	require.True(t, b.Consume(), "third restart should be granted")
	require.False(t, b.Consume(), "fourth restart should be refused")
	assert.True(t, b.Exhausted())
}

func TestRestartBudget_ResetRestoresFullBudget(t *testing.T) {
	b := NewRestartBudget(2, time.Second)

	require.True(t, b.Consume())
	require.True(t, b.Consume())
	require.False(t, b.Consume())

	b.Reset()
	assert.Equal(t, uint(0), b.Attempts())
	assert.False(t, b.Exhausted())
	require.True(t, b.Consume(), "reset should restore the full budget")
}

func TestRestartBudget_ExhaustRefusesImmediately(t *testing.T) {
	b := NewRestartBudget(5, time.Second)

	b.Exhaust()
	assert.True(t, b.Exhausted())
	assert.False(t, b.Consume(), "exhausted budget must refuse even untouched attempts")
}

func TestRestartBudget_Delay(t *testing.T) {
	b := NewRestartBudget(3, 2*time.Second)
	assert.Equal(t, 2*time.Second, b.Delay())
}

// Property: against any interleaving of consumes and resets, the number of
// granted restarts since the last reset never exceeds max.
func TestRestartBudget_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxAttempts := rapid.UintRange(1, 10).Draw(t, "max")
		b := NewRestartBudget(maxAttempts, time.Millisecond)

		granted := uint(0)
		steps := rapid.IntRange(1, 100).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				if b.Consume() {
					granted++
					if granted > maxAttempts {
						t.Fatalf("granted %d restarts with max %d", granted, maxAttempts)
					}
				} else if granted < maxAttempts {
					t.Fatalf("refused restart %d with max %d and no exhaust", granted+1, maxAttempts)
				}
			case 1:
				b.Reset()
				granted = 0
			case 2:
				b.Exhaust()
				granted = maxAttempts
			}
		}
	})
}
