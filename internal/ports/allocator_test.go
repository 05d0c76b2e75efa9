package ports

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeAllocator returns an allocator whose probe consults the given set of
// occupied ports instead of binding real listeners.
func fakeAllocator(occupied map[uint16]bool) *Allocator {
	return &Allocator{
		logger: zap.NewNop(),
		probe:  func(port uint16) bool { return !occupied[port] },
	}
}

func TestAllocatePreferredPortsFree(t *testing.T) {
	a := fakeAllocator(nil)

	pair, err := a.Allocate(7860, 7861)
	require.NoError(t, err)
	assert.Equal(t, Pair{Primary: 7860, Control: 7861}, pair)
}

func TestAllocatePrimaryOccupied(t *testing.T) {
	// Primary search continues past the occupied port; control search
	// starts above the chosen primary.
	a := fakeAllocator(map[uint16]bool{7860: true})

	pair, err := a.Allocate(7860, 7861)
	require.NoError(t, err)
	assert.Equal(t, Pair{Primary: 7861, Control: 7862}, pair)
}

func TestAllocatePicksLowestFree(t *testing.T) {
	a := fakeAllocator(map[uint16]bool{7860: true, 7861: true, 7862: true})

	pair, err := a.Allocate(7860, 7861)
	require.NoError(t, err)
	assert.Equal(t, uint16(7863), pair.Primary)
	assert.Equal(t, uint16(7864), pair.Control)
}

func TestAllocateControlAvoidsPrimary(t *testing.T) {
	// Preferred control below the chosen primary must be skipped.
	a := fakeAllocator(nil)

	pair, err := a.Allocate(7870, 7800)
	require.NoError(t, err)
	assert.Equal(t, uint16(7870), pair.Primary)
	assert.Equal(t, uint16(7871), pair.Control)
}

func TestAllocateWindowExhausted(t *testing.T) {
	occupied := make(map[uint16]bool)
	for p := uint16(7860); p <= 7870; p++ {
		occupied[p] = true
	}
	a := fakeAllocator(occupied)

	_, err := a.Allocate(7860, 7861)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoAvailablePort))
}

func TestAllocateControlWindowExhausted(t *testing.T) {
	occupied := make(map[uint16]bool)
	for p := uint16(7861); p <= 7871; p++ {
		occupied[p] = true
	}
	a := fakeAllocator(occupied)

	_, err := a.Allocate(7860, 7861)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoAvailablePort))
}

func TestAllocateRealListeners(t *testing.T) {
	// End-to-end probe against the real network stack: occupy a port with
	// a throwaway listener and verify the allocator steps over it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	busy := uint16(ln.Addr().(*net.TCPAddr).Port)
	if busy > 65500 {
		t.Skipf("ephemeral port %d leaves no room for the probe window", busy)
	}

	a := NewAllocator(zap.NewNop())
	pair, err := a.Allocate(busy, busy+1)
	require.NoError(t, err)
	assert.NotEqual(t, busy, pair.Primary)
	assert.Greater(t, pair.Control, pair.Primary)

	// Both returned ports must actually bind.
	for _, port := range []uint16{pair.Primary, pair.Control} {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		require.NoError(t, err)
		_ = l.Close()
	}
}
