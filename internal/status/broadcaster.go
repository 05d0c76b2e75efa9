package status

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"mnesis-launcher/internal/ports"
)

// Snapshot is what subscribers receive: the derived status plus the
// negotiated ports the UI needs to address the backend. Ports are zero
// until the first successful spawn and constant afterwards.
type Snapshot struct {
	Status           Status    `json:"status"`
	PrimaryPort      uint16    `json:"primary_port"`
	ControlPort      uint16    `json:"control_port"`
	PendingConflicts int       `json:"pending_conflicts,omitempty"`
	Since            time.Time `json:"since"`
	LastEvent        EventType `json:"last_event,omitempty"`
}

// Broadcaster holds the current status and pushes snapshots to attached
// indicators (tray, UI event stream). All mutation goes through Apply,
// SetPorts, and SetPendingConflicts.
type Broadcaster struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	base    Status
	since   time.Time
	last    EventType
	pair    ports.Pair
	pending int
	subs    map[int]chan Snapshot
	nextSub int
}

// NewBroadcaster starts in the starting (yellow) state; the supervisor
// emits EventSpawnStarted the instant the first spawn begins anyway.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		logger: logger,
		base:   StatusStarting,
		since:  time.Now(),
		subs:   make(map[int]chan Snapshot),
	}
}

// Apply folds an event into the current status via the pure transition
// function and notifies subscribers when the derived status changed.
func (b *Broadcaster) Apply(event EventType) {
	b.mu.Lock()
	prev := b.derivedLocked()
	next := Next(b.base, event)
	if next != b.base {
		b.base = next
		b.since = time.Now()
	}
	b.last = event
	changed := b.derivedLocked() != prev
	snap := b.snapshotLocked()
	b.mu.Unlock()

	b.logger.Info("Status event",
		zap.String("event", string(event)),
		zap.String("status", string(snap.Status)))

	if changed {
		b.publish(snap)
	}
}

// SetPorts records the negotiated port pair. Called once, right after the
// first successful spawn.
func (b *Broadcaster) SetPorts(pair ports.Pair) {
	b.mu.Lock()
	b.pair = pair
	snap := b.snapshotLocked()
	b.mu.Unlock()
	b.publish(snap)
}

// SetPendingConflicts updates the externally reported user-attention count.
// The count only surfaces while ready; it never participates in the
// crash/restart transitions.
func (b *Broadcaster) SetPendingConflicts(n int) {
	b.mu.Lock()
	prev := b.derivedLocked()
	b.pending = n
	changed := b.derivedLocked() != prev
	snap := b.snapshotLocked()
	b.mu.Unlock()
	if changed {
		b.publish(snap)
	}
}

// Current returns the latest snapshot.
func (b *Broadcaster) Current() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked()
}

// Ports answers the UI's synchronous port query.
func (b *Broadcaster) Ports() ports.Pair {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pair
}

// Subscribe returns a buffered snapshot channel and a cancel function.
// Slow subscribers drop updates rather than blocking the supervisor.
func (b *Broadcaster) Subscribe() (<-chan Snapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSub
	b.nextSub++
	ch := make(chan Snapshot, 16)
	ch <- b.snapshotLocked()
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (b *Broadcaster) publish(snap Snapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// derivedLocked applies the conflict overlay on top of the base status.
func (b *Broadcaster) derivedLocked() Status {
	if b.base == StatusReady && b.pending > 0 {
		return StatusConflict
	}
	return b.base
}

func (b *Broadcaster) snapshotLocked() Snapshot {
	return Snapshot{
		Status:           b.derivedLocked(),
		PrimaryPort:      b.pair.Primary,
		ControlPort:      b.pair.Control,
		PendingConflicts: b.pending,
		Since:            b.since,
		LastEvent:        b.last,
	}
}
