// Package ports negotiates the two loopback TCP ports handed to the
// backend process: the primary REST port and the secondary control port.
package ports

import (
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
)

// probeWindow is the number of consecutive ports tried per role.
const probeWindow = 11

// ErrNoAvailablePort is returned when no port in the probe window binds.
// It is fatal to startup; no backend can be addressed without a port.
var ErrNoAvailablePort = errors.New("no available port in probe window")

// Pair holds the two negotiated ports. It is allocated exactly once per
// session and immutable after the first successful spawn.
type Pair struct {
	Primary uint16 `json:"primary"`
	Control uint16 `json:"control"`
}

// Allocator probes for free loopback ports. The zero value uses net.Listen
// directly; tests may swap the probe function.
type Allocator struct {
	logger *zap.Logger

	// probe attempts to bind the given port and reports whether it is
	// free. Overridable in tests.
	probe func(port uint16) bool
}

// NewAllocator returns an allocator probing real loopback listeners.
func NewAllocator(logger *zap.Logger) *Allocator {
	return &Allocator{
		logger: logger,
		probe:  probeLoopback,
	}
}

// Allocate finds a free primary port in [preferredPrimary,
// preferredPrimary+10] and a free control port starting from
// max(primary+1, preferredControl), same window width. The probe listener
// is released immediately; nothing reserves the port between allocation
// and use by the spawned backend.
func (a *Allocator) Allocate(preferredPrimary, preferredControl uint16) (Pair, error) {
	primary, err := a.findFree(preferredPrimary)
	if err != nil {
		return Pair{}, fmt.Errorf("primary port: %w", err)
	}

	controlStart := preferredControl
	if primary+1 > controlStart {
		controlStart = primary + 1
	}
	control, err := a.findFree(controlStart)
	if err != nil {
		return Pair{}, fmt.Errorf("control port: %w", err)
	}

	if a.logger != nil {
		a.logger.Info("Allocated backend ports",
			zap.Uint16("primary", primary),
			zap.Uint16("control", control))
	}
	return Pair{Primary: primary, Control: control}, nil
}

// findFree returns the lowest free port in [start, start+10].
func (a *Allocator) findFree(start uint16) (uint16, error) {
	for i := 0; i < probeWindow; i++ {
		port := start + uint16(i)
		if a.probe(port) {
			return port, nil
		}
		if a.logger != nil {
			a.logger.Debug("Port occupied, trying next", zap.Uint16("port", port))
		}
	}
	return 0, ErrNoAvailablePort
}

func probeLoopback(port uint16) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
