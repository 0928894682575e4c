// Package gate controls the gate driver of the power stage: an enable
// output that arms the bridge and an active-low fault input.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/cjeanneret/svmdrive/internal/debug"
)

// ErrFault is returned by WatchFault when the gate driver reports a fault.
var ErrFault = errors.New("gate driver fault")

// Gate is the gate driver interface. Pins use the backend's numbering; a
// fault pin of 0 means the board has none.
type Gate interface {
	Setup(enablePin, faultPin int) error
	Enable(on bool) error
	Fault() (bool, error)
	Close() error
}

// New creates a gate for the named backend ("mock" or "rpio").
func New(backend string) (Gate, error) {
	switch backend {
	case "", "mock":
		debug.Info("Using MOCK gate driver (development mode)")
		return NewMock(), nil
	case "rpio":
		return NewRPiGate()
	}
	return nil, fmt.Errorf("unknown gate backend %q", backend)
}

// WatchFault polls g every interval until ctx is done. It disables the
// stage and returns ErrFault as soon as a fault shows up.
func WatchFault(ctx context.Context, g Gate, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		fault, err := g.Fault()
		if err != nil {
			return fmt.Errorf("read fault pin: %w", err)
		}
		if fault {
			if err := g.Enable(false); err != nil {
				return multierr.Append(ErrFault, err)
			}
			return ErrFault
		}
	}
}

// Mock logs actions and lets tests raise a fault.
type Mock struct {
	mu      sync.Mutex
	enable  int
	fault   int
	enabled bool
	faulted bool
	closed  bool
}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Setup(enablePin, faultPin int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	debug.GPIO("Setup", enablePin, fmt.Sprintf("fault=%d", faultPin))
	m.enable, m.fault = enablePin, faultPin
	return nil
}

func (m *Mock) Enable(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("gate closed")
	}
	debug.GPIO("Enable", m.enable, on)
	m.enabled = on
	return nil
}

func (m *Mock) Fault() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.faulted, nil
}

// SetFault drives the simulated fault line.
func (m *Mock) SetFault(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faulted = on
}

// Enabled reports whether the stage is armed.
func (m *Mock) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	debug.Trace("Gate Close (mock)")
	m.enabled = false
	m.closed = true
	return nil
}
