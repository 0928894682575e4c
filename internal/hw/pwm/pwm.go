// Package pwm drives the three phase outputs of a motor power stage.
package pwm

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/svmdrive/internal/debug"
)

// Channels is the number of phase outputs a Driver controls.
const Channels = 3

// Driver defines the abstract interface for the PWM peripheral.
// This allows plugging in real hardware through periph
// or a mock for development on PC.
type Driver interface {
	// Setup configures one output per phase. period is the counter top, so
	// duties passed to SetDuty range over [0, period].
	Setup(pins [Channels]int, period uint16, freqHz int) error
	SetDuty(ch int, duty uint16) error
	Close() error
}

// NewDriver creates a PWM driver for the named backend ("mock" or "periph").
func NewDriver(backend string) (Driver, error) {
	switch backend {
	case "", "mock":
		debug.Info("Using MOCK PWM driver (development mode)")
		return NewMockDriver(), nil
	case "periph":
		return NewPeriphDriver()
	}
	return nil, fmt.Errorf("unknown pwm backend %q", backend)
}

func checkChannel(ch int) error {
	if ch < 0 || ch >= Channels {
		return fmt.Errorf("pwm channel %d out of range [0,%d)", ch, Channels)
	}
	return nil
}

// MockDriver logs actions and remembers the last duty of each channel.
// Used for development on PC or testing.
type MockDriver struct {
	mu     sync.Mutex
	pins   [Channels]int
	period uint16
	duties [Channels]uint16
	writes uint64
	closed bool
}

func NewMockDriver() *MockDriver {
	return &MockDriver{}
}

func (m *MockDriver) Setup(pins [Channels]int, period uint16, freqHz int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch, pin := range pins {
		debug.PWM("Setup", pin, fmt.Sprintf("ch=%d period=%d freq=%dHz", ch, period, freqHz))
	}
	m.pins = pins
	m.period = period
	return nil
}

func (m *MockDriver) SetDuty(ch int, duty uint16) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if duty > m.period {
		return fmt.Errorf("duty %d above period %d", duty, m.period)
	}
	debug.PWM("SetDuty", m.pins[ch], duty)
	m.duties[ch] = duty
	m.writes++
	return nil
}

// Duties returns the last duty written to each channel.
func (m *MockDriver) Duties() [Channels]uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duties
}

// Writes returns the number of successful SetDuty calls.
func (m *MockDriver) Writes() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MockDriver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	debug.Trace("PWM Close (mock)")
	m.closed = true
	return nil
}
