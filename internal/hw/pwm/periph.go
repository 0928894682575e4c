package pwm

import (
	"fmt"
	"strconv"

	"github.com/cjeanneret/svmdrive/internal/debug"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// PeriphDriver drives the phases through periph.io, which covers sysfs PWM
// and the Raspberry Pi DMA engine.
type PeriphDriver struct {
	lookup func(name string) gpio.PinIO
	pins   [Channels]gpio.PinIO
	period uint16
	freq   physic.Frequency
}

// NewPeriphDriver initializes the periph host drivers.
func NewPeriphDriver() (*PeriphDriver, error) {
	debug.Info("Initializing real PWM driver (periph.io)")
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	debug.Verbose("periph drivers loaded: %d", len(state.Loaded))
	return newPeriphDriver(gpioreg.ByName), nil
}

func newPeriphDriver(lookup func(name string) gpio.PinIO) *PeriphDriver {
	return &PeriphDriver{lookup: lookup}
}

func (d *PeriphDriver) Setup(pins [Channels]int, period uint16, freqHz int) error {
	if period == 0 {
		return fmt.Errorf("pwm period must be > 0")
	}
	if freqHz <= 0 {
		return fmt.Errorf("pwm frequency must be > 0, got %d", freqHz)
	}
	for ch, pin := range pins {
		p := d.lookup(strconv.Itoa(pin))
		if p == nil {
			return fmt.Errorf("gpio %d not found", pin)
		}
		debug.PWM("Setup", pin, p.Name())
		d.pins[ch] = p
	}
	d.period = period
	d.freq = physic.Frequency(freqHz) * physic.Hertz
	return nil
}

// dutyOf scales a count in [0, period] to the periph duty range.
func dutyOf(duty, period uint16) gpio.Duty {
	return gpio.Duty(uint64(duty) * uint64(gpio.DutyMax) / uint64(period))
}

func (d *PeriphDriver) SetDuty(ch int, duty uint16) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	p := d.pins[ch]
	if p == nil {
		return fmt.Errorf("pwm driver not set up")
	}
	if duty > d.period {
		return fmt.Errorf("duty %d above period %d", duty, d.period)
	}
	debug.PWM("SetDuty", ch, duty)
	if err := p.PWM(dutyOf(duty, d.period), d.freq); err != nil {
		return fmt.Errorf("pwm %s: %w", p.Name(), err)
	}
	return nil
}

func (d *PeriphDriver) Close() error {
	debug.Trace("PWM Close (periph)")
	var err error
	for _, p := range d.pins {
		if p == nil {
			continue
		}
		err = multierr.Append(err, p.Out(gpio.Low))
		err = multierr.Append(err, p.Halt())
	}
	return err
}
