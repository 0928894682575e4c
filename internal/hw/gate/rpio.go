package gate

import (
	"fmt"

	"github.com/cjeanneret/svmdrive/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// RPiGate drives the gate driver from Raspberry Pi GPIOs using go-rpio.
// The fault input is active low with the internal pull-up enabled.
type RPiGate struct {
	enable   rpio.Pin
	fault    rpio.Pin
	hasFault bool
	setup    bool
}

// NewRPiGate maps the GPIO registers.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
func NewRPiGate() (*RPiGate, error) {
	debug.Info("Initializing real gate driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	debug.Verbose("GPIO memory mapped successfully")
	return &RPiGate{}, nil
}

func (r *RPiGate) Setup(enablePin, faultPin int) error {
	if err := checkPins(enablePin, faultPin); err != nil {
		return err
	}
	debug.GPIO("Setup", enablePin, fmt.Sprintf("fault=%d", faultPin))

	// Disarmed until Enable(true).
	r.enable = rpio.Pin(enablePin)
	r.enable.Output()
	r.enable.Low()

	if faultPin > 0 {
		r.fault = rpio.Pin(faultPin)
		r.fault.Input()
		r.fault.PullUp()
		r.hasFault = true
	}
	r.setup = true
	return nil
}

func (r *RPiGate) Enable(on bool) error {
	if !r.setup {
		return fmt.Errorf("gate not set up")
	}
	debug.GPIO("Enable", int(r.enable), on)
	if on {
		r.enable.High()
	} else {
		r.enable.Low()
	}
	return nil
}

func (r *RPiGate) Fault() (bool, error) {
	if !r.setup {
		return false, fmt.Errorf("gate not set up")
	}
	if !r.hasFault {
		return false, nil
	}
	return r.fault.Read() == rpio.Low, nil
}

func (r *RPiGate) Close() error {
	debug.Trace("Gate Close (real driver)")

	// Disarm, then leave the pins as inputs (safe state)
	if r.setup {
		r.enable.Low()
		r.enable.Input()
		if r.hasFault {
			r.fault.PullOff()
		}
	}
	return rpio.Close()
}

// checkPins validates BCM numbers for the header GPIOs.
func checkPins(enablePin, faultPin int) error {
	if enablePin < 1 || enablePin > 27 {
		return fmt.Errorf("gate enable pin %d is not a header GPIO", enablePin)
	}
	if faultPin < 0 || faultPin > 27 {
		return fmt.Errorf("gate fault pin %d is not a header GPIO", faultPin)
	}
	if faultPin == enablePin {
		return fmt.Errorf("gate enable and fault pins are both %d", enablePin)
	}
	return nil
}
