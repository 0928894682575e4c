package drive

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCommand wraps every command validation failure.
var ErrInvalidCommand = errors.New("invalid command")

// CommandType selects what a Command changes.
type CommandType string

const (
	CmdSpeed      CommandType = "speed"      // Value: electrical degrees per second
	CmdModulation CommandType = "modulation" // Value: 0.0-1.0
	CmdAngle      CommandType = "angle"      // Value: electrical degrees
	CmdStop       CommandType = "stop"       // Value ignored
)

// Command is a request applied by the control loop on its next tick.
type Command struct {
	Type  CommandType `json:"type"`
	Value float64     `json:"value"`
}

func (c Command) String() string {
	if c.Type == CmdStop {
		return "stop"
	}
	return fmt.Sprintf("%s=%g", c.Type, c.Value)
}

// Validate checks the command on its own. Speed limits depend on the
// controller and are checked by Controller.Send.
func (c Command) Validate() error {
	if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
		return fmt.Errorf("%w: %s value is not finite", ErrInvalidCommand, c.Type)
	}
	switch c.Type {
	case CmdSpeed, CmdAngle, CmdStop:
	case CmdModulation:
		if c.Value < 0 || c.Value > 1 {
			return fmt.Errorf("%w: modulation must be between 0 and 1, got %g", ErrInvalidCommand, c.Value)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCommand, c.Type)
	}
	return nil
}
