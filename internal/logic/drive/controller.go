// Package drive runs the open-loop rotation of one motor: it advances the
// electrical angle at a commanded speed, recomputes the SVM duties and writes
// them to the PWM driver on every tick.
package drive

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cjeanneret/svmdrive/internal/debug"
	"github.com/cjeanneret/svmdrive/internal/hw/pwm"
	"github.com/cjeanneret/svmdrive/internal/logic/fixed"
	"github.com/cjeanneret/svmdrive/internal/logic/svm"
	"go.uber.org/multierr"
)

// velocity is in angle increments per tick.
type velocity = fixed.Value[int32, fixed.Q16]

// MaxIncrementsPerTick bounds the commanded speed so the Q16 accumulator
// cannot overflow.
const MaxIncrementsPerTick = 16383

// Telemetry is a snapshot of the drive published to sinks.
type Telemetry struct {
	Tick       uint64    `json:"tick"`
	Time       time.Time `json:"time"`
	SpeedDegS  float64   `json:"speed_deg_s"`
	Modulation float64   `json:"modulation"`
	svm.State
}

// Sink receives telemetry from the control loop. Publish must not block.
type Sink interface {
	Publish(Telemetry)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Telemetry)

func (f SinkFunc) Publish(t Telemetry) { f(t) }

// Options holds the loop parameters.
type Options struct {
	Tick           time.Duration
	SpeedDegS      float64
	Modulation     float64
	StartAngleDeg  float64
	TelemetryEvery int
}

// Controller owns one modulator and one PWM driver. The modulator is only
// touched by the goroutine calling Tick or Run; other goroutines talk to it
// through Send and read it through Snapshot.
type Controller struct {
	mod      Modulator
	pwm      pwm.Driver
	period   time.Duration
	every    uint64
	commands chan Command

	mu    sync.Mutex
	sinks []Sink
	last  Telemetry

	// owned by the loop goroutine
	speed      float64
	vel        velocity
	acc        velocity
	modulation fixed.Fxp
	tick       uint64
}

// New returns a controller. The PWM driver must already be set up with a
// period equal to the modulator's ScaleMax.
func New(mod Modulator, drv pwm.Driver, opts Options) (*Controller, error) {
	if opts.Tick <= 0 {
		return nil, errors.New("drive: tick must be > 0")
	}
	if opts.TelemetryEvery <= 0 {
		opts.TelemetryEvery = 1
	}
	c := &Controller{
		mod:      mod,
		pwm:      drv,
		period:   opts.Tick,
		every:    uint64(opts.TelemetryEvery),
		commands: make(chan Command, 16),
	}
	if err := (Command{Type: CmdModulation, Value: opts.Modulation}).Validate(); err != nil {
		return nil, err
	}
	if err := c.checkSpeed(opts.SpeedDegS); err != nil {
		return nil, err
	}
	c.mod.SetAngleDegrees(opts.StartAngleDeg)
	c.setSpeed(opts.SpeedDegS)
	c.modulation = fixed.FromReal[int32, fixed.Q10](opts.Modulation)
	c.mod.Update(c.modulation)
	c.last = c.telemetry()
	return c, nil
}

// AddSink registers a telemetry receiver.
func (c *Controller) AddSink(s Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

// Snapshot returns the last published telemetry.
func (c *Controller) Snapshot() Telemetry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Send validates cmd and queues it for the next tick.
func (c *Controller) Send(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if cmd.Type == CmdSpeed {
		if err := c.checkSpeed(cmd.Value); err != nil {
			return err
		}
	}
	select {
	case c.commands <- cmd:
		debug.Live("Command queued: %s", cmd)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) incrementsPerTick(speedDegS float64) float64 {
	return speedDegS * c.period.Seconds() / c.mod.AnglePrecision()
}

func (c *Controller) checkSpeed(speedDegS float64) error {
	if inc := c.incrementsPerTick(speedDegS); math.Abs(inc) > MaxIncrementsPerTick {
		return fmt.Errorf("%w: speed %g deg/s is %.0f increments per tick, limit %d",
			ErrInvalidCommand, speedDegS, inc, MaxIncrementsPerTick)
	}
	return nil
}

func (c *Controller) setSpeed(speedDegS float64) {
	c.speed = speedDegS
	c.vel = fixed.FromReal[int32, fixed.Q16](c.incrementsPerTick(speedDegS))
}

func (c *Controller) apply(cmd Command) {
	debug.Live("Applying command: %s", cmd)
	switch cmd.Type {
	case CmdSpeed:
		c.setSpeed(cmd.Value)
	case CmdModulation:
		c.modulation = fixed.FromReal[int32, fixed.Q10](cmd.Value)
	case CmdAngle:
		c.mod.SetAngleDegrees(cmd.Value)
		c.acc = velocity{}
	case CmdStop:
		c.setSpeed(0)
		c.acc = velocity{}
		c.modulation = fixed.Fxp{}
	}
}

// Tick applies queued commands, advances the angle by one tick worth of
// speed and writes the new duties.
func (c *Controller) Tick() error {
	for drained := false; !drained; {
		select {
		case cmd := <-c.commands:
			c.apply(cmd)
		default:
			drained = true
		}
	}

	c.acc = c.acc.Add(c.vel)
	if delta := c.acc.Floor(); delta != 0 {
		c.mod.Move(int16(delta))
		c.acc = c.acc.Sub(fixed.FromInt[int32, fixed.Q16](delta))
	}

	c.mod.Update(c.modulation)
	err := c.write()

	c.tick++
	if c.tick%c.every == 0 {
		ch := c.mod.Channels()
		debug.Duty(c.tick, ch[0], ch[1], ch[2])
		c.publish()
	}
	return err
}

func (c *Controller) write() error {
	var err error
	for ch, duty := range c.mod.Channels() {
		err = multierr.Append(err, c.pwm.SetDuty(ch, duty))
	}
	return err
}

func (c *Controller) telemetry() Telemetry {
	return Telemetry{
		Tick:       c.tick,
		Time:       time.Now(),
		SpeedDegS:  c.speed,
		Modulation: c.modulation.Real(),
		State:      c.mod.State(),
	}
}

func (c *Controller) publish() {
	t := c.telemetry()
	c.mu.Lock()
	c.last = t
	sinks := append([]Sink(nil), c.sinks...)
	c.mu.Unlock()
	for _, s := range sinks {
		s.Publish(t)
	}
}

// Center drops the modulation to zero, which drives every phase to half the
// period, and writes the result.
func (c *Controller) Center() error {
	c.apply(Command{Type: CmdStop})
	c.mod.Update(c.modulation)
	err := c.write()
	c.publish()
	return err
}

// Run ticks until ctx is done, then centers the phases.
func (c *Controller) Run(ctx context.Context) error {
	debug.Info("Drive loop started (tick %v)", c.period)
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			debug.Info("Drive loop stopping, centering phases")
			return c.Center()
		case <-ticker.C:
			if err := c.Tick(); err != nil {
				debug.Error(fmt.Errorf("tick %d: %w", c.tick, err))
			}
		}
	}
}
