package drive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/svmdrive/internal/hw/pwm"
	"go.uber.org/multierr"
)

// recordingDriver records PWM writes for verification.
type recordingDriver struct {
	mu     sync.Mutex
	writes []dutyWrite
	fail   error
}

type dutyWrite struct {
	ch   int
	duty uint16
}

func (d *recordingDriver) Setup(pins [pwm.Channels]int, period uint16, freqHz int) error {
	return nil
}

func (d *recordingDriver) SetDuty(ch int, duty uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	d.writes = append(d.writes, dutyWrite{ch: ch, duty: duty})
	return nil
}

func (d *recordingDriver) Close() error { return nil }

// lastDuties returns the most recent duty of each channel.
func (d *recordingDriver) lastDuties() [3]uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out [3]uint16
	for _, w := range d.writes {
		out[w.ch] = w.duty
	}
	return out
}

func (d *recordingDriver) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

// P8 at 1 ms: 117.1875 deg/s is half an increment per tick.
const halfStepSpeed = 117.1875

func newController(t *testing.T, opts Options) (*Controller, *recordingDriver) {
	t.Helper()
	mod, err := NewModulator(8, 1000, false)
	if err != nil {
		t.Fatalf("NewModulator: %v", err)
	}
	drv := &recordingDriver{}
	if opts.Tick == 0 {
		opts.Tick = time.Millisecond
	}
	c, err := New(mod, drv, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, drv
}

func TestTickWritesDuties(t *testing.T) {
	c, drv := newController(t, Options{Modulation: 1})
	if err := c.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if drv.count() != 3 {
		t.Fatalf("writes = %d, want 3", drv.count())
	}
	if got := drv.lastDuties(); got != [3]uint16{67, 67, 933} {
		t.Errorf("duties = %v, want [67 67 933]", got)
	}
}

func TestStartAngle(t *testing.T) {
	c, drv := newController(t, Options{Modulation: 1, StartAngleDeg: 73})
	if err := c.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if got := drv.lastDuties(); got != [3]uint16{22, 978, 755} {
		t.Errorf("duties = %v, want [22 978 755]", got)
	}
}

func TestFractionalSpeedAccumulates(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		ticks int
		want  int32
	}{
		{"forward half step", halfStepSpeed, 4, 2},
		{"forward odd ticks", halfStepSpeed, 5, 2},
		{"reverse half step", -halfStepSpeed, 4, 1534},
		{"whole steps", 4 * halfStepSpeed, 3, 6},
		{"stopped", 0, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newController(t, Options{SpeedDegS: tt.speed, Modulation: 0.5, TelemetryEvery: 1})
			for i := 0; i < tt.ticks; i++ {
				if err := c.Tick(); err != nil {
					t.Fatalf("Tick: %v", err)
				}
			}
			if got := c.Snapshot().ElecAngle; got != tt.want {
				t.Errorf("ElecAngle = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCommands(t *testing.T) {
	ctx := context.Background()
	c, drv := newController(t, Options{Modulation: 1, TelemetryEvery: 1})

	if err := c.Send(ctx, Command{Type: CmdAngle, Value: 73}); err != nil {
		t.Fatalf("Send angle: %v", err)
	}
	if err := c.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if got := drv.lastDuties(); got != [3]uint16{22, 978, 755} {
		t.Errorf("duties after angle = %v, want [22 978 755]", got)
	}

	if err := c.Send(ctx, Command{Type: CmdSpeed, Value: 2 * halfStepSpeed}); err != nil {
		t.Fatalf("Send speed: %v", err)
	}
	if err := c.Send(ctx, Command{Type: CmdModulation, Value: 0.25}); err != nil {
		t.Fatalf("Send modulation: %v", err)
	}
	if err := c.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	snap := c.Snapshot()
	if snap.ElecAngle != 312 {
		t.Errorf("ElecAngle = %d, want 312", snap.ElecAngle)
	}
	if snap.Modulation != 0.25 || snap.SpeedDegS != 2*halfStepSpeed {
		t.Errorf("snapshot = %+v", snap)
	}

	if err := c.Send(ctx, Command{Type: CmdStop}); err != nil {
		t.Fatalf("Send stop: %v", err)
	}
	if err := c.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if got := drv.lastDuties(); got != [3]uint16{500, 500, 500} {
		t.Errorf("duties after stop = %v, want all 500", got)
	}
	if got := c.Snapshot().ElecAngle; got != 312 {
		t.Errorf("angle moved after stop: %d", got)
	}
}

func TestSendRejectsInvalid(t *testing.T) {
	c, _ := newController(t, Options{})
	cases := []Command{
		{Type: CmdModulation, Value: 1.5},
		{Type: CmdModulation, Value: -0.1},
		{Type: CmdSpeed, Value: 1e9},
		{Type: "warp", Value: 1},
	}
	for _, cmd := range cases {
		if err := c.Send(context.Background(), cmd); !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("Send(%v) err = %v, want ErrInvalidCommand", cmd, err)
		}
	}
}

func TestSendHonoursContext(t *testing.T) {
	c, _ := newController(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var err error
	// Fill the queue; once full, Send must return the context error.
	for i := 0; i < 100 && err == nil; i++ {
		err = c.Send(ctx, Command{Type: CmdStop})
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Send on full queue err = %v, want context.Canceled", err)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	mod, err := NewModulator(8, 1000, false)
	if err != nil {
		t.Fatalf("NewModulator: %v", err)
	}
	if _, err := New(mod, &recordingDriver{}, Options{}); err == nil {
		t.Error("New without tick succeeded, want error")
	}
	if _, err := New(mod, &recordingDriver{}, Options{Tick: time.Millisecond, Modulation: 2}); err == nil {
		t.Error("New with modulation 2 succeeded, want error")
	}
}

func TestTelemetryEvery(t *testing.T) {
	c, _ := newController(t, Options{TelemetryEvery: 2})
	var got []uint64
	c.AddSink(SinkFunc(func(tel Telemetry) { got = append(got, tel.Tick) }))
	for i := 0; i < 5; i++ {
		if err := c.Tick(); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	if len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Errorf("telemetry ticks = %v, want [2 4]", got)
	}
}

func TestTickCombinesDriverErrors(t *testing.T) {
	c, drv := newController(t, Options{})
	drv.fail = errors.New("bus fault")
	err := c.Tick()
	if got := len(multierr.Errors(err)); got != 3 {
		t.Errorf("Tick returned %d errors, want 3: %v", got, err)
	}
}

func TestRunCentersOnCancel(t *testing.T) {
	c, drv := newController(t, Options{SpeedDegS: 360, Modulation: 1, TelemetryEvery: 5})
	ctx, cancel := context.WithCancel(context.Background())
	ticked := make(chan struct{}, 1)
	c.AddSink(SinkFunc(func(Telemetry) {
		select {
		case ticked <- struct{}{}:
		default:
		}
	}))

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-ticked:
	case <-time.After(5 * time.Second):
		t.Fatal("no telemetry within 5s")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := drv.lastDuties(); got != [3]uint16{500, 500, 500} {
		t.Errorf("duties after Run = %v, want all 500", got)
	}
	if snap := c.Snapshot(); snap.SpeedDegS != 0 || snap.Modulation != 0 {
		t.Errorf("snapshot after Run = %+v, want stopped", snap)
	}
}

func TestNewModulator(t *testing.T) {
	for p := 3; p <= 12; p++ {
		for _, rom := range []bool{false, true} {
			m, err := NewModulator(p, 1000, rom)
			if err != nil {
				t.Fatalf("NewModulator(%d, rom=%v): %v", p, rom, err)
			}
			if want := 60.0 / float64(int(1)<<p); m.AnglePrecision() != want {
				t.Errorf("P%d AnglePrecision() = %v, want %v", p, m.AnglePrecision(), want)
			}
		}
	}
	if _, err := NewModulator(13, 1000, false); err == nil {
		t.Error("NewModulator(13) succeeded, want error")
	}
	if _, err := NewModulator(8, 0, true); err == nil {
		t.Error("NewModulator with zero scale succeeded, want error")
	}
}
