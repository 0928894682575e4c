package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/cjeanneret/svmdrive/internal/config"
	"github.com/cjeanneret/svmdrive/internal/debug"
	"github.com/cjeanneret/svmdrive/internal/hw/bridge"
	"github.com/cjeanneret/svmdrive/internal/hw/gate"
	"github.com/cjeanneret/svmdrive/internal/hw/pwm"
	"github.com/cjeanneret/svmdrive/internal/logic/drive"
	"github.com/cjeanneret/svmdrive/internal/remote"
	"github.com/cjeanneret/svmdrive/internal/web"
)

func main() {
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	speed := flag.Float64("speed", 0, "override drive speed in electrical degrees per second")
	modulation := flag.Float64("modulation", 0, "override modulation index (0-1)")
	duration := flag.Duration("duration", 0, "stop after this long; 0 runs until interrupted")
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	ov := overrides{}
	if set["speed"] {
		ov.speed = speed
	}
	if set["modulation"] {
		ov.modulation = modulation
	}
	if err := validateCLIOverrides(ov); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, ov)

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	if err := run(ctx, cfg, webPort.port()); err != nil {
		log.Fatalf("svmdrive: %v", err)
	}
}

// run builds the drive from cfg, starts every configured link, arms the
// power stage and blocks until ctx is done or a link fails. The stage is
// disarmed before the PWM driver closes.
func run(ctx context.Context, cfg *config.Config, webPort int) (err error) {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	debug.Step(1, "Initializing PWM driver")
	debug.Value("PWM backend", cfg.Defaults.PWMBackend)
	drv, err := pwm.NewDriver(cfg.Defaults.PWMBackend)
	if err != nil {
		return fmt.Errorf("init PWM failed: %w", err)
	}
	closers = append(closers, drv)
	if err := drv.Setup(cfg.Motor.Pins.Array(), cfg.ScaleMax(), cfg.Motor.PWMFrequencyHz); err != nil {
		return fmt.Errorf("setup PWM failed: %w", err)
	}
	debug.PrintStruct("Motor config", cfg.Motor)

	debug.Value("Gate backend", cfg.Gate.Backend)
	stage, err := gate.New(cfg.Gate.Backend)
	if err != nil {
		return fmt.Errorf("init gate driver failed: %w", err)
	}
	closers = append(closers, stage)
	if err := stage.Setup(cfg.Gate.EnablePin, cfg.Gate.FaultPin); err != nil {
		return fmt.Errorf("setup gate driver failed: %w", err)
	}

	debug.Step(2, "Building modulator")
	mod, err := drive.NewModulator(cfg.Motor.Precision, cfg.ScaleMax(), cfg.Motor.Table == config.TableROM)
	if err != nil {
		return fmt.Errorf("build modulator failed: %w", err)
	}
	ctrl, err := drive.New(mod, drv, drive.Options{
		Tick:           cfg.TickInterval(),
		SpeedDegS:      cfg.Drive.SpeedDegS,
		Modulation:     cfg.Drive.Modulation,
		StartAngleDeg:  cfg.Drive.StartAngleDeg,
		TelemetryEvery: cfg.Drive.TelemetryEvery,
	})
	if err != nil {
		return fmt.Errorf("create controller failed: %w", err)
	}
	debug.PrintStruct("Drive config", cfg.Drive)

	// A failing link stops the whole drive. Every spawned link has returned
	// before the closers run, whichever way run exits.
	var (
		wg     sync.WaitGroup
		errMu  sync.Mutex
		runErr error
	)
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		wg.Wait()
	}()
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errMu.Lock()
				runErr = multierr.Append(runErr, fmt.Errorf("%s: %w", name, err))
				errMu.Unlock()
				cancel()
			}
		}()
	}

	debug.Step(3, "Connecting links")
	if cfg.BridgeEnabled() {
		link, err := bridge.Open(bridge.Config{
			Device:      cfg.Bridge.Device,
			Baud:        cfg.Bridge.Baud,
			ReadTimeout: cfg.ReadTimeout(),
		})
		if err != nil {
			return err
		}
		link.Init()
		closers = append(closers, link)
		ctrl.AddSink(bridgeSink(link))
		spawn("bridge", func(ctx context.Context) error {
			return serveBridgeCommands(ctx, link, ctrl.Send, time.Millisecond)
		})
	}
	if cfg.Remote.MQTTBroker != "" {
		pub, err := remote.NewPublisher(remote.MQTTConfig{
			Broker:       cfg.Remote.MQTTBroker,
			ClientID:     cfg.Remote.MQTTClientID,
			Topic:        cfg.Remote.MQTTTopic,
			WriteTimeout: cfg.MQTTWriteTimeout(),
		})
		if err != nil {
			return err
		}
		closers = append(closers, pub)
		ctrl.AddSink(pub)
	}
	if webPort > 0 {
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
		defer debug.SetOutput(os.Stdout)
		ctrl.AddSink(broadcaster)

		srv, err := web.NewServer(fmt.Sprintf(":%d", webPort), broadcaster, ctrl, driveInfo(cfg))
		if err != nil {
			return err
		}
		spawn("web", srv.Run)
	}
	if cfg.Remote.AMQPURL != "" {
		consumer, err := remote.Dial(cfg.Remote.AMQPURL, cfg.Remote.AMQPExchange)
		if err != nil {
			return err
		}
		closers = append(closers, consumer)
		spawn("amqp", func(ctx context.Context) error {
			return consumer.Run(ctx, ctrl.Send)
		})
	}

	if err := stage.Enable(true); err != nil {
		return fmt.Errorf("arm power stage failed: %w", err)
	}
	spawn("gate", func(ctx context.Context) error {
		return gate.WatchFault(ctx, stage, cfg.GatePoll())
	})

	debug.Section("Running")
	err = ctrl.Run(ctx)
	wg.Wait()
	return multierr.Append(err, runErr)
}

func driveInfo(cfg *config.Config) web.DriveInfo {
	return web.DriveInfo{
		Precision:      cfg.Motor.Precision,
		ScaleMax:       cfg.ScaleMax(),
		Table:          cfg.Motor.Table,
		PWMBackend:     cfg.Defaults.PWMBackend,
		PWMFrequencyHz: cfg.Motor.PWMFrequencyHz,
		TickMs:         cfg.Drive.TickMs,
		SpeedDegS:      cfg.Drive.SpeedDegS,
		Modulation:     cfg.Drive.Modulation,
	}
}

// frameWriter is the transmit side of the serial bridge.
type frameWriter interface {
	WriteFrame(payload []byte) error
}

// bridgeSink streams binary telemetry frames. A full FIFO drops the sample.
func bridgeSink(w frameWriter) drive.Sink {
	return drive.SinkFunc(func(t drive.Telemetry) {
		if err := w.WriteFrame(remote.EncodeTelemetryFrame(t)); err != nil {
			debug.Trace("bridge telemetry: %v", err)
		}
	})
}

// byteReader is the receive side of the serial bridge.
type byteReader interface {
	Read() int
}

// serveBridgeCommands polls the bridge for command frames every interval
// and forwards them to send until ctx is done.
func serveBridgeCommands(ctx context.Context, r byteReader, send remote.CommandHandler, interval time.Duration) error {
	var dec bridge.Decoder
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		for b := r.Read(); b >= 0; b = r.Read() {
			for frame, ok := dec.Feed(byte(b)); ok; frame, ok = dec.Next() {
				cmd, err := remote.DecodeFrameCommand(frame.Payload)
				if err != nil {
					debug.Error(fmt.Errorf("bridge %s: %w", frame, err))
					continue
				}
				if err := send(ctx, cmd); err != nil && !errors.Is(err, context.Canceled) {
					debug.Error(fmt.Errorf("bridge %s rejected: %w", cmd, err))
				}
			}
		}
	}
}

// overrides holds CLI values that replace config. Nil means not given.
type overrides struct {
	speed      *float64
	modulation *float64
}

// validateCLIOverrides checks that the given overrides are usable.
func validateCLIOverrides(o overrides) error {
	if o.speed != nil {
		if math.IsNaN(*o.speed) || math.IsInf(*o.speed, 0) {
			return fmt.Errorf("speed must be finite, got %g", *o.speed)
		}
	}
	if o.modulation != nil {
		m := *o.modulation
		if math.IsNaN(m) || m < 0 || m > 1 {
			return fmt.Errorf("modulation must be between 0 and 1, got %g", m)
		}
	}
	return nil
}

// applyOverrides mutates cfg with the given overrides.
func applyOverrides(cfg *config.Config, o overrides) {
	if o.speed != nil {
		cfg.Drive.SpeedDegS = *o.speed
	}
	if o.modulation != nil {
		cfg.Drive.Modulation = *o.modulation
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
