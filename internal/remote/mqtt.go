package remote

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cjeanneret/svmdrive/internal/debug"
	"github.com/cjeanneret/svmdrive/internal/logic/drive"
)

const (
	// DefaultWriteTimeout bounds one publish on a stalled connection.
	DefaultWriteTimeout = 2 * time.Second
	publishQueue        = 16
)

// MQTTConfig describes the telemetry broker.
type MQTTConfig struct {
	Broker       string // tcp://host:1883
	ClientID     string
	Topic        string
	WriteTimeout time.Duration // 0 means DefaultWriteTimeout
}

// publishClient is the part of mqtt.Client the publisher uses.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher sends drive telemetry as JSON to an MQTT topic. It implements
// drive.Sink: Publish only queues, a background goroutine talks to paho, and
// samples that find the queue full are dropped.
type Publisher struct {
	client  publishClient
	topic   string
	wait    time.Duration
	queue   chan []byte
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

func clientOptions(cfg MQTTConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetOrderMatters(false)
	opts.SetWriteTimeout(writeTimeout(cfg))
	opts.OnConnect = func(mqtt.Client) {
		debug.Info("MQTT connected to %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		debug.Error(fmt.Errorf("mqtt connection lost: %w", err))
	}
	return opts
}

func writeTimeout(cfg MQTTConfig) time.Duration {
	if cfg.WriteTimeout <= 0 {
		return DefaultWriteTimeout
	}
	return cfg.WriteTimeout
}

// NewPublisher connects to the broker. Reconnects are left to paho.
func NewPublisher(cfg MQTTConfig) (*Publisher, error) {
	client := mqtt.NewClient(clientOptions(cfg))
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// SetConnectRetry keeps trying in the background.
		debug.Info("MQTT broker %s not reachable yet, retrying in background", cfg.Broker)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	return newPublisher(client, cfg.Topic, writeTimeout(cfg)), nil
}

func newPublisher(c publishClient, topic string, wait time.Duration) *Publisher {
	p := &Publisher{
		client: c,
		topic:  topic,
		wait:   wait,
		queue:  make(chan []byte, publishQueue),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

// Publish implements drive.Sink. It never blocks.
func (p *Publisher) Publish(t drive.Telemetry) {
	select {
	case <-p.quit:
		return
	default:
	}
	payload, err := EncodeTelemetryJSON(t)
	if err != nil {
		debug.Error(fmt.Errorf("mqtt: encode telemetry: %w", err))
		return
	}
	select {
	case p.queue <- payload:
	default:
		n := p.dropped.Add(1)
		debug.Trace("MQTT %s queue full, tick %d dropped (%d total)", p.topic, t.Tick, n)
	}
}

// Dropped returns how many samples found the queue full.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

func (p *Publisher) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.quit:
			return
		case payload := <-p.queue:
			p.send(payload)
		}
	}
}

func (p *Publisher) send(payload []byte) {
	token := p.client.Publish(p.topic, 0, false, payload)
	if !token.WaitTimeout(p.wait) {
		debug.Trace("MQTT %s publish timed out after %s", p.topic, p.wait)
		return
	}
	if err := token.Error(); err != nil {
		debug.Trace("MQTT %s publish: %v", p.topic, err)
		return
	}
	debug.Trace("MQTT %s <- %d bytes", p.topic, len(payload))
}

// Close stops the queue, abandoning samples not yet handed to paho, and
// disconnects with 250ms for in-flight messages. It waits at most one write
// timeout for a publish already in progress.
func (p *Publisher) Close() error {
	p.once.Do(func() {
		close(p.quit)
		<-p.done
		p.client.Disconnect(250)
	})
	return nil
}
