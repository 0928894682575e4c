package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/svmdrive/internal/logic/drive"
)

// Event levels. LevelTelemetry events carry a snapshot instead of a message.
const (
	LevelInfo      = "info"
	LevelError     = "error"
	LevelTelemetry = "telemetry"
)

// StatusEvent is one message pushed to SSE and WebSocket clients.
type StatusEvent struct {
	Time      string           `json:"t"`
	Level     string           `json:"l,omitempty"`
	Msg       string           `json:"msg,omitempty"`
	Telemetry *drive.Telemetry `json:"telemetry,omitempty"`
}

// StatusBroadcaster fans events out to every connected client. It is also
// a drive.Sink, so the control loop can feed it telemetry directly.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel of JSON encoded events and its cleanup
// function, which the caller must call when the client goes away.
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Subscribers returns the number of connected clients.
func (b *StatusBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *StatusBroadcaster) send(evt StatusEvent) {
	evt.Time = time.Now().Format(time.RFC3339Nano)
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// slow client, drop
		}
	}
}

// Broadcast sends a text message at the given level.
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.send(StatusEvent{Level: level, Msg: msg})
}

// BroadcastMsg is Broadcast at LevelInfo.
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast(LevelInfo, msg)
}

// Publish implements drive.Sink.
func (b *StatusBroadcaster) Publish(t drive.Telemetry) {
	b.send(StatusEvent{Level: LevelTelemetry, Telemetry: &t})
}

// BroadcastWriter adapts the broadcaster to io.Writer so debug output can
// be mirrored to the browser.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			w.b.BroadcastMsg(line)
		}
	}
	return len(p), nil
}
