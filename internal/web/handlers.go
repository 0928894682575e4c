package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/svmdrive/internal/debug"
	"github.com/cjeanneret/svmdrive/internal/logic/drive"
)

// sendTimeout bounds how long a request waits for room in the command queue.
const sendTimeout = time.Second

// Drive is the part of drive.Controller the handlers use.
type Drive interface {
	Send(ctx context.Context, cmd drive.Command) error
	Snapshot() drive.Telemetry
}

// DriveInfo describes the running drive for GET /config.
type DriveInfo struct {
	Precision      int     `json:"precision"`
	ScaleMax       uint16  `json:"scale_max"`
	Table          string  `json:"table"`
	PWMBackend     string  `json:"pwm_backend"`
	PWMFrequencyHz int     `json:"pwm_frequency_hz"`
	TickMs         int     `json:"tick_ms"`
	SpeedDegS      float64 `json:"speed_deg_s"`
	Modulation     float64 `json:"modulation"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Drive       Drive
	Info        DriveInfo
	staticFS    fs.FS
	upgrader    websocket.Upgrader
}

// NewHandlers creates handlers. With a nil drive, command and state
// endpoints answer 503.
func NewHandlers(broadcaster *StatusBroadcaster, d Drive, info DriveInfo, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Drive:       d,
		Info:        info,
		staticFS:    staticFS,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HandleConfig returns the drive configuration as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Info)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleState returns the last telemetry snapshot.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	if h.Drive == nil {
		http.Error(w, "drive not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, h.Drive.Snapshot())
}

// HandleCommand queues a JSON command: {"type":"speed","value":360}.
func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd drive.Command
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&cmd); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if h.Drive == nil {
		http.Error(w, "drive not configured", http.StatusServiceUnavailable)
		return
	}
	if status, err := h.send(r.Context(), cmd); err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "command": cmd.String()})
}

func (h *Handlers) send(ctx context.Context, cmd drive.Command) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	err := h.Drive.Send(ctx, cmd)
	switch {
	case err == nil:
		h.Broadcaster.BroadcastMsg("Command " + cmd.String())
		return http.StatusAccepted, nil
	case errors.Is(err, drive.ErrInvalidCommand):
		return http.StatusBadRequest, err
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errors.New("command queue full")
	default:
		return http.StatusInternalServerError, err
	}
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// HandleWebSocket streams events as JSON text frames and accepts commands
// sent back by the browser in the POST /command format.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Error(fmt.Errorf("websocket upgrade: %w", err))
		return
	}
	defer ws.Close()

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			var cmd drive.Command
			if err := ws.ReadJSON(&cmd); err != nil {
				return
			}
			if h.Drive == nil {
				continue
			}
			if _, err := h.send(r.Context(), cmd); err != nil {
				h.Broadcaster.Broadcast(LevelError, fmt.Sprintf("command %s: %v", cmd, err))
			}
		}
	}()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := ws.WriteJSON(json.RawMessage(msg)); err != nil {
				debug.Trace("websocket write: %v", err)
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
