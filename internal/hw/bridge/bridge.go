// Package bridge is a buffered, non-blocking byte link to a host over a
// serial port, used to stream diagnostics out of the drive.
package bridge

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cjeanneret/svmdrive/internal/debug"
	"github.com/tarm/serial"
)

const (
	// BufferSize is the size of each direction's FIFO.
	BufferSize  = 512
	DefaultBaud = 57600
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("bridge: closed")

// Config holds serial port configuration.
type Config struct {
	Device      string        // e.g. /dev/ttyUSB0
	Baud        int           // 0 means DefaultBaud
	ReadTimeout time.Duration // 0 blocks
}

// Hardware moves bytes between two FIFOs and a port. Reads and writes never
// block; background goroutines started by Init do the port I/O.
type Hardware struct {
	port io.ReadWriteCloser

	mu     sync.Mutex
	rx     *fifo
	tx     *fifo
	seq    byte
	closed bool

	kick    chan struct{}
	done    chan struct{}
	started bool
	wg      sync.WaitGroup

	errMu sync.Mutex
	err   error
}

// Open opens a serial device with tarm/serial.
func Open(cfg Config) (*Hardware, error) {
	baud := cfg.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	debug.Info("Serial bridge on %s at %d baud", cfg.Device, baud)
	return New(port), nil
}

// New wraps any byte stream.
func New(port io.ReadWriteCloser) *Hardware {
	return &Hardware{
		port: port,
		rx:   newFifo(BufferSize),
		tx:   newFifo(BufferSize),
		kick: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Init starts the receive and transmit pumps. Calling it twice is a no-op.
func (h *Hardware) Init() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started || h.closed {
		return
	}
	h.started = true
	h.wg.Add(2)
	go h.receive()
	go h.transmit()
}

// Read returns the next received byte, or -1 when none is buffered.
func (h *Hardware) Read() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.rx.pop()
	if !ok {
		return -1
	}
	return int(b)
}

// Write queues data for transmission and returns how many bytes fit in the
// transmit FIFO.
func (h *Hardware) Write(data []byte) (int, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0, ErrClosed
	}
	n := h.tx.push(data)
	h.mu.Unlock()

	if n < len(data) {
		debug.Trace("bridge: tx fifo full, dropped %d bytes", len(data)-n)
	}
	h.wake()
	return n, nil
}

// wake nudges the transmit pump without blocking.
func (h *Hardware) wake() {
	select {
	case h.kick <- struct{}{}:
	default:
	}
}

// WriteFrame sends payload as one frame with the next sequence number. The
// frame is dropped whole if it does not fit the transmit FIFO, and a dropped
// frame does not use up a sequence number.
func (h *Hardware) WriteFrame(payload []byte) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	frame, err := EncodeFrame(h.seq, payload)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	if len(frame) > h.tx.free() {
		seq := h.seq
		h.mu.Unlock()
		return fmt.Errorf("bridge: tx fifo full, frame %d dropped", seq)
	}
	h.tx.push(frame)
	h.seq++
	h.mu.Unlock()

	h.wake()
	return nil
}

// Err returns the first port error seen by the pumps.
func (h *Hardware) Err() error {
	h.errMu.Lock()
	defer h.errMu.Unlock()
	return h.err
}

func (h *Hardware) fail(err error) {
	h.errMu.Lock()
	defer h.errMu.Unlock()
	if h.err == nil {
		h.err = err
		debug.Error(fmt.Errorf("bridge: %w", err))
	}
}

func (h *Hardware) isDone() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Hardware) receive() {
	defer h.wg.Done()
	buf := make([]byte, 64)
	for {
		n, err := h.port.Read(buf)
		if n > 0 {
			h.mu.Lock()
			kept := h.rx.push(buf[:n])
			h.mu.Unlock()
			if kept < n {
				debug.Trace("bridge: rx fifo full, dropped %d bytes", n-kept)
			}
		}
		if h.isDone() {
			return
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			// tarm/serial reports a read timeout as EOF.
		default:
			h.fail(err)
			return
		}
	}
}

func (h *Hardware) transmit() {
	defer h.wg.Done()
	buf := make([]byte, BufferSize)
	for {
		select {
		case <-h.done:
			return
		case <-h.kick:
		}
		for {
			h.mu.Lock()
			n := h.tx.drain(buf)
			h.mu.Unlock()
			if n == 0 {
				break
			}
			if _, err := h.port.Write(buf[:n]); err != nil {
				h.fail(err)
				return
			}
		}
	}
}

// Close stops the pumps and closes the port. Bytes still queued are lost.
func (h *Hardware) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	close(h.done)
	err := h.port.Close()
	h.wg.Wait()
	return err
}
