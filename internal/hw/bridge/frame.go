package bridge

import (
	"bytes"
	"errors"
	"fmt"
)

// Frame layout: sync, seq, len, payload[len], crc16 (big endian). The CRC
// covers seq, len and the payload.
const (
	FrameSync       = 0x7E
	frameHeader     = 3
	frameTrailer    = 2
	MaxFramePayload = 255
)

var errPayloadTooLong = errors.New("bridge: payload longer than 255 bytes")

// CRC16 is the CCITT variant used by Klipper, initial value 0xFFFF.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b = b ^ uint8(crc&0xFF)
		b = b ^ (b << 4)
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}

// Frame is one decoded message.
type Frame struct {
	Seq     byte
	Payload []byte
}

// EncodeFrame wraps payload in a frame.
func EncodeFrame(seq byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxFramePayload {
		return nil, errPayloadTooLong
	}
	out := make([]byte, 0, frameHeader+len(payload)+frameTrailer)
	out = append(out, FrameSync, seq, byte(len(payload)))
	out = append(out, payload...)
	crc := CRC16(out[1:])
	return append(out, byte(crc>>8), byte(crc)), nil
}

// Decoder reassembles frames from a byte stream. Bytes before a sync byte
// and frames with a bad CRC are dropped. A sync byte inside a broken or
// partial header does not hide the frames behind it: while the frame at the
// head of the buffer is incomplete, any complete frame with a valid CRC
// starting at a later sync byte wins.
type Decoder struct {
	buf     []byte
	dropped int
}

// Feed adds one byte and returns a frame when it completes one. When it
// returns true, call Next until it returns false to collect frames that
// were already buffered behind it.
func (d *Decoder) Feed(b byte) (Frame, bool) {
	d.buf = append(d.buf, b)
	return d.Next()
}

// Next returns the next complete frame already in the buffer.
func (d *Decoder) Next() (Frame, bool) {
	for {
		i := bytes.IndexByte(d.buf, FrameSync)
		if i < 0 {
			d.drop(len(d.buf))
			return Frame{}, false
		}
		d.drop(i)

		total, complete := frameAt(d.buf)
		if !complete {
			return d.lookAhead()
		}
		if f, ok := checkFrame(d.buf[:total]); ok {
			d.shift(total)
			return f, true
		}
		// bad CRC: the sync byte was noise, rescan after it
		d.drop(1)
	}
}

// lookAhead searches past an incomplete head frame for a complete valid one.
func (d *Decoder) lookAhead() (Frame, bool) {
	for j := 1; j < len(d.buf); j++ {
		if d.buf[j] != FrameSync {
			continue
		}
		total, complete := frameAt(d.buf[j:])
		if !complete {
			continue
		}
		if f, ok := checkFrame(d.buf[j : j+total]); ok {
			d.drop(j)
			d.shift(total)
			return f, true
		}
	}
	return Frame{}, false
}

// drop discards the first n buffered bytes and counts them.
func (d *Decoder) drop(n int) {
	d.dropped += n
	d.shift(n)
}

// shift removes the first n buffered bytes.
func (d *Decoder) shift(n int) {
	if n > 0 {
		d.buf = append(d.buf[:0], d.buf[n:]...)
	}
}

// frameAt returns the length of the frame starting at buf[0] and whether
// buf holds all of it.
func frameAt(buf []byte) (int, bool) {
	if len(buf) < frameHeader {
		return 0, false
	}
	total := frameHeader + int(buf[2]) + frameTrailer
	return total, len(buf) >= total
}

func checkFrame(frame []byte) (Frame, bool) {
	total := len(frame)
	body := frame[1 : total-frameTrailer]
	want := uint16(frame[total-2])<<8 | uint16(frame[total-1])
	if CRC16(body) != want {
		return Frame{}, false
	}
	payload := make([]byte, len(body)-2)
	copy(payload, body[2:])
	return Frame{Seq: body[0], Payload: payload}, true
}

// Dropped returns the number of bytes discarded so far.
func (d *Decoder) Dropped() int { return d.dropped }

func (f Frame) String() string {
	return fmt.Sprintf("frame seq=%d len=%d", f.Seq, len(f.Payload))
}
