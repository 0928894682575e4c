// Package remote connects the drive to message brokers: telemetry goes out
// over MQTT and commands come in over an AMQP fanout exchange. The binary
// command encoding is shared with the serial bridge.
package remote

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/cjeanneret/svmdrive/internal/logic/drive"
	"github.com/cjeanneret/svmdrive/internal/logic/fixed"
)

// AMQP content types. Payloads are big endian:
//
//	svm_speed       int32  electrical millidegrees per second
//	svm_modulation  uint16 Q10 fixed point (1024 = 1.0)
//	svm_angle       int32  electrical millidegrees
//	svm_stop        empty
const (
	ContentSpeed      = "application/svm_speed"
	ContentModulation = "application/svm_modulation"
	ContentAngle      = "application/svm_angle"
	ContentStop       = "application/svm_stop"
)

// Command codes prefixing a command payload inside a bridge frame.
const (
	codeSpeed      byte = 1
	codeModulation byte = 2
	codeAngle      byte = 3
	codeStop       byte = 4
)

var codeContent = map[byte]string{
	codeSpeed:      ContentSpeed,
	codeModulation: ContentModulation,
	codeAngle:      ContentAngle,
	codeStop:       ContentStop,
}

// DecodeCommand turns a content type and body into a drive command.
func DecodeCommand(contentType string, body []byte) (drive.Command, error) {
	switch contentType {
	case ContentSpeed:
		if len(body) != 4 {
			return drive.Command{}, fmt.Errorf("%s: want 4 bytes, got %d", contentType, len(body))
		}
		milli := int32(binary.BigEndian.Uint32(body))
		return drive.Command{Type: drive.CmdSpeed, Value: float64(milli) / 1000}, nil
	case ContentModulation:
		if len(body) != 2 {
			return drive.Command{}, fmt.Errorf("%s: want 2 bytes, got %d", contentType, len(body))
		}
		m := fixed.FromRaw[int32, fixed.Q10](int32(binary.BigEndian.Uint16(body)))
		return drive.Command{Type: drive.CmdModulation, Value: m.Real()}, nil
	case ContentAngle:
		if len(body) != 4 {
			return drive.Command{}, fmt.Errorf("%s: want 4 bytes, got %d", contentType, len(body))
		}
		milli := int32(binary.BigEndian.Uint32(body))
		return drive.Command{Type: drive.CmdAngle, Value: float64(milli) / 1000}, nil
	case ContentStop:
		return drive.Command{Type: drive.CmdStop}, nil
	}
	return drive.Command{}, fmt.Errorf("unexpected content type %q", contentType)
}

// EncodeCommand is the inverse of DecodeCommand. Speeds and angles are
// rounded to the millidegree, modulation to the Q10 step.
func EncodeCommand(cmd drive.Command) (contentType string, body []byte, err error) {
	switch cmd.Type {
	case drive.CmdSpeed, drive.CmdAngle:
		milli := math.Round(cmd.Value * 1000)
		if milli > math.MaxInt32 || milli < math.MinInt32 {
			return "", nil, fmt.Errorf("%s %g out of range", cmd.Type, cmd.Value)
		}
		body = binary.BigEndian.AppendUint32(nil, uint32(int32(milli)))
		if cmd.Type == drive.CmdSpeed {
			return ContentSpeed, body, nil
		}
		return ContentAngle, body, nil
	case drive.CmdModulation:
		if err := cmd.Validate(); err != nil {
			return "", nil, err
		}
		m := fixed.FromReal[int32, fixed.Q10](cmd.Value)
		return ContentModulation, binary.BigEndian.AppendUint16(nil, uint16(m.Raw())), nil
	case drive.CmdStop:
		return ContentStop, nil, nil
	}
	return "", nil, fmt.Errorf("unknown command type %q", cmd.Type)
}

// DecodeFrameCommand decodes a bridge frame payload: one command code
// followed by the body of the matching content type.
func DecodeFrameCommand(payload []byte) (drive.Command, error) {
	if len(payload) == 0 {
		return drive.Command{}, fmt.Errorf("empty command frame")
	}
	ct, ok := codeContent[payload[0]]
	if !ok {
		return drive.Command{}, fmt.Errorf("unknown command code %d", payload[0])
	}
	return DecodeCommand(ct, payload[1:])
}

// EncodeFrameCommand builds a bridge frame payload for cmd.
func EncodeFrameCommand(cmd drive.Command) ([]byte, error) {
	ct, body, err := EncodeCommand(cmd)
	if err != nil {
		return nil, err
	}
	for code, c := range codeContent {
		if c == ct {
			return append([]byte{code}, body...), nil
		}
	}
	return nil, fmt.Errorf("no frame code for %s", ct)
}

// TelemetryFrameSize is the length of EncodeTelemetryFrame's output.
const TelemetryFrameSize = 15

// EncodeTelemetryFrame packs telemetry for the serial bridge, big endian:
// tick uint32, elec angle uint16, sector uint8, sector angle uint16,
// channels 3 x uint16. The sector angle is redundant but saves the host
// from knowing the precision.
func EncodeTelemetryFrame(t drive.Telemetry) []byte {
	b := make([]byte, 0, TelemetryFrameSize)
	b = binary.BigEndian.AppendUint32(b, uint32(t.Tick))
	b = binary.BigEndian.AppendUint16(b, uint16(t.ElecAngle))
	b = append(b, t.Sector)
	b = binary.BigEndian.AppendUint16(b, t.SectorAngle)
	for _, ch := range t.Channels {
		b = binary.BigEndian.AppendUint16(b, ch)
	}
	return b
}

// EncodeTelemetryJSON renders telemetry for MQTT and the web clients.
func EncodeTelemetryJSON(t drive.Telemetry) ([]byte, error) {
	return json.Marshal(t)
}
