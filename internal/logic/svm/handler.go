// Package svm turns a rotating electrical angle into three center aligned
// PWM compare values using space vector modulation.
//
// The angle is a single counter in [0, 6*2^P). The low P bits are the
// position inside the current 60 degree sector and the bits above encode the
// sector, so both are derived with a mask and a shift and can never drift
// apart. All per-tick arithmetic is integer or fixed point.
package svm

import (
	"math"

	"github.com/cjeanneret/svmdrive/internal/logic/fixed"
)

type modulation = fixed.Value[int64, fixed.Q10]

// Position is the sector decomposition of an electrical angle.
type Position struct {
	Sector      uint8  `json:"sector"`
	SectorAngle uint16 `json:"sector_angle"`
}

// State is a snapshot of a Handler.
type State struct {
	ElecAngle   int32     `json:"elec_angle"`
	Degrees     float64   `json:"degrees"`
	Sector      uint8     `json:"sector"`
	SectorAngle uint16    `json:"sector_angle"`
	Channels    [3]uint16 `json:"channels"`
	ScaleMax    uint16    `json:"scale_max"`
}

// Handler tracks the electrical angle of one motor and computes its three
// phase compare values. It is not safe for concurrent use.
type Handler[P Precision] struct {
	table     Table[P]
	elecAngle int32
	channels  [3]uint16
}

// NewHandler returns a handler at angle 0 backed by a freshly computed RAM
// table.
func NewHandler[P Precision](scaleMax uint16) (*Handler[P], error) {
	t, err := NewRAMTable[P](scaleMax)
	if err != nil {
		return nil, err
	}
	return NewHandlerWithTable[P](t), nil
}

// NewHandlerWithTable returns a handler at angle 0 reading from t. Tables are
// read-only and may be shared between handlers.
func NewHandlerWithTable[P Precision](t Table[P]) *Handler[P] {
	return &Handler[P]{table: t}
}

// MaxAngle is the number of angle increments in a full electrical turn.
func (h *Handler[P]) MaxAngle() int32 {
	return 6 << bits[P]()
}

// AnglePrecision returns the size of one increment in degrees.
func (h *Handler[P]) AnglePrecision() float64 {
	return 60.0 / float64(Steps[P]())
}

// SetElecAngle sets the electrical angle in increments. Values outside
// [0, MaxAngle) are wrapped.
func (h *Handler[P]) SetElecAngle(angle int32) {
	full := h.MaxAngle()
	angle %= full
	if angle < 0 {
		angle += full
	}
	h.elecAngle = angle
}

// SetAngleDegrees sets the electrical angle to the increment nearest deg.
func (h *Handler[P]) SetAngleDegrees(deg float64) {
	turns := math.Mod(deg, 360.0)
	h.SetElecAngle(int32(math.Round(turns / h.AnglePrecision())))
}

// Move advances the electrical angle by delta increments, wrapping in both
// directions.
func (h *Handler[P]) Move(delta int16) {
	full := h.MaxAngle()
	h.elecAngle += int32(delta)
	for h.elecAngle >= full {
		h.elecAngle -= full
	}
	for h.elecAngle < 0 {
		h.elecAngle += full
	}
}

func (h *Handler[P]) ElecAngle() int32 { return h.elecAngle }

// AngleDegrees returns the electrical angle in degrees.
func (h *Handler[P]) AngleDegrees() float64 {
	return float64(h.elecAngle) * h.AnglePrecision()
}

func (h *Handler[P]) Sector() uint8 {
	return uint8((h.elecAngle >> bits[P]()) & 0x7)
}

func (h *Handler[P]) SectorAngle() uint16 {
	return uint16(h.elecAngle & int32(Steps[P]()-1))
}

func (h *Handler[P]) Position() Position {
	return Position{Sector: h.Sector(), SectorAngle: h.SectorAngle()}
}

func (h *Handler[P]) ScaleMax() uint16 { return h.table.ScaleMax() }

// Channels returns the compare values computed by the last Update.
func (h *Handler[P]) Channels() [3]uint16 { return h.channels }

func (h *Handler[P]) CCR1() uint16 { return h.channels[0] }
func (h *Handler[P]) CCR2() uint16 { return h.channels[1] }
func (h *Handler[P]) CCR3() uint16 { return h.channels[2] }

func (h *Handler[P]) State() State {
	pos := h.Position()
	return State{
		ElecAngle:   h.elecAngle,
		Degrees:     h.AngleDegrees(),
		Sector:      pos.Sector,
		SectorAngle: pos.SectorAngle,
		Channels:    h.channels,
		ScaleMax:    h.table.ScaleMax(),
	}
}

// Update recomputes the three compare values for the current angle. m is the
// modulation factor; 1.0 is the largest output that stays linear. Larger
// values saturate: the zero vector time clamps to 0 and every channel clamps
// to ScaleMax.
func (h *Handler[P]) Update(m fixed.Fxp) {
	mod := fixed.Convert[int64, fixed.Q10](m)
	scaleMax := int64(h.table.ScaleMax())
	sa := int(h.SectorAngle())

	a := scaled(h.table.ScaleA(sa), mod, scaleMax)
	b := scaled(h.table.ScaleB(sa), mod, scaleMax)

	var zero int64
	if rest := scaleMax - a - b; rest > 0 {
		zero = (rest + 1) >> 1
	}

	var c1, c2, c3 int64
	switch h.Sector() {
	case 0:
		c1, c2, c3 = zero, zero+b, zero+a+b
	case 1:
		c1, c2, c3 = zero, zero+a+b, zero+a
	case 2:
		c1, c2, c3 = zero+b, zero+a+b, zero
	case 3:
		c1, c2, c3 = zero+a+b, zero+a, zero
	case 4:
		c1, c2, c3 = zero+a+b, zero, zero+b
	case 5:
		c1, c2, c3 = zero+a, zero, zero+a+b
	}

	h.channels = [3]uint16{
		saturate(c1, scaleMax),
		saturate(c2, scaleMax),
		saturate(c3, scaleMax),
	}
}

func scaled(entry uint16, m modulation, scaleMax int64) int64 {
	v := fixed.FromInt[int64, fixed.Q10](int64(entry)).Mul(m).Int()
	switch {
	case v < 0:
		return 0
	case v > scaleMax:
		return scaleMax
	}
	return v
}

func saturate(v, scaleMax int64) uint16 {
	if v > scaleMax {
		return uint16(scaleMax)
	}
	return uint16(v)
}
