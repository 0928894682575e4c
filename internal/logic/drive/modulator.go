package drive

import (
	"fmt"

	"github.com/cjeanneret/svmdrive/internal/logic/fixed"
	"github.com/cjeanneret/svmdrive/internal/logic/svm"
)

// Modulator is the part of svm.Handler the controller needs. It hides the
// compile-time precision so it can be picked from configuration.
type Modulator interface {
	Move(delta int16)
	SetAngleDegrees(deg float64)
	Update(m fixed.Fxp)
	Channels() [3]uint16
	AnglePrecision() float64
	ScaleMax() uint16
	State() svm.State
}

// NewModulator builds a handler for the given sector precision (3-12). With
// rom set the table is stored as a string; the P8/1000 combination reuses
// the pre-generated table.
func NewModulator(precision int, scaleMax uint16, rom bool) (Modulator, error) {
	switch precision {
	case 3:
		return newHandler[svm.P3](scaleMax, rom)
	case 4:
		return newHandler[svm.P4](scaleMax, rom)
	case 5:
		return newHandler[svm.P5](scaleMax, rom)
	case 6:
		return newHandler[svm.P6](scaleMax, rom)
	case 7:
		return newHandler[svm.P7](scaleMax, rom)
	case 8:
		if rom && scaleMax == svm.DefaultROMTable.ScaleMax() {
			return svm.NewHandlerWithTable[svm.P8](svm.DefaultROMTable), nil
		}
		return newHandler[svm.P8](scaleMax, rom)
	case 9:
		return newHandler[svm.P9](scaleMax, rom)
	case 10:
		return newHandler[svm.P10](scaleMax, rom)
	case 11:
		return newHandler[svm.P11](scaleMax, rom)
	case 12:
		return newHandler[svm.P12](scaleMax, rom)
	}
	return nil, fmt.Errorf("precision %d out of range 3-12", precision)
}

func newHandler[P svm.Precision](scaleMax uint16, rom bool) (Modulator, error) {
	if !rom {
		h, err := svm.NewHandler[P](scaleMax)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
	t, err := svm.NewROMTable[P](scaleMax)
	if err != nil {
		return nil, err
	}
	return svm.NewHandlerWithTable[P](t), nil
}
