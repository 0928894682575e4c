package svm

import (
	"errors"
	"fmt"
	"math"
)

//go:generate go run ../../../cmd/svmlutgen -precision 8 -scale 1000 -var DefaultROMTable -out lut_p8_s1000.go

// ErrInvalidScale is returned when a table is requested with a zero scale.
var ErrInvalidScale = errors.New("svm: scale max must be greater than zero")

// Entry returns the table value at index i for a sector split in steps
// increments: round(scaleMax * sin(60deg - i*60deg/steps)).
// Every table variant and the code generator go through this function so
// the rounding is identical everywhere.
func Entry(i, steps int, scaleMax uint16) uint16 {
	angle := float64(i) * (60.0 / float64(steps)) * math.Pi / 180.0
	return uint16(math.Round(float64(scaleMax) * math.Sin(math.Pi/3.0-angle)))
}

// Table is a read-only sine table covering one sector. Implementations are
// safe for concurrent readers.
type Table[P Precision] interface {
	// At returns the raw entry at index i. Out of range indices panic.
	At(i int) uint16
	Len() int
	ScaleMax() uint16
	// ScaleA returns the leading vector scale for a sector angle in [0, 2^P).
	ScaleA(sectorAngle int) uint16
	// ScaleB returns the trailing vector scale for a sector angle in [0, 2^P).
	ScaleB(sectorAngle int) uint16
}

// RAMTable keeps 2^P entries in a slice. The entry for a full sector (always
// zero) is not stored.
type RAMTable[P Precision] struct {
	entries  []uint16
	scaleMax uint16
}

// NewRAMTable computes the table for precision P and the given scale.
func NewRAMTable[P Precision](scaleMax uint16) (*RAMTable[P], error) {
	if scaleMax == 0 {
		return nil, ErrInvalidScale
	}
	n := Steps[P]()
	entries := make([]uint16, n)
	for i := range entries {
		entries[i] = Entry(i, n, scaleMax)
	}
	return &RAMTable[P]{entries: entries, scaleMax: scaleMax}, nil
}

func (t *RAMTable[P]) At(i int) uint16  { return t.entries[i] }
func (t *RAMTable[P]) Len() int         { return len(t.entries) }
func (t *RAMTable[P]) ScaleMax() uint16 { return t.scaleMax }

func (t *RAMTable[P]) ScaleA(sectorAngle int) uint16 {
	return t.entries[sectorAngle]
}

func (t *RAMTable[P]) ScaleB(sectorAngle int) uint16 {
	if sectorAngle == 0 {
		return 0
	}
	return t.entries[len(t.entries)-sectorAngle]
}

// ROMTable keeps 2^P+1 little endian entries in an immutable string, which
// embedded toolchains place in flash instead of RAM.
type ROMTable[P Precision] struct {
	data     string
	scaleMax uint16
}

// NewROMTable computes the table for precision P and the given scale.
func NewROMTable[P Precision](scaleMax uint16) (*ROMTable[P], error) {
	if scaleMax == 0 {
		return nil, ErrInvalidScale
	}
	n := Steps[P]()
	buf := make([]byte, 0, 2*(n+1))
	for i := 0; i <= n; i++ {
		e := Entry(i, n, scaleMax)
		buf = append(buf, byte(e), byte(e>>8))
	}
	return &ROMTable[P]{data: string(buf), scaleMax: scaleMax}, nil
}

// LoadROMTable wraps a pre-generated table string.
func LoadROMTable[P Precision](data string, scaleMax uint16) (*ROMTable[P], error) {
	if scaleMax == 0 {
		return nil, ErrInvalidScale
	}
	if want := 2 * (Steps[P]() + 1); len(data) != want {
		return nil, fmt.Errorf("svm: table has %d bytes, want %d for precision %d", len(data), want, bits[P]())
	}
	return &ROMTable[P]{data: data, scaleMax: scaleMax}, nil
}

// MustROMTable is like LoadROMTable but panics on error. It is meant for
// package level variables in generated code.
func MustROMTable[P Precision](data string, scaleMax uint16) *ROMTable[P] {
	t, err := LoadROMTable[P](data, scaleMax)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *ROMTable[P]) At(i int) uint16 {
	return uint16(t.data[2*i]) | uint16(t.data[2*i+1])<<8
}

func (t *ROMTable[P]) Len() int         { return len(t.data) / 2 }
func (t *ROMTable[P]) ScaleMax() uint16 { return t.scaleMax }

func (t *ROMTable[P]) ScaleA(sectorAngle int) uint16 {
	return t.At(sectorAngle)
}

func (t *ROMTable[P]) ScaleB(sectorAngle int) uint16 {
	return t.At(t.Len() - 1 - sectorAngle)
}
