package svm

// Precision is implemented by the marker types that fix, at compile time, how
// many bits of resolution one 60 degree sector has.
type Precision interface {
	Bits() uint
}

// Sector resolutions. P8 splits a sector into 256 steps.
type (
	P3  struct{}
	P4  struct{}
	P5  struct{}
	P6  struct{}
	P7  struct{}
	P8  struct{}
	P9  struct{}
	P10 struct{}
	P11 struct{}
	P12 struct{}
)

func (P3) Bits() uint  { return 3 }
func (P4) Bits() uint  { return 4 }
func (P5) Bits() uint  { return 5 }
func (P6) Bits() uint  { return 6 }
func (P7) Bits() uint  { return 7 }
func (P8) Bits() uint  { return 8 }
func (P9) Bits() uint  { return 9 }
func (P10) Bits() uint { return 10 }
func (P11) Bits() uint { return 11 }
func (P12) Bits() uint { return 12 }

func bits[P Precision]() uint {
	var p P
	return p.Bits()
}

// Steps returns the number of angle increments in one sector, 2^P.
func Steps[P Precision]() int {
	return 1 << bits[P]()
}
