package fixed

// Frac is implemented by the zero-size marker types that fix the number of
// fractional bits of a Value at compile time.
type Frac interface {
	FracBits() uint
}

// Fractional bit markers. Q10 means a step of 2^-10.
type (
	Q0  struct{}
	Q1  struct{}
	Q2  struct{}
	Q3  struct{}
	Q4  struct{}
	Q5  struct{}
	Q6  struct{}
	Q7  struct{}
	Q8  struct{}
	Q9  struct{}
	Q10 struct{}
	Q11 struct{}
	Q12 struct{}
	Q13 struct{}
	Q14 struct{}
	Q15 struct{}
	Q16 struct{}
)

func (Q0) FracBits() uint  { return 0 }
func (Q1) FracBits() uint  { return 1 }
func (Q2) FracBits() uint  { return 2 }
func (Q3) FracBits() uint  { return 3 }
func (Q4) FracBits() uint  { return 4 }
func (Q5) FracBits() uint  { return 5 }
func (Q6) FracBits() uint  { return 6 }
func (Q7) FracBits() uint  { return 7 }
func (Q8) FracBits() uint  { return 8 }
func (Q9) FracBits() uint  { return 9 }
func (Q10) FracBits() uint { return 10 }
func (Q11) FracBits() uint { return 11 }
func (Q12) FracBits() uint { return 12 }
func (Q13) FracBits() uint { return 13 }
func (Q14) FracBits() uint { return 14 }
func (Q15) FracBits() uint { return 15 }
func (Q16) FracBits() uint { return 16 }

func fracBits[F Frac]() uint {
	var f F
	return f.FracBits()
}
