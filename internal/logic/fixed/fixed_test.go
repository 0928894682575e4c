package fixed

import (
	"errors"
	"math"
	"testing"
)

func TestZeroValue(t *testing.T) {
	var v Value[uint32, Q8]
	if v.Raw() != 0 {
		t.Errorf("Raw() = %d, want 0", v.Raw())
	}
	if v.Real() != 0 {
		t.Errorf("Real() = %v, want 0", v.Real())
	}
}

func TestPrecisionAndFracBits(t *testing.T) {
	tests := []struct {
		name      string
		bits      uint
		precision float64
	}{
		{"Q8", Value[uint32, Q8]{}.FracBits(), Value[uint32, Q8]{}.Precision()},
		{"Q6", Value[uint32, Q6]{}.FracBits(), Value[uint32, Q6]{}.Precision()},
		{"Q2", Value[int8, Q2]{}.FracBits(), Value[int8, Q2]{}.Precision()},
		{"Q4", Value[int16, Q4]{}.FracBits(), Value[int16, Q4]{}.Precision()},
	}
	want := map[string]struct {
		bits      uint
		precision float64
	}{
		"Q8": {8, 0.00390625},
		"Q6": {6, 0.015625},
		"Q2": {2, 0.25},
		"Q4": {4, 0.0625},
	}
	for _, tt := range tests {
		w := want[tt.name]
		if tt.bits != w.bits {
			t.Errorf("%s: FracBits() = %d, want %d", tt.name, tt.bits, w.bits)
		}
		if tt.precision != w.precision {
			t.Errorf("%s: Precision() = %v, want %v", tt.name, tt.precision, w.precision)
		}
	}
}

func TestFromReal(t *testing.T) {
	if got := FromReal[uint32, Q8](2.134).Raw(); got != 546 {
		t.Errorf("FromReal(2.134) raw = %d, want 546", got)
	}
	if got := FromReal[uint32, Q6](5.125).Raw(); got != 328 {
		t.Errorf("FromReal(5.125) raw = %d, want 328", got)
	}
	// 2.44 * 256 = 624.64 rounds up.
	if got := FromReal[int32, Q8](2.44).Raw(); got != 625 {
		t.Errorf("FromReal(2.44) raw = %d, want 625", got)
	}
	if got := FromReal[int32, Q8](-2.44).Raw(); got != -625 {
		t.Errorf("FromReal(-2.44) raw = %d, want -625", got)
	}
}

func TestFromRealWrapsOutOfRange(t *testing.T) {
	// 10.0 at Q4 needs raw 160, which does not fit int8.
	if got := FromReal[int8, Q4](10.0).Raw(); got != -96 {
		t.Errorf("FromReal[int8,Q4](10) raw = %d, want -96", got)
	}
}

func TestRoundTripWithinHalfStep(t *testing.T) {
	half := Fxp{}.Precision() / 2
	for x := -1000.0; x <= 1000.0; x += 0.0371 {
		got := FromReal[int32, Q10](x).Real()
		if math.Abs(got-x) > half {
			t.Fatalf("FromReal(%v).Real() = %v, off by more than %v", x, got, half)
		}
	}
}

func TestFromInt(t *testing.T) {
	if got := FromInt[int32, Q10](1000).Raw(); got != 1024000 {
		t.Errorf("FromInt(1000) raw = %d, want 1024000", got)
	}
	if got := FromInt[int32, Q10](-3).Real(); got != -3 {
		t.Errorf("FromInt(-3) = %v, want -3", got)
	}
}

func TestRealAndFloat32(t *testing.T) {
	if got := FromReal[uint32, Q8](2.134).Real(); got != 2.1328125 {
		t.Errorf("Real() = %v, want 2.1328125", got)
	}
	if got := FromReal[int32, Q8](-2.134).Float32(); got != -2.1328125 {
		t.Errorf("Float32() = %v, want -2.1328125", got)
	}
}

func TestInt(t *testing.T) {
	tests := []struct {
		name string
		in   Value[int32, Q8]
		want int32
	}{
		{"positive half rounds up", FromReal[int32, Q8](2.5), 3},
		{"negative half rounds up", FromReal[int32, Q8](-2.5), -2},
		{"below half", FromReal[int32, Q8](2.4), 2},
		{"negative below half", FromReal[int32, Q8](-2.6), -3},
		{"zero", Value[int32, Q8]{}, 0},
	}
	for _, tt := range tests {
		if got := tt.in.Int(); got != tt.want {
			t.Errorf("%s: Int() = %d, want %d", tt.name, got, tt.want)
		}
	}

	if got := FromReal[int32, Q15](-30.45).Int(); got != -30 {
		t.Errorf("Q15 Int(-30.45) = %d, want -30", got)
	}
	if got := FromRaw[int32, Q0](7).Int(); got != 7 {
		t.Errorf("Q0 Int() = %d, want 7", got)
	}
	if got := FromReal[uint16, Q4](7.5).Int(); got != 8 {
		t.Errorf("unsigned Int(7.5) = %d, want 8", got)
	}
}

func TestFloor(t *testing.T) {
	if got := FromReal[int32, Q8](-2.5).Floor(); got != -3 {
		t.Errorf("Floor(-2.5) = %d, want -3", got)
	}
	if got := FromReal[int32, Q8](2.99).Floor(); got != 2 {
		t.Errorf("Floor(2.99) = %d, want 2", got)
	}
}

func TestConvert(t *testing.T) {
	q6 := FromReal[uint32, Q6](5.125)
	widened := Convert[uint32, Q8](q6)
	if widened.Raw() != 1312 {
		t.Errorf("widened raw = %d, want 1312", widened.Raw())
	}
	if widened.Real() != 5.125 {
		t.Errorf("widened = %v, want 5.125", widened.Real())
	}

	// Narrowing drops low bits.
	narrowed := Convert[int32, Q4](FromReal[int32, Q8](2.134))
	if narrowed.Raw() != 34 {
		t.Errorf("narrowed raw = %d, want 34", narrowed.Raw())
	}
	// Arithmetic shift floors negative values.
	neg := Convert[int32, Q4](FromRaw[int32, Q8](-546))
	if neg.Raw() != -35 {
		t.Errorf("negative narrowed raw = %d, want -35", neg.Raw())
	}

	// The storage cast happens before the shift, so high bits are lost.
	lost := Convert[int8, Q2](FromReal[int32, Q8](100.0))
	if lost.Raw() != 0 {
		t.Errorf("storage narrowed raw = %d, want 0", lost.Raw())
	}

	wide := Convert[int64, Q16](FromReal[int32, Q10](-1.5))
	if wide.Real() != -1.5 {
		t.Errorf("int64 Q16 = %v, want -1.5", wide.Real())
	}
}

func TestAddSub(t *testing.T) {
	tests := []struct {
		name string
		got  Value[int32, Q8]
		want float64
	}{
		{"add", FromReal[int32, Q8](2.56).Add(FromReal[int32, Q8](2.44)), 5.0},
		{"add negative", FromReal[int32, Q8](2.56).Add(FromReal[int32, Q8](-12.56)), -10.0},
		{"sub", FromReal[int32, Q8](152.985).Sub(FromReal[int32, Q8](2.985)), 150.0},
		{"sub negative", FromReal[int32, Q8](152.985).Sub(FromReal[int32, Q8](-152.015)), 305.0},
	}
	for _, tt := range tests {
		if tt.got.Real() != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got.Real(), tt.want)
		}
	}
}

func TestMul(t *testing.T) {
	a := FromReal[int32, Q8](152.56)
	if got := a.Mul(FromReal[int32, Q8](2.0)).Raw(); got != 78110 {
		t.Errorf("152.56*2 raw = %d, want 78110", got)
	}
	if got := a.Mul(FromReal[int32, Q8](-2.0)).Raw(); got != -78110 {
		t.Errorf("152.56*-2 raw = %d, want -78110", got)
	}

	// Half a step rounds down for positive and negative products alike.
	half := FromRaw[int32, Q8](128)
	if got := FromRaw[int32, Q8](1).Mul(half).Raw(); got != 0 {
		t.Errorf("1*0.5 raw = %d, want 0", got)
	}
	if got := FromRaw[int32, Q8](-1).Mul(half).Raw(); got != -1 {
		t.Errorf("-1*0.5 raw = %d, want -1", got)
	}

	// The intermediate product does not overflow 32 bits.
	big := FromInt[int32, Q10](1000)
	if got := big.Mul(big).Real(); got != 1000000 {
		t.Errorf("1000*1000 = %v, want 1000000", got)
	}
}

func TestDiv(t *testing.T) {
	num := FromReal[int32, Q8](223.5)
	got, err := num.Div(FromReal[int32, Q8](0.1))
	if err != nil {
		t.Fatalf("Div: %v", err)
	}
	if got.Raw() != 563357 {
		t.Errorf("223.5/0.1 raw = %d, want 563357", got.Raw())
	}
	got, err = num.Div(FromReal[int32, Q8](-0.1))
	if err != nil {
		t.Fatalf("Div: %v", err)
	}
	if got.Raw() != -563357 {
		t.Errorf("223.5/-0.1 raw = %d, want -563357", got.Raw())
	}

	if _, err := num.Div(Value[int32, Q8]{}); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("Div by zero err = %v, want ErrDivisionByZero", err)
	}
}

func TestMod(t *testing.T) {
	got, err := FromReal[int8, Q2](20.5).Mod(FromReal[int8, Q2](10.0))
	if err != nil {
		t.Fatalf("Mod: %v", err)
	}
	if got.Real() != 0.5 {
		t.Errorf("20.5 mod 10 = %v, want 0.5", got.Real())
	}
	if _, err := FromReal[int8, Q2](20.5).Mod(Value[int8, Q2]{}); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("Mod by zero err = %v, want ErrDivisionByZero", err)
	}
}

func TestCompare(t *testing.T) {
	a := FromReal[int32, Q14](1234.34)
	b := FromReal[int32, Q14](1234.44)
	c := FromReal[int32, Q14](1234.34)

	if !a.Less(b) || !a.LessEqual(b) || a.Greater(b) || a.GreaterEqual(b) {
		t.Errorf("ordering of %v and %v is wrong", a, b)
	}
	if !a.Equal(c) || a.NotEqual(c) || !a.LessEqual(c) || !a.GreaterEqual(c) {
		t.Errorf("equality of %v and %v is wrong", a, c)
	}
	if a.Cmp(b) != -1 || b.Cmp(a) != 1 || a.Cmp(c) != 0 {
		t.Errorf("Cmp results = %d %d %d, want -1 1 0", a.Cmp(b), b.Cmp(a), a.Cmp(c))
	}
}

func TestString(t *testing.T) {
	if got := FromReal[int32, Q4](7.5625).String(); got != "7.5625" {
		t.Errorf("String() = %q, want %q", got, "7.5625")
	}
}
