// Package fixed implements Q-format fixed point numbers for code paths that
// must not touch the FPU.
//
// A Value[T, F] stores a single integer raw value of type T; the represented
// real number is raw * 2^-F, where F is a marker type such as Q10. Both the
// storage type and the number of fractional bits are part of the type, so
// every shift amount is a compile-time constant and values of different
// precision cannot be mixed without an explicit Convert.
//
// Example: with 4 fractional bits the step is 2^-4 = 0.0625, so a raw value
// of 121 represents 7.5625.
package fixed

import (
	"errors"
	"fmt"
	"math"
)

// ErrDivisionByZero is returned by Div and Mod when the divisor's raw value is zero.
var ErrDivisionByZero = errors.New("fixed: division by zero")

// Integer is any sized integer kind usable as raw storage.
type Integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Value is a fixed point number with storage T and F fractional bits.
// The zero value is 0.
type Value[T Integer, F Frac] struct {
	raw T
}

// Fxp is the default fixed point type: 32 bit storage, 10 fractional bits.
type Fxp = Value[int32, Q10]

// FromRaw wraps raw as-is.
func FromRaw[T Integer, F Frac](raw T) Value[T, F] {
	return Value[T, F]{raw: raw}
}

// FromInt returns the fixed point representation of the integer n.
func FromInt[T Integer, F Frac](n T) Value[T, F] {
	return Value[T, F]{raw: n << fracBits[F]()}
}

// FromReal returns the nearest representable value to v (ties away from
// zero). Values outside the range of T wrap silently; range checking is the
// caller's job.
func FromReal[T Integer, F Frac](v float64) Value[T, F] {
	return Value[T, F]{raw: T(int64(math.Round(v / precision(fracBits[F]()))))}
}

func precision(frac uint) float64 {
	return 1.0 / float64(uint64(1)<<frac)
}

func isSigned[T Integer]() bool {
	var zero T
	return zero-1 < 0
}

// Raw returns the raw integer representation.
func (v Value[T, F]) Raw() T { return v.raw }

// FracBits returns the number of fractional bits.
func (v Value[T, F]) FracBits() uint { return fracBits[F]() }

// Precision returns the real value of one raw step, 2^-F.
func (v Value[T, F]) Precision() float64 { return precision(fracBits[F]()) }

// Real returns the value as float64. The conversion is exact as long as the
// raw value fits the float64 mantissa.
func (v Value[T, F]) Real() float64 {
	return float64(v.raw) * precision(fracBits[F]())
}

// Float32 returns the value as float32.
func (v Value[T, F]) Float32() float32 {
	return float32(v.raw) * float32(precision(fracBits[F]()))
}

// Int rounds to the nearest integer, ties towards positive infinity.
func (v Value[T, F]) Int() T {
	f := fracBits[F]()
	if f == 0 {
		return v.raw
	}
	if isSigned[T]() {
		return T((int64(v.raw) + int64(1)<<(f-1)) >> f)
	}
	return T((uint64(v.raw) + uint64(1)<<(f-1)) >> f)
}

// Floor returns the largest integer not above v.
func (v Value[T, F]) Floor() T {
	return v.raw >> fracBits[F]()
}

func (v Value[T, F]) String() string {
	return fmt.Sprintf("%g", v.Real())
}

// Add returns v + rhs. Overflow wraps.
func (v Value[T, F]) Add(rhs Value[T, F]) Value[T, F] {
	return Value[T, F]{raw: v.raw + rhs.raw}
}

// Sub returns v - rhs. Overflow wraps.
func (v Value[T, F]) Sub(rhs Value[T, F]) Value[T, F] {
	return Value[T, F]{raw: v.raw - rhs.raw}
}

// Mul returns (v.raw * rhs.raw) >> F. The product is formed in 64 bits; the
// shift is arithmetic, so negative results round towards negative infinity.
func (v Value[T, F]) Mul(rhs Value[T, F]) Value[T, F] {
	f := fracBits[F]()
	if isSigned[T]() {
		return Value[T, F]{raw: T((int64(v.raw) * int64(rhs.raw)) >> f)}
	}
	return Value[T, F]{raw: T((uint64(v.raw) * uint64(rhs.raw)) >> f)}
}

// Div returns (v.raw << F) / rhs.raw, truncated towards zero. Precision is
// poor for divisors close to zero.
func (v Value[T, F]) Div(rhs Value[T, F]) (Value[T, F], error) {
	if rhs.raw == 0 {
		return Value[T, F]{}, ErrDivisionByZero
	}
	f := fracBits[F]()
	if isSigned[T]() {
		return Value[T, F]{raw: T((int64(v.raw) << f) / int64(rhs.raw))}, nil
	}
	return Value[T, F]{raw: T((uint64(v.raw) << f) / uint64(rhs.raw))}, nil
}

// Mod returns the remainder of the raw values.
func (v Value[T, F]) Mod(rhs Value[T, F]) (Value[T, F], error) {
	if rhs.raw == 0 {
		return Value[T, F]{}, ErrDivisionByZero
	}
	return Value[T, F]{raw: v.raw % rhs.raw}, nil
}

// Cmp returns -1, 0 or +1 depending on whether v is less than, equal to or
// greater than rhs.
func (v Value[T, F]) Cmp(rhs Value[T, F]) int {
	switch {
	case v.raw < rhs.raw:
		return -1
	case v.raw > rhs.raw:
		return 1
	}
	return 0
}

func (v Value[T, F]) Equal(rhs Value[T, F]) bool        { return v.raw == rhs.raw }
func (v Value[T, F]) NotEqual(rhs Value[T, F]) bool     { return v.raw != rhs.raw }
func (v Value[T, F]) Less(rhs Value[T, F]) bool         { return v.raw < rhs.raw }
func (v Value[T, F]) LessEqual(rhs Value[T, F]) bool    { return v.raw <= rhs.raw }
func (v Value[T, F]) Greater(rhs Value[T, F]) bool      { return v.raw > rhs.raw }
func (v Value[T, F]) GreaterEqual(rhs Value[T, F]) bool { return v.raw >= rhs.raw }

// Convert changes the storage type and precision of v. The raw value is first
// cast to T, then shifted by the difference in fractional bits. Narrowing
// neither rounds nor saturates: low bits are dropped (arithmetic shift) and
// high bits that do not fit T are lost.
func Convert[T Integer, F Frac, S Integer, G Frac](v Value[S, G]) Value[T, F] {
	to, from := fracBits[F](), fracBits[G]()
	raw := T(v.raw)
	if to >= from {
		return Value[T, F]{raw: raw << (to - from)}
	}
	return Value[T, F]{raw: raw >> (from - to)}
}
