// Package decimal implements the unsigned 256-bit fixed-point numbers used by
// the market accounting. Every value carries exactly Precision fractional
// digits and every operation truncates toward zero so independent evaluators
// derive identical results from identical inputs.
package decimal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Precision is the number of fractional decimal digits carried by a Dec.
const Precision = 18

var (
	ErrOverflow       = errors.New("decimal: overflow")
	ErrUnderflow      = errors.New("decimal: negative result")
	ErrDivisionByZero = errors.New("decimal: division by zero")
	ErrInvalidString  = errors.New("decimal: invalid string")
)

var fractional = uint256.NewInt(1_000_000_000_000_000_000)

// Dec is a non-negative fixed-point number stored as atomics / 10^Precision.
// The zero value is 0.
type Dec struct {
	atomics uint256.Int
}

// Zero returns 0.
func Zero() Dec { return Dec{} }

// One returns exactly 1.
func One() Dec {
	var d Dec
	d.atomics.Set(fractional)
	return d
}

// FromAtomics wraps a raw atomics value (value * 10^18).
func FromAtomics(atomics *uint256.Int) Dec {
	var d Dec
	if atomics != nil {
		d.atomics.Set(atomics)
	}
	return d
}

// FromUint64 converts an integer into a Dec. It cannot overflow.
func FromUint64(v uint64) Dec {
	var d Dec
	d.atomics.Mul(uint256.NewInt(v), fractional)
	return d
}

// FromUint converts an integer amount into a Dec.
func FromUint(v *uint256.Int) (Dec, error) {
	var d Dec
	if v == nil {
		return d, nil
	}
	if _, overflow := d.atomics.MulOverflow(v, fractional); overflow {
		return Dec{}, fmt.Errorf("%w: %s exceeds decimal range", ErrOverflow, v.Dec())
	}
	return d, nil
}

// NewFromRatio returns num / den truncated to Precision digits.
func NewFromRatio(num, den *uint256.Int) (Dec, error) {
	if den == nil || den.IsZero() {
		return Dec{}, ErrDivisionByZero
	}
	if num == nil {
		return Dec{}, nil
	}
	var d Dec
	if _, overflow := d.atomics.MulDivOverflow(num, fractional, den); overflow {
		return Dec{}, ErrOverflow
	}
	return d, nil
}

// Parse reads a plain decimal string such as "0.99" or "1000". More than
// Precision fractional digits is rejected rather than rounded.
func Parse(s string) (Dec, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Dec{}, fmt.Errorf("%w: empty", ErrInvalidString)
	}
	whole, frac, hasDot := strings.Cut(trimmed, ".")
	if whole == "" || (hasDot && frac == "") {
		return Dec{}, fmt.Errorf("%w: %q", ErrInvalidString, s)
	}
	if len(frac) > Precision {
		return Dec{}, fmt.Errorf("%w: %q has more than %d fractional digits", ErrInvalidString, s, Precision)
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return Dec{}, fmt.Errorf("%w: %q", ErrInvalidString, s)
	}

	wholeInt, err := fromDigits(whole)
	if err != nil {
		return Dec{}, fmt.Errorf("%w: %q: %v", ErrInvalidString, s, err)
	}
	d, err := FromUint(wholeInt)
	if err != nil {
		return Dec{}, err
	}
	if frac == "" {
		return d, nil
	}
	fracInt, err := fromDigits(frac + strings.Repeat("0", Precision-len(frac)))
	if err != nil {
		return Dec{}, fmt.Errorf("%w: %q: %v", ErrInvalidString, s, err)
	}
	if _, overflow := d.atomics.AddOverflow(&d.atomics, fracInt); overflow {
		return Dec{}, ErrOverflow
	}
	return d, nil
}

// MustParse is Parse for constants; it panics on malformed input.
func MustParse(s string) Dec {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func fromDigits(s string) (*uint256.Int, error) {
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromDecimal(s)
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Atomics returns a copy of the raw scaled integer.
func (d Dec) Atomics() *uint256.Int {
	return new(uint256.Int).Set(&d.atomics)
}

func (d Dec) IsZero() bool { return d.atomics.IsZero() }

// Cmp compares d and o and returns -1, 0 or +1.
func (d Dec) Cmp(o Dec) int { return d.atomics.Cmp(&o.atomics) }

func (d Dec) Equal(o Dec) bool { return d.atomics.Eq(&o.atomics) }

func (d Dec) Add(o Dec) (Dec, error) {
	var out Dec
	if _, overflow := out.atomics.AddOverflow(&d.atomics, &o.atomics); overflow {
		return Dec{}, ErrOverflow
	}
	return out, nil
}

func (d Dec) Sub(o Dec) (Dec, error) {
	var out Dec
	if _, underflow := out.atomics.SubOverflow(&d.atomics, &o.atomics); underflow {
		return Dec{}, fmt.Errorf("%w: %s - %s", ErrUnderflow, d, o)
	}
	return out, nil
}

// Mul returns d * o truncated to Precision digits.
func (d Dec) Mul(o Dec) (Dec, error) {
	var out Dec
	if d.IsZero() || o.IsZero() {
		return out, nil
	}
	if _, overflow := out.atomics.MulDivOverflow(&d.atomics, &o.atomics, fractional); overflow {
		return Dec{}, ErrOverflow
	}
	return out, nil
}

// Quo returns d / o truncated to Precision digits.
func (d Dec) Quo(o Dec) (Dec, error) {
	if o.IsZero() {
		return Dec{}, ErrDivisionByZero
	}
	var out Dec
	if d.IsZero() {
		return out, nil
	}
	if _, overflow := out.atomics.MulDivOverflow(&d.atomics, fractional, &o.atomics); overflow {
		return Dec{}, ErrOverflow
	}
	return out, nil
}

// MulUint returns floor(v * d) as an integer.
func (d Dec) MulUint(v *uint256.Int) (*uint256.Int, error) {
	out := new(uint256.Int)
	if v == nil || v.IsZero() || d.IsZero() {
		return out, nil
	}
	if _, overflow := out.MulDivOverflow(v, &d.atomics, fractional); overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// QuoUint returns floor(v / d) as an integer.
func QuoUint(v *uint256.Int, d Dec) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	out := new(uint256.Int)
	if v == nil || v.IsZero() {
		return out, nil
	}
	if _, overflow := out.MulDivOverflow(v, fractional, &d.atomics); overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// String renders the canonical form: no exponent, trailing fractional zeros
// trimmed, "0" for zero.
func (d Dec) String() string {
	whole := new(uint256.Int).Div(&d.atomics, fractional)
	rem := new(uint256.Int).Mod(&d.atomics, fractional)
	if rem.IsZero() {
		return whole.Dec()
	}
	frac := rem.Dec()
	frac = strings.Repeat("0", Precision-len(frac)) + frac
	frac = strings.TrimRight(frac, "0")
	return whole.Dec() + "." + frac
}

func (d Dec) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Dec) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
