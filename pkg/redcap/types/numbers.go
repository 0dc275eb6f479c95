package types

import (
	"encoding/json"
	"math"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// PositiveInt is an integer greater than zero.
type PositiveInt struct {
	value int
}

// NewPositiveInt validates that n > 0.
func NewPositiveInt(field string, n int) (PositiveInt, error) {
	// Required rejects 0, which Min would skip as an empty value.
	err := check(field, n,
		validation.Required.Error("must be a positive integer"),
		validation.Min(1).Error("must be a positive integer"),
	)
	if err != nil {
		return PositiveInt{}, err
	}
	return PositiveInt{value: n}, nil
}

// PositiveIntFromFloat validates a number decoded from an untyped source
// (e.g., JSON). NaN, infinities and values with a fractional part fail.
func PositiveIntFromFloat(field string, f float64) (PositiveInt, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return PositiveInt{}, &ValidationError{Field: field, Reason: "must be a finite number"}
	}
	if f != math.Trunc(f) {
		return PositiveInt{}, &ValidationError{Field: field, Reason: "must be an integer"}
	}
	if f > math.MaxInt32 {
		return PositiveInt{}, &ValidationError{Field: field, Reason: "is out of range"}
	}
	return NewPositiveInt(field, int(f))
}

// ParsePositiveInt parses s as a base-10 positive integer.
func ParsePositiveInt(field, s string) (PositiveInt, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return PositiveInt{}, &ValidationError{Field: field, Reason: "must be an integer"}
	}
	return NewPositiveInt(field, n)
}

// Int returns the underlying value.
func (p PositiveInt) Int() int { return p.value }

func (p PositiveInt) String() string { return strconv.Itoa(p.value) }

// IsZero reports whether the value is unset.
func (p PositiveInt) IsZero() bool { return p.value == 0 }

// Flag is REDCap's numeric boolean: exactly 0 or 1.
type Flag struct {
	value uint8
}

// Flag values.
var (
	FlagFalse = Flag{value: 0}
	FlagTrue  = Flag{value: 1}
)

// NewFlag validates that n is 0 or 1.
func NewFlag(field string, n int) (Flag, error) {
	err := check(field, n,
		validation.In(0, 1).Error("must be 0 or 1"),
	)
	if err != nil {
		return Flag{}, err
	}
	return Flag{value: uint8(n)}, nil
}

// ToFlag converts a bool to its flag value.
func ToFlag(b bool) Flag {
	if b {
		return FlagTrue
	}
	return FlagFalse
}

// FromFlag converts a flag to a bool. It is the inverse of ToFlag.
func FromFlag(f Flag) bool {
	return f.value == 1
}

// Int returns 0 or 1.
func (f Flag) Int() int { return int(f.value) }

// Bool is shorthand for FromFlag(f).
func (f Flag) Bool() bool { return FromFlag(f) }

func (f Flag) String() string { return strconv.Itoa(int(f.value)) }

// MarshalJSON encodes the flag as the number 0 or 1.
func (f Flag) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(f.value))
}
