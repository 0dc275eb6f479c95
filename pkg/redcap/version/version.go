// Package version models REDCap release numbers.
//
// REDCap reports its version as a dotted "major.minor.patch" string
// (e.g., "14.5.10"). Versions are immutable values ordered by comparing
// major, then minor, then patch. Segments have no upper bound.
package version

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Version is a three-part REDCap release number. The zero value is 0.0.0.
// Versions are comparable with ==.
type Version struct {
	// Decimal digits without leading zeros; zero is "".
	major, minor, patch string
}

// ParseError is returned when a version string is malformed.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid version %q: %s", e.Input, e.Reason)
}

// New returns the version major.minor.patch.
func New(major, minor, patch uint64) Version {
	return Version{
		major: canonical(strconv.FormatUint(major, 10)),
		minor: canonical(strconv.FormatUint(minor, 10)),
		patch: canonical(strconv.FormatUint(patch, 10)),
	}
}

// Parse parses a dotted version string. Surrounding whitespace is ignored;
// anything other than exactly three non-negative integer segments fails.
// Leading zeros are dropped, so "14.05.1" parses as 14.5.1.
func Parse(input string) (Version, error) {
	s := strings.TrimSpace(input)
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, &ParseError{
			Input:  input,
			Reason: fmt.Sprintf("expected 3 segments, got %d", len(parts)),
		}
	}

	for _, p := range parts {
		if p == "" {
			return Version{}, &ParseError{Input: input, Reason: "empty segment"}
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return Version{}, &ParseError{
					Input:  input,
					Reason: fmt.Sprintf("segment %q is not a non-negative integer", p),
				}
			}
		}
	}

	return Version{
		major: canonical(parts[0]),
		minor: canonical(parts[1]),
		patch: canonical(parts[2]),
	}, nil
}

func canonical(digits string) string {
	return strings.TrimLeft(digits, "0")
}

// MustParse parses a version string, panicking on error.
// This is useful for adapter ranges and test fixtures.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String formats the version as "major.minor.patch".
func (v Version) String() string {
	return segment(v.major) + "." + segment(v.minor) + "." + segment(v.patch)
}

func segment(digits string) string {
	if digits == "" {
		return "0"
	}
	return digits
}

// Compare returns -1, 0 or 1 when v is less than, equal to, or greater than o.
func (v Version) Compare(o Version) int {
	switch {
	case v.major != o.major:
		return cmpDigits(v.major, o.major)
	case v.minor != o.minor:
		return cmpDigits(v.minor, o.minor)
	default:
		return cmpDigits(v.patch, o.patch)
	}
}

// Compare is the function form of Version.Compare, usable with slices.SortFunc.
func Compare(a, b Version) int {
	return a.Compare(b)
}

// IsAtLeast reports whether v >= min.
func (v Version) IsAtLeast(min Version) bool {
	return v.Compare(min) >= 0
}

// IsLessThan reports whether v < max.
func (v Version) IsLessThan(max Version) bool {
	return v.Compare(max) < 0
}

// InRange reports whether min <= v < max. A nil max means no upper bound.
func (v Version) InRange(min Version, max *Version) bool {
	if !v.IsAtLeast(min) {
		return false
	}
	return max == nil || v.IsLessThan(*max)
}

// cmpDigits orders two canonical digit strings numerically: the longer
// one is larger, and equal lengths compare lexically.
func cmpDigits(a, b string) int {
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// Range is a half-open version interval: Min is inclusive, Max exclusive.
// A nil Max denotes an open-ended range covering every later release.
type Range struct {
	Min Version
	Max *Version
}

// Contains reports whether v falls inside the range.
func (r Range) Contains(v Version) bool {
	return v.InRange(r.Min, r.Max)
}

// IsOpenEnded reports whether the range has no upper bound.
func (r Range) IsOpenEnded() bool {
	return r.Max == nil
}

// Overlaps reports whether r and o share at least one version.
func (r Range) Overlaps(o Range) bool {
	// r ends before o starts
	if r.Max != nil && r.Max.Compare(o.Min) <= 0 {
		return false
	}
	if o.Max != nil && o.Max.Compare(r.Min) <= 0 {
		return false
	}
	return true
}

func (r Range) String() string {
	if r.Max == nil {
		return fmt.Sprintf(">=%s", r.Min)
	}
	return fmt.Sprintf(">=%s, <%s", r.Min, *r.Max)
}

// Between returns the range [min, max).
func Between(min, max Version) Range {
	return Range{Min: min, Max: &max}
}

// AtLeast returns the open-ended range [min, ∞).
func AtLeast(min Version) Range {
	return Range{Min: min}
}
