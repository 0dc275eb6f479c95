// Package params assembles the form-encoded parameter sets sent to the
// REDCap API.
//
// Builders take validated values from package types and return a flat
// Params map. Lists are sent as indexed keys (fields[0], fields[1], ...),
// which is the only array encoding REDCap understands.
package params

import (
	"fmt"
	"maps"
	"net/url"
)

// Params is a flat, string-keyed parameter set ready for form encoding.
type Params map[string]string

// Clone returns a copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	return maps.Clone(p)
}

// WithDefaults returns a copy of p with every key of defaults that p does
// not set.
func (p Params) WithDefaults(defaults Params) Params {
	out := defaults.Clone()
	maps.Copy(out, p)
	return out
}

// Without returns a copy of p with keys removed.
func (p Params) Without(keys ...string) Params {
	out := p.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Values converts p to url.Values.
func (p Params) Values() url.Values {
	v := make(url.Values, len(p))
	for k, val := range p {
		v.Set(k, val)
	}
	return v
}

// Encode returns the application/x-www-form-urlencoded form of p, sorted
// by key.
func (p Params) Encode() string {
	return p.Values().Encode()
}

// Raw is a parameter set under construction. A nil value marks the key as
// absent.
type Raw map[string]*string

// Str returns a pointer to s for use as a present Raw value.
func Str(s string) *string {
	return &s
}

// CleanParams drops absent (nil) entries from raw. Empty strings are kept:
// an empty value is a deliberate "send blank", not a missing parameter.
func CleanParams(raw Raw) Params {
	out := make(Params, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[k] = *v
	}
	return out
}

// setIndexed adds name[0..n-1] keys for values.
func setIndexed(raw Raw, name string, values []string) {
	for i, v := range values {
		raw[fmt.Sprintf("%s[%d]", name, i)] = Str(v)
	}
}

func optional(ok bool, v string) *string {
	if !ok {
		return nil
	}
	return Str(v)
}

func boolParam(b bool) *string {
	if !b {
		return nil
	}
	return Str("true")
}

type stringer interface {
	String() string
	IsZero() bool
}

func toStrings[T stringer](in []T) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, v.String())
	}
	return out
}
