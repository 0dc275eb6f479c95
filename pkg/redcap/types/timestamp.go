package types

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// REDCap emits "YYYY-MM-DD HH:MM:SS" while most tooling produces the ISO
// "T" separator; both are accepted.
var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([T ]\d{2}:\d{2}(:\d{2})?)?$`)

// Timestamp is a date or date-time in one of the forms
// YYYY-MM-DD, YYYY-MM-DD HH:MM[:SS] or YYYY-MM-DDTHH:MM[:SS].
type Timestamp struct {
	value string
}

// NewTimestamp validates s as a timestamp.
func NewTimestamp(field, s string) (Timestamp, error) {
	err := check(field, s,
		validation.Required.Error("is required"),
		validation.Match(timestampPattern).Error("must be YYYY-MM-DD or YYYY-MM-DD HH:MM[:SS]"),
	)
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{value: s}, nil
}

// TimestampFromTime formats t in the form REDCap expects.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{value: t.Format("2006-01-02 15:04:05")}
}

func (t Timestamp) String() string { return t.value }

// IsZero reports whether the timestamp is unset.
func (t Timestamp) IsZero() bool { return t.value == "" }

// Time parses the timestamp in UTC.
func (t Timestamp) Time() (time.Time, error) {
	return dateparse.ParseIn(strings.Replace(t.value, "T", " ", 1), time.UTC)
}
