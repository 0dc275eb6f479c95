package types

import (
	"encoding/json"
	"errors"
	"net/url"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	tokenPattern    = regexp.MustCompile(`^[0-9A-F]{32}$`)
	recordIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	namePattern     = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// Token is a REDCap API token: exactly 32 uppercase hexadecimal characters.
// Lowercase tokens are rejected rather than normalized so a mistyped token
// is never silently accepted.
type Token struct {
	value string
}

// NewToken validates s as an API token.
func NewToken(s string) (Token, error) {
	err := check("token", s,
		validation.Required.Error("is required"),
		validation.Length(32, 32).Error("must be exactly 32 characters"),
		validation.Match(tokenPattern).Error("must contain only uppercase hexadecimal characters (0-9, A-F)"),
	)
	if err != nil {
		return Token{}, err
	}
	return Token{value: s}, nil
}

// Value returns the raw token for placement in a request body.
func (t Token) Value() string { return t.value }

// String returns a redacted form safe for logs.
func (t Token) String() string {
	if t.value == "" {
		return ""
	}
	return "****" + t.value[len(t.value)-4:]
}

// IsZero reports whether the token is unset.
func (t Token) IsZero() bool { return t.value == "" }

// BaseURL is the REDCap API endpoint. It is an absolute http or https URL
// with no query string, fragment, or embedded credentials.
type BaseURL struct {
	value string
}

// NewBaseURL validates s as an API endpoint URL.
func NewBaseURL(s string) (BaseURL, error) {
	err := check("url", s,
		validation.Required.Error("is required"),
		validation.By(validateBaseURL),
	)
	if err != nil {
		return BaseURL{}, err
	}
	return BaseURL{value: s}, nil
}

func validateBaseURL(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return errors.New("must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must use http or https scheme")
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	if u.RawQuery != "" || u.ForceQuery || strings.Contains(s, "?") {
		return errors.New("must not include a query string")
	}
	if u.Fragment != "" || strings.Contains(s, "#") {
		return errors.New("must not include a fragment")
	}
	if u.User != nil {
		return errors.New("must not include credentials")
	}
	return nil
}

func (u BaseURL) String() string { return u.value }

// IsZero reports whether the URL is unset.
func (u BaseURL) IsZero() bool { return u.value == "" }

// RecordID identifies a record. Only letters, digits, '_' and '-' are
// allowed.
type RecordID struct {
	value string
}

// NewRecordID validates s as a record identifier.
func NewRecordID(s string) (RecordID, error) {
	err := check("record", s,
		validation.Required.Error("is required"),
		validation.Match(recordIDPattern).Error("must contain only letters, digits, '_' or '-'"),
	)
	if err != nil {
		return RecordID{}, err
	}
	return RecordID{value: s}, nil
}

func (r RecordID) String() string { return r.value }

// IsZero reports whether the record ID is unset.
func (r RecordID) IsZero() bool { return r.value == "" }

// MarshalJSON implements json.Marshaler.
func (r RecordID) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.value)
}

// InstrumentName is the unique (machine) name of a REDCap instrument.
type InstrumentName struct {
	value string
}

// NewInstrumentName validates s against REDCap's variable naming rule:
// a lowercase letter followed by lowercase letters, digits or underscores.
func NewInstrumentName(s string) (InstrumentName, error) {
	if err := checkName("instrument", s); err != nil {
		return InstrumentName{}, err
	}
	return InstrumentName{value: s}, nil
}

func (n InstrumentName) String() string { return n.value }

// IsZero reports whether the name is unset.
func (n InstrumentName) IsZero() bool { return n.value == "" }

// FieldName is a REDCap field (variable) name.
type FieldName struct {
	value string
}

// NewFieldName validates s against REDCap's variable naming rule.
func NewFieldName(s string) (FieldName, error) {
	if err := checkName("field", s); err != nil {
		return FieldName{}, err
	}
	return FieldName{value: s}, nil
}

func (n FieldName) String() string { return n.value }

// IsZero reports whether the name is unset.
func (n FieldName) IsZero() bool { return n.value == "" }

// EventName is the unique name of a longitudinal event
// (e.g., "baseline_arm_1").
type EventName struct {
	value string
}

// NewEventName validates s as a unique event name.
func NewEventName(s string) (EventName, error) {
	if err := checkName("event", s); err != nil {
		return EventName{}, err
	}
	return EventName{value: s}, nil
}

func (n EventName) String() string { return n.value }

// IsZero reports whether the name is unset.
func (n EventName) IsZero() bool { return n.value == "" }

func checkName(field, s string) error {
	return check(field, s,
		validation.Required.Error("is required"),
		validation.Match(namePattern).Error("must start with a lowercase letter and contain only lowercase letters, digits or underscores"),
	)
}

// NonEmptyString is any string with at least one byte. Whitespace-only
// strings are valid.
type NonEmptyString struct {
	value string
}

// NewNonEmptyString validates that s is not empty.
func NewNonEmptyString(field, s string) (NonEmptyString, error) {
	if len(s) == 0 {
		return NonEmptyString{}, &ValidationError{Field: field, Reason: "must not be empty"}
	}
	return NonEmptyString{value: s}, nil
}

func (s NonEmptyString) String() string { return s.value }

// IsZero reports whether the string is unset.
func (s NonEmptyString) IsZero() bool { return s.value == "" }
