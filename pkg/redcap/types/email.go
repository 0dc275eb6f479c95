package types

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MaxEmailLength is the longest address accepted (RFC 5321 path limit).
const MaxEmailLength = 254

const maxLocalPartLength = 64

// Email is an address of the form local@domain.tld.
type Email struct {
	value string
}

// NewEmail validates s as an email address. The check is a single linear
// scan so adversarial input cannot cause excessive work.
func NewEmail(s string) (Email, error) {
	err := check("email", s,
		validation.Required.Error("is required"),
		validation.RuneLength(0, MaxEmailLength).Error("must be at most 254 characters"),
		validation.By(validateEmail),
	)
	if err != nil {
		return Email{}, err
	}
	return Email{value: s}, nil
}

func (e Email) String() string { return e.value }

// IsZero reports whether the address is unset.
func (e Email) IsZero() bool { return e.value == "" }

// Domain returns the part after '@'.
func (e Email) Domain() string {
	return e.value[strings.LastIndexByte(e.value, '@')+1:]
}

func validateEmail(value interface{}) error {
	s, _ := value.(string)
	if len(s) > MaxEmailLength {
		return errors.New("must be at most 254 characters")
	}

	at := strings.IndexByte(s, '@')
	if at < 0 {
		return errors.New("must contain '@'")
	}
	if strings.IndexByte(s[at+1:], '@') >= 0 {
		return errors.New("must contain exactly one '@'")
	}

	local, domain := s[:at], s[at+1:]
	if err := validateLocalPart(local); err != nil {
		return err
	}
	return validateDomain(domain)
}

func validateLocalPart(local string) error {
	if local == "" {
		return errors.New("must have a local part before '@'")
	}
	if len(local) > maxLocalPartLength {
		return errors.New("local part must be at most 64 characters")
	}
	if local[0] == '.' || local[len(local)-1] == '.' {
		return errors.New("local part must not start or end with '.'")
	}
	prevDot := false
	for i := 0; i < len(local); i++ {
		c := local[i]
		switch {
		case c == '.':
			if prevDot {
				return errors.New("local part must not contain consecutive dots")
			}
			prevDot = true
			continue
		case isAlnum(c), strings.IndexByte("!#$%&'*+/=?^_`{|}~-", c) >= 0:
		default:
			return errors.New("local part contains an invalid character")
		}
		prevDot = false
	}
	return nil
}

func validateDomain(domain string) error {
	if domain == "" {
		return errors.New("must have a domain after '@'")
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return errors.New("domain must include a top-level domain")
	}
	for _, label := range labels {
		if label == "" {
			return errors.New("domain must not contain empty labels")
		}
		if len(label) > 63 {
			return errors.New("domain labels must be at most 63 characters")
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return errors.New("domain labels must not start or end with '-'")
		}
		for i := 0; i < len(label); i++ {
			if c := label[i]; !isAlnum(c) && c != '-' {
				return errors.New("domain contains an invalid character")
			}
		}
	}

	tld := labels[len(labels)-1]
	if len(tld) < 2 {
		return errors.New("top-level domain must be at least 2 characters")
	}
	for i := 0; i < len(tld); i++ {
		if !isAlpha(tld[i]) {
			return errors.New("top-level domain must contain only letters")
		}
	}
	return nil
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAlnum(c byte) bool {
	return isAlpha(c) || (c >= '0' && c <= '9')
}
