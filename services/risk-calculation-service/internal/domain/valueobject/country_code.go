package valueobject

import (
	"fmt"
	"regexp"
	"strings"
)

var countryCodeRe = regexp.MustCompile(`^[A-Z]{2}$`)

// CountryCode is an ISO 3166-1 alpha-2 code.
type CountryCode struct {
	value string
}

// NewCountryCode normalizes and validates a 2-letter country code.
func NewCountryCode(s string) (CountryCode, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !countryCodeRe.MatchString(s) {
		return CountryCode{}, fmt.Errorf("invalid country code %q: must be 2 letters", s)
	}
	return CountryCode{value: s}, nil
}

// MustCountryCode panics on invalid input. Intended for package-level tables and tests.
func MustCountryCode(s string) CountryCode {
	c, err := NewCountryCode(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CountryCode) String() string               { return c.value }
func (c CountryCode) IsZero() bool                 { return c.value == "" }
func (c CountryCode) Equal(other CountryCode) bool { return c.value == other.value }
