package valueobject

import (
	"fmt"
	"regexp"
	"strings"
)

var leiRe = regexp.MustCompile(`^[A-Z0-9]{20}$`)

// LEICode is an ISO 17442 Legal Entity Identifier.
type LEICode struct {
	value string
}

// NewLEICode validates a 20-character alphanumeric LEI. Lower case is accepted and upper-cased.
func NewLEICode(s string) (LEICode, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !leiRe.MatchString(s) {
		return LEICode{}, fmt.Errorf("invalid LEI code %q: must be 20 alphanumeric characters", s)
	}
	return LEICode{value: s}, nil
}

func (l LEICode) String() string { return l.value }

// CounterpartyRef identifies the obligor of an exposure.
type CounterpartyRef struct {
	id   string
	name string
	lei  *LEICode
}

// NewCounterpartyRef validates the counterparty. A blank lei means the counterparty has none;
// a non-blank but malformed lei is an error.
func NewCounterpartyRef(id, name, lei string) (CounterpartyRef, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return CounterpartyRef{}, fmt.Errorf("counterparty ID cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return CounterpartyRef{}, fmt.Errorf("counterparty name cannot be empty")
	}

	ref := CounterpartyRef{id: id, name: name}
	if strings.TrimSpace(lei) != "" {
		code, err := NewLEICode(lei)
		if err != nil {
			return CounterpartyRef{}, err
		}
		ref.lei = &code
	}
	return ref, nil
}

func (c CounterpartyRef) ID() string   { return c.id }
func (c CounterpartyRef) Name() string { return c.name }

// LEI returns the LEI and whether one is present.
func (c CounterpartyRef) LEI() (LEICode, bool) {
	if c.lei == nil {
		return LEICode{}, false
	}
	return *c.lei, true
}

// MatchKey is the normalized identifier used to match mitigations to exposures.
func (c CounterpartyRef) MatchKey() string {
	return NormalizeCounterpartyID(c.id)
}

// NormalizeCounterpartyID trims and upper-cases a raw counterparty identifier.
func NormalizeCounterpartyID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
