package valueobject

import (
	"fmt"
	"strings"
)

// InstrumentType is the kind of financial instrument behind an exposure.
type InstrumentType struct {
	value string
}

const (
	instrumentLoan       = "LOAN"
	instrumentBond       = "BOND"
	instrumentDerivative = "DERIVATIVE"
	instrumentGuarantee  = "GUARANTEE"
	instrumentCreditLine = "CREDIT_LINE"
	instrumentRepo       = "REPO"
	instrumentSecurity   = "SECURITY"
	instrumentInterbank  = "INTERBANK"
	instrumentOther      = "OTHER"
)

var (
	InstrumentTypeLoan       = InstrumentType{value: instrumentLoan}
	InstrumentTypeBond       = InstrumentType{value: instrumentBond}
	InstrumentTypeDerivative = InstrumentType{value: instrumentDerivative}
	InstrumentTypeGuarantee  = InstrumentType{value: instrumentGuarantee}
	InstrumentTypeCreditLine = InstrumentType{value: instrumentCreditLine}
	InstrumentTypeRepo       = InstrumentType{value: instrumentRepo}
	InstrumentTypeSecurity   = InstrumentType{value: instrumentSecurity}
	InstrumentTypeInterbank  = InstrumentType{value: instrumentInterbank}
	InstrumentTypeOther      = InstrumentType{value: instrumentOther}
)

var validInstrumentTypes = map[string]InstrumentType{
	instrumentLoan:       InstrumentTypeLoan,
	instrumentBond:       InstrumentTypeBond,
	instrumentDerivative: InstrumentTypeDerivative,
	instrumentGuarantee:  InstrumentTypeGuarantee,
	instrumentCreditLine: InstrumentTypeCreditLine,
	instrumentRepo:       InstrumentTypeRepo,
	instrumentSecurity:   InstrumentTypeSecurity,
	instrumentInterbank:  InstrumentTypeInterbank,
	instrumentOther:      InstrumentTypeOther,
}

// NewInstrumentType creates an InstrumentType, rejecting unknown values.
func NewInstrumentType(s string) (InstrumentType, error) {
	it, ok := validInstrumentTypes[s]
	if !ok {
		return InstrumentType{}, fmt.Errorf("invalid instrument type: %q", s)
	}
	return it, nil
}

// ParseInstrumentType is the lenient variant used for bank files: it normalizes
// case and separators and maps anything unknown to OTHER.
func ParseInstrumentType(s string) InstrumentType {
	if it, ok := validInstrumentTypes[normalizeCode(s)]; ok {
		return it
	}
	return InstrumentTypeOther
}

func (i InstrumentType) String() string { return i.value }
func (i InstrumentType) IsZero() bool   { return i.value == "" }

// Equal returns true if two InstrumentType values are equal.
func (i InstrumentType) Equal(other InstrumentType) bool {
	return i.value == other.value
}

// BalanceSheetType distinguishes on- and off-balance-sheet exposures.
type BalanceSheetType struct {
	value string
}

var (
	BalanceSheetOn  = BalanceSheetType{value: "ON_BALANCE"}
	BalanceSheetOff = BalanceSheetType{value: "OFF_BALANCE"}
)

// NewBalanceSheetType creates a BalanceSheetType, rejecting unknown values.
func NewBalanceSheetType(s string) (BalanceSheetType, error) {
	switch s {
	case BalanceSheetOn.value:
		return BalanceSheetOn, nil
	case BalanceSheetOff.value:
		return BalanceSheetOff, nil
	default:
		return BalanceSheetType{}, fmt.Errorf("invalid balance sheet type: %q", s)
	}
}

// ParseBalanceSheetType maps unknown or empty values to ON_BALANCE.
func ParseBalanceSheetType(s string) BalanceSheetType {
	if bs, err := NewBalanceSheetType(normalizeCode(s)); err == nil {
		return bs
	}
	return BalanceSheetOn
}

func (b BalanceSheetType) String() string { return b.value }

// normalizeCode upper-cases and replaces spaces and dashes with underscores.
func normalizeCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// NormalizeCode exposes the normalization used for classification codes.
func NormalizeCode(s string) string {
	return normalizeCode(s)
}
