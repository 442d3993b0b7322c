package model

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// MitigationRecord is a raw credit-risk-mitigation line as it arrives from the bank
// file, before conversion. Value may be negative here; conversion rejects it.
type MitigationRecord struct {
	CounterpartyID string
	Type           string
	Value          decimal.Decimal
	Currency       string
}

// Mitigation is a credit-risk mitigation already expressed in EUR.
type Mitigation struct {
	counterpartyKey string
	mitigationType  valueobject.MitigationType
	eurValue        valueobject.EurAmount
}

// NewMitigation creates a Mitigation keyed by the normalized counterparty id.
func NewMitigation(counterpartyID string, mitigationType valueobject.MitigationType, eurValue valueobject.EurAmount) (Mitigation, error) {
	key := valueobject.NormalizeCounterpartyID(counterpartyID)
	if key == "" {
		return Mitigation{}, fmt.Errorf("mitigation counterparty ID cannot be empty")
	}
	if mitigationType == (valueobject.MitigationType{}) {
		return Mitigation{}, fmt.Errorf("mitigation type is required")
	}
	return Mitigation{counterpartyKey: key, mitigationType: mitigationType, eurValue: eurValue}, nil
}

func (m Mitigation) CounterpartyKey() string          { return m.counterpartyKey }
func (m Mitigation) Type() valueobject.MitigationType { return m.mitigationType }
func (m Mitigation) EurValue() valueobject.EurAmount  { return m.eurValue }

// AppliesTo reports whether the mitigation belongs to the exposure's counterparty.
func (m Mitigation) AppliesTo(e ExposureRecording) bool {
	return m.counterpartyKey == e.Counterparty().MatchKey()
}
