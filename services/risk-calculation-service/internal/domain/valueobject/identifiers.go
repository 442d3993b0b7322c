package valueobject

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// exposureNamespace scopes name-based exposure IDs derived from source references.
var exposureNamespace = uuid.MustParse("6f1d3c2e-4b0a-5e7f-9a3c-1d2e3f4a5b6c")

// BatchID identifies a bank's reporting batch.
type BatchID struct {
	value string
}

// NewBatchID trims and validates a batch identifier.
func NewBatchID(s string) (BatchID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return BatchID{}, fmt.Errorf("batch ID cannot be empty")
	}
	return BatchID{value: s}, nil
}

func (b BatchID) String() string { return b.value }
func (b BatchID) IsZero() bool   { return b.value == "" }

// ExposureID is the UUID identity of an exposure recording.
type ExposureID struct {
	value uuid.UUID
}

// NewExposureID generates a random ExposureID.
func NewExposureID() ExposureID {
	return ExposureID{value: uuid.New()}
}

// ParseExposureID parses a canonical UUID string.
func ParseExposureID(s string) (ExposureID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return ExposureID{}, fmt.Errorf("invalid exposure ID %q: %w", s, err)
	}
	if id == uuid.Nil {
		return ExposureID{}, fmt.Errorf("exposure ID cannot be nil")
	}
	return ExposureID{value: id}, nil
}

// ExposureIDFromSource accepts a UUID as-is and maps any other source reference
// (e.g. "EXP001") to a stable name-based UUID scoped to the batch.
func ExposureIDFromSource(batch BatchID, sourceRef string) (ExposureID, error) {
	ref := strings.TrimSpace(sourceRef)
	if ref == "" {
		return ExposureID{}, fmt.Errorf("exposure reference cannot be empty")
	}
	if id, err := ParseExposureID(ref); err == nil {
		return id, nil
	}
	return ExposureID{value: uuid.NewSHA1(exposureNamespace, []byte(batch.value+"/"+ref))}, nil
}

func (e ExposureID) UUID() uuid.UUID { return e.value }
func (e ExposureID) String() string  { return e.value.String() }
func (e ExposureID) IsZero() bool    { return e.value == uuid.Nil }

// InstrumentID is the bank-side identifier of the financial instrument.
type InstrumentID struct {
	value string
}

// NewInstrumentID trims and validates an instrument identifier.
func NewInstrumentID(s string) (InstrumentID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return InstrumentID{}, fmt.Errorf("instrument ID cannot be empty")
	}
	return InstrumentID{value: s}, nil
}

func (i InstrumentID) String() string { return i.value }
