package valueobject

import "fmt"

// ProcessingState is the persisted name of a PortfolioAnalysis lifecycle phase.
type ProcessingState struct {
	value string
}

const (
	statePending    = "PENDING"
	stateInProgress = "IN_PROGRESS"
	stateCompleted  = "COMPLETED"
	stateFailed     = "FAILED"
)

var (
	StatePending    = ProcessingState{value: statePending}
	StateInProgress = ProcessingState{value: stateInProgress}
	StateCompleted  = ProcessingState{value: stateCompleted}
	StateFailed     = ProcessingState{value: stateFailed}
)

var validProcessingStates = map[string]ProcessingState{
	statePending:    StatePending,
	stateInProgress: StateInProgress,
	stateCompleted:  StateCompleted,
	stateFailed:     StateFailed,
}

// NewProcessingState creates a ProcessingState from a string, validating it is known.
func NewProcessingState(s string) (ProcessingState, error) {
	ps, ok := validProcessingStates[s]
	if !ok {
		return ProcessingState{}, fmt.Errorf("invalid processing state: %q", s)
	}
	return ps, nil
}

// String returns the string representation of the ProcessingState.
func (s ProcessingState) String() string {
	return s.value
}

// IsTerminal reports whether no further transitions are possible.
func (s ProcessingState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Equal returns true if two ProcessingState values are equal.
func (s ProcessingState) Equal(other ProcessingState) bool {
	return s.value == other.value
}

// ConcentrationLevel classifies an HHI value.
type ConcentrationLevel struct {
	value string
}

var (
	ConcentrationLow      = ConcentrationLevel{value: "LOW"}
	ConcentrationModerate = ConcentrationLevel{value: "MODERATE"}
	ConcentrationHigh     = ConcentrationLevel{value: "HIGH"}
)

// NewConcentrationLevel creates a ConcentrationLevel from its name.
func NewConcentrationLevel(s string) (ConcentrationLevel, error) {
	switch s {
	case ConcentrationLow.value:
		return ConcentrationLow, nil
	case ConcentrationModerate.value:
		return ConcentrationModerate, nil
	case ConcentrationHigh.value:
		return ConcentrationHigh, nil
	default:
		return ConcentrationLevel{}, fmt.Errorf("invalid concentration level: %q", s)
	}
}

func (c ConcentrationLevel) String() string { return c.value }
