package types

import "fmt"

// QueryState represents a stage of the per-query answer pipeline.
// COMPOSED and REFUSED are the only terminal states.
type QueryState string

const (
	QueryStateRetrieving QueryState = "RETRIEVING"
	QueryStateGenerating QueryState = "GENERATING"
	QueryStateVerifying  QueryState = "VERIFYING"
	QueryStateScoring    QueryState = "SCORING"
	QueryStateComposed   QueryState = "COMPOSED"
	QueryStateRefused    QueryState = "REFUSED"
)

// AllQueryStates returns all valid query states
func AllQueryStates() []QueryState {
	return []QueryState{
		QueryStateRetrieving,
		QueryStateGenerating,
		QueryStateVerifying,
		QueryStateScoring,
		QueryStateComposed,
		QueryStateRefused,
	}
}

// IsValid checks if the query state is valid
func (s QueryState) IsValid() bool {
	switch s {
	case QueryStateRetrieving,
		QueryStateGenerating,
		QueryStateVerifying,
		QueryStateScoring,
		QueryStateComposed,
		QueryStateRefused:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the state ends the pipeline
func (s QueryState) IsTerminal() bool {
	return s == QueryStateComposed || s == QueryStateRefused
}

// String returns the string representation of the query state
func (s QueryState) String() string {
	return string(s)
}

// ParseQueryState parses a string into a QueryState
func ParseQueryState(s string) (QueryState, error) {
	state := QueryState(s)
	if !state.IsValid() {
		return "", fmt.Errorf("invalid query state: %s", s)
	}
	return state, nil
}
