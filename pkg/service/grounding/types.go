package grounding

import (
	"github.com/hearsay-dev/hearsay/pkg/domain/model"
)

// Result is the outcome of verifying one draft against its evidence set
type Result struct {
	// Verified holds the surviving sentences. May be empty; see TotalFailure.
	Verified *model.VerifiedAnswer

	// Violations describes hard violations (citations outside the evidence
	// set) in a form the generator can act on during a repair retry.
	Violations []string

	// WeakSentences counts sentences whose citations resolved but did not
	// support the claim above the configured bar.
	WeakSentences int

	// RemovedSentences counts factual sentences dropped during verification
	RemovedSentences int
}

// Clean reports whether the draft had no hard violations
func (r *Result) Clean() bool {
	return len(r.Violations) == 0
}

// TotalFailure reports whether no supported factual sentence survived.
// The pipeline treats this as equivalent to empty retrieval: refusal.
func (r *Result) TotalFailure() bool {
	for _, s := range r.Verified.Sentences {
		if s.Factual {
			return false
		}
	}
	return true
}
