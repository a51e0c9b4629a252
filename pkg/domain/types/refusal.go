package types

// RefusalReason categorizes why the pipeline declined to answer.
// A refusal is a first-class answer state, not a service error.
type RefusalReason string

const (
	// RefusalNoEvidence: retrieval found no chunks above the relevance
	// threshold for the question.
	RefusalNoEvidence RefusalReason = "NO_EVIDENCE"

	// RefusalUnsupported: a draft was produced but grounding verification
	// stripped every sentence.
	RefusalUnsupported RefusalReason = "UNSUPPORTED"

	// RefusalRetryExhausted: the generator kept producing hallucinated
	// citations and the bounded retry budget ran out.
	RefusalRetryExhausted RefusalReason = "RETRY_EXHAUSTED"
)

// IsValid checks if the refusal reason is valid
func (r RefusalReason) IsValid() bool {
	switch r {
	case RefusalNoEvidence, RefusalUnsupported, RefusalRetryExhausted:
		return true
	default:
		return false
	}
}

// String returns the string representation of the refusal reason
func (r RefusalReason) String() string {
	return string(r)
}

// Message returns the human-readable explanation attached to refusal answers
func (r RefusalReason) Message() string {
	switch r {
	case RefusalNoEvidence:
		return "no reviews mention this topic"
	case RefusalUnsupported:
		return "reviews were found but none of them support an answer to this question"
	case RefusalRetryExhausted:
		return "could not produce an answer backed by the available reviews"
	default:
		return "insufficient evidence"
	}
}
