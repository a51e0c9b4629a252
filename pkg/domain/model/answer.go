package model

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
)

// Citation links a sentence of the answer to a chunk of review evidence.
type Citation struct {
	ChunkID types.ChunkID `json:"chunk_id"`
	// Quote is the cited chunk text, carried so the caller can render the
	// evidence without another index lookup.
	Quote string `json:"quote"`
}

// DraftSentence is one sentence of a generator draft with its declared
// citations. Factual sentences must cite; connective text may not.
type DraftSentence struct {
	Text      string          `json:"text"`
	Factual   bool            `json:"factual"`
	Citations []types.ChunkID `json:"citations"`
}

// DraftAnswer is the unverified generator output
type DraftAnswer struct {
	Sentences []DraftSentence
}

// VerifiedAnswer is a draft that survived grounding verification: every
// remaining citation resolves into the retrieval set and supports its
// sentence above the configured bar.
type VerifiedAnswer struct {
	Sentences []DraftSentence
	// Hedged sentences are weakly grounded ones kept under the hedge
	// policy instead of being removed.
	HedgedSentences int
}

// Text joins the surviving sentences into the final answer body
func (v *VerifiedAnswer) Text() string {
	out := ""
	for i, s := range v.Sentences {
		if i > 0 {
			out += " "
		}
		out += s.Text
	}
	return out
}

// Answer is the terminal artifact returned to the caller. Never mutated
// after construction.
type Answer struct {
	VenueID       types.VenueID       `json:"venue_id"`
	Question      string              `json:"question"`
	Text          string              `json:"text"`
	Citations     []Citation          `json:"citations"`
	Confidence    float64             `json:"confidence"`
	EvidenceCount int                 `json:"evidence_count"`
	Hedged        bool                `json:"hedged"`
	Refused       bool                `json:"refused"`
	RefusalReason types.RefusalReason `json:"refusal_reason,omitempty"`
}

// Validate enforces the output schema invariants. A failure here is a
// schema violation: fatal to the request, never emitted to the caller.
func (a *Answer) Validate() error {
	if err := a.VenueID.Validate(); err != nil {
		return goerr.Wrap(err, "answer schema violation", goerr.T(types.ErrTagSchema))
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return goerr.New("answer confidence out of [0,1]",
			goerr.T(types.ErrTagSchema),
			goerr.V("confidence", a.Confidence))
	}
	if a.Citations == nil {
		return goerr.New("answer citations must be non-nil (empty for refusals)",
			goerr.T(types.ErrTagSchema))
	}
	if a.Refused {
		if len(a.Citations) != 0 {
			return goerr.New("refusal answer carries citations", goerr.T(types.ErrTagSchema))
		}
		if a.Confidence != 0 {
			return goerr.New("refusal answer carries confidence", goerr.T(types.ErrTagSchema))
		}
		if !a.RefusalReason.IsValid() {
			return goerr.New("refusal answer missing reason",
				goerr.T(types.ErrTagSchema),
				goerr.V("reason", a.RefusalReason))
		}
		return nil
	}
	if a.Text == "" {
		return goerr.New("non-refusal answer has empty text", goerr.T(types.ErrTagSchema))
	}
	if len(a.Citations) == 0 {
		return goerr.New("non-refusal answer has no citations", goerr.T(types.ErrTagSchema))
	}
	if a.EvidenceCount < 1 {
		return goerr.New("non-refusal answer has no evidence",
			goerr.T(types.ErrTagSchema),
			goerr.V("evidenceCount", a.EvidenceCount))
	}
	if a.RefusalReason != "" {
		return goerr.New("non-refusal answer carries refusal reason", goerr.T(types.ErrTagSchema))
	}
	return nil
}
