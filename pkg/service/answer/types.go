package answer

import (
	"context"

	"github.com/hearsay-dev/hearsay/pkg/domain/model"
)

// Service is the capability interface for citation-constrained answer
// generation. Implementations must treat the retrieval result as the only
// permissible evidence; every factual sentence cites chunk IDs drawn from
// it. Swappable so tests can inject deterministic generators.
type Service interface {
	// Generate produces a draft answer for the question from the evidence
	// set. Never called with an empty evidence set; the pipeline
	// short-circuits to a refusal first.
	Generate(ctx context.Context, input Input) (*model.DraftAnswer, error)
}

// Input represents one generation attempt
type Input struct {
	Question string
	Evidence *model.RetrievalResult

	// Violations from the previous attempt, set on retries. The generator
	// switches to a repair prompt that names the offending citations.
	Violations []string
}

// llmResponse is the structured output from the LLM
type llmResponse struct {
	Sentences []llmSentence `json:"sentences"`
}

// llmSentence is one sentence of the draft with its declared citations
type llmSentence struct {
	Text      string   `json:"text"`
	Factual   bool     `json:"factual"`
	Citations []string `json:"citations"`
}
