package grounding

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
	"github.com/hearsay-dev/hearsay/pkg/domain/model"
	"github.com/hearsay-dev/hearsay/pkg/domain/model/config"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
	"github.com/hearsay-dev/hearsay/pkg/service/embedding"
	"github.com/hearsay-dev/hearsay/pkg/utils/logging"
)

// Verifier checks a draft answer against its evidence set: every citation
// must resolve into the retrieval result (structural check), and the cited
// text must plausibly support the adjoining claim (content check).
type Verifier struct {
	embedder embedding.Service
	cfg      *config.Pipeline
}

// New creates a new grounding verifier
func New(embedder embedding.Service, cfg *config.Pipeline) *Verifier {
	return &Verifier{
		embedder: embedder,
		cfg:      cfg,
	}
}

// Verify audits every citation in the draft. Hallucinated citations are
// stripped and reported as hard violations; weakly supported sentences are
// removed or hedged per policy. The returned Result is never nil on a nil
// error.
func (v *Verifier) Verify(ctx context.Context, draft *model.DraftAnswer, evidence *model.RetrievalResult) (*Result, error) {
	result := &Result{
		Verified: &model.VerifiedAnswer{},
	}

	for _, sentence := range draft.Sentences {
		if !sentence.Factual {
			// Connective text needs no citation
			result.Verified.Sentences = append(result.Verified.Sentences, sentence)
			continue
		}

		kept, violations := v.resolveCitations(sentence, evidence)
		result.Violations = append(result.Violations, violations...)

		if len(kept) == 0 {
			// Factual claim with no surviving citation is ungrounded by
			// construction.
			result.Violations = append(result.Violations,
				fmt.Sprintf("the claim %q has no valid citation", sentence.Text))
			result.RemovedSentences++
			continue
		}

		supported, err := v.isSupported(ctx, sentence.Text, kept, evidence)
		if err != nil {
			return nil, goerr.Wrap(err, "support check failed")
		}

		if !supported {
			result.WeakSentences++
			switch v.cfg.WeakGroundingPolicy {
			case config.WeakGroundingHedge:
				hedged := sentence
				hedged.Text = "Reviews are less clear on this point: " + sentence.Text
				hedged.Citations = kept
				result.Verified.Sentences = append(result.Verified.Sentences, hedged)
				result.Verified.HedgedSentences++
			default:
				result.RemovedSentences++
			}
			continue
		}

		verified := sentence
		verified.Citations = kept
		result.Verified.Sentences = append(result.Verified.Sentences, verified)
	}

	// Connective text without any surviving factual sentence is noise
	if result.TotalFailure() {
		result.Verified.Sentences = nil
	}

	logging.From(ctx).Debug("grounding verification completed",
		"sentences", len(draft.Sentences),
		"violations", len(result.Violations),
		"weak", result.WeakSentences,
		"removed", result.RemovedSentences,
	)

	return result, nil
}

// resolveCitations applies the structural check: citations outside the
// evidence set are stripped and reported.
func (v *Verifier) resolveCitations(sentence model.DraftSentence, evidence *model.RetrievalResult) ([]types.ChunkID, []string) {
	var kept []types.ChunkID
	var violations []string
	seen := make(map[types.ChunkID]struct{})

	for _, id := range sentence.Citations {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if !evidence.Contains(id) {
			violations = append(violations,
				fmt.Sprintf("citation %q next to %q does not exist in the evidence list", id, sentence.Text))
			continue
		}
		kept = append(kept, id)
	}

	return kept, violations
}

// isSupported applies the content check: lexical overlap between claim and
// cited text first, embedding similarity as the secondary signal.
func (v *Verifier) isSupported(ctx context.Context, claim string, citations []types.ChunkID, evidence *model.RetrievalResult) (bool, error) {
	for _, id := range citations {
		chunk := evidence.Lookup(id)
		if chunk == nil {
			continue
		}
		if lexicalOverlap(claim, chunk.Text) >= v.cfg.MinSupportOverlap {
			return true, nil
		}
	}

	// No lexical hit: fall back to a semantic check against the single
	// best-overlapping cited chunk.
	vectors, err := v.embedder.EmbedBatch(ctx, supportCheckTexts(claim, citations, evidence))
	if err != nil {
		return false, err
	}

	claimVec := vectors[0]
	for _, chunkVec := range vectors[1:] {
		if cosineSimilarity(claimVec, chunkVec) >= v.cfg.MinSupportSimilarity {
			return true, nil
		}
	}

	return false, nil
}

func supportCheckTexts(claim string, citations []types.ChunkID, evidence *model.RetrievalResult) []string {
	texts := make([]string, 0, len(citations)+1)
	texts = append(texts, claim)
	for _, id := range citations {
		if chunk := evidence.Lookup(id); chunk != nil {
			texts = append(texts, chunk.Text)
		}
	}
	return texts
}

// stopwords excluded from the lexical overlap signal
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"it": {}, "its": {}, "this": {}, "that": {}, "there": {},
	"to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "for": {},
	"with": {}, "very": {}, "not": {}, "no": {}, "so": {}, "as": {},
}

func contentTokens(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(tok) < 3 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		tokens[tok] = struct{}{}
	}
	return tokens
}

// lexicalOverlap is the fraction of the claim's content tokens present in
// the cited text.
func lexicalOverlap(claim, cited string) float64 {
	claimTokens := contentTokens(claim)
	if len(claimTokens) == 0 {
		return 0
	}
	citedTokens := contentTokens(cited)

	shared := 0
	for tok := range claimTokens {
		if _, ok := citedTokens[tok]; ok {
			shared++
		}
	}

	return float64(shared) / float64(len(claimTokens))
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
