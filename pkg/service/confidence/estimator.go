package confidence

import (
	"context"
	"time"

	"github.com/hearsay-dev/hearsay/pkg/domain/model"
	"github.com/hearsay-dev/hearsay/pkg/domain/model/config"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
	"github.com/hearsay-dev/hearsay/pkg/utils/logging"
)

// Score is the evidence-coverage assessment of a verified answer
type Score struct {
	// Confidence is the weighted combination of coverage, recency and
	// reviewer independence, capped at the configured ceiling.
	Confidence float64

	// EvidenceCount is the number of distinct reviews cited by the answer
	EvidenceCount int
}

// Estimator computes answer confidence from evidence coverage. It never
// returns a value above the configured ceiling: the engine must not present
// its output as objective truth.
type Estimator struct {
	cfg *config.Pipeline
}

// New creates a new confidence estimator
func New(cfg *config.Pipeline) *Estimator {
	return &Estimator{cfg: cfg}
}

// Estimate scores the verified answer against the venue's full review set
func (e *Estimator) Estimate(ctx context.Context, verified *model.VerifiedAnswer, evidence *model.RetrievalResult, totalReviews int) Score {
	supporting := citedChunks(verified, evidence)
	if len(supporting) == 0 {
		return Score{}
	}

	reviews := make(map[types.ReviewID]struct{})
	authors := make(map[types.AuthorID]struct{})
	anonymous := 0
	for _, chunk := range supporting {
		reviews[chunk.ReviewID] = struct{}{}
		if chunk.AuthorID != "" {
			authors[chunk.AuthorID] = struct{}{}
		}
	}
	evidenceCount := len(reviews)

	// Anonymous reviews each count as their own author: the independence
	// signal degrades gracefully when the ingestion source lacks it.
	seenAnonReviews := make(map[types.ReviewID]struct{})
	for _, chunk := range supporting {
		if chunk.AuthorID == "" {
			if _, dup := seenAnonReviews[chunk.ReviewID]; !dup {
				seenAnonReviews[chunk.ReviewID] = struct{}{}
				anonymous++
			}
		}
	}

	coverage := coverageScore(evidenceCount, totalReviews)
	recency := e.recencyScore(supporting)
	independence := independenceScore(len(authors)+anonymous, evidenceCount)

	totalWeight := e.cfg.CoverageWeight + e.cfg.RecencyWeight + e.cfg.IndependenceWeight
	confidence := (e.cfg.CoverageWeight*coverage +
		e.cfg.RecencyWeight*recency +
		e.cfg.IndependenceWeight*independence) / totalWeight

	if confidence > e.cfg.ConfidenceCeiling {
		confidence = e.cfg.ConfidenceCeiling
	}
	if confidence < 0 {
		confidence = 0
	}

	logging.From(ctx).Debug("confidence estimated",
		"evidenceCount", evidenceCount,
		"totalReviews", totalReviews,
		"coverage", coverage,
		"recency", recency,
		"independence", independence,
		"confidence", confidence,
	)

	return Score{
		Confidence:    confidence,
		EvidenceCount: evidenceCount,
	}
}

// citedChunks resolves every citation of the verified answer, one chunk per
// distinct chunk ID.
func citedChunks(verified *model.VerifiedAnswer, evidence *model.RetrievalResult) []*model.Chunk {
	seen := make(map[types.ChunkID]struct{})
	var chunks []*model.Chunk
	for _, sentence := range verified.Sentences {
		for _, id := range sentence.Citations {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if chunk := evidence.Lookup(id); chunk != nil {
				chunks = append(chunks, chunk)
			}
		}
	}
	return chunks
}

// coverageScore captures the "3 of 12 reviews" signal. Strictly increasing
// in evidenceCount for a fixed review total.
func coverageScore(evidenceCount, totalReviews int) float64 {
	if totalReviews < evidenceCount {
		totalReviews = evidenceCount
	}
	if totalReviews == 0 {
		return 0
	}
	return float64(evidenceCount) / float64(totalReviews)
}

// recencyScore grades the age spread of supporting chunks. Mixed recency
// with contradictory ratings is suppressed explicitly rather than silently
// averaged away.
func (e *Estimator) recencyScore(supporting []*model.Chunk) float64 {
	cutoff := time.Now().Add(-e.cfg.RecencyHorizon)

	recent, stale := 0, 0
	minRating, maxRating := 0.0, 0.0
	haveRating := false
	for _, chunk := range supporting {
		if chunk.PostedAt.After(cutoff) {
			recent++
		} else {
			stale++
		}
		if chunk.Rating != nil {
			if !haveRating {
				minRating, maxRating = *chunk.Rating, *chunk.Rating
				haveRating = true
			} else {
				if *chunk.Rating < minRating {
					minRating = *chunk.Rating
				}
				if *chunk.Rating > maxRating {
					maxRating = *chunk.Rating
				}
			}
		}
	}

	switch {
	case stale == 0:
		return 1.0
	case recent == 0:
		return 0.3
	default:
		// Mixed recency
		if haveRating && maxRating-minRating >= 2.0 {
			// Contradictory sentiment across time: the venue may have
			// changed, so the evidence is weaker than its count suggests
			return 0.3
		}
		return 0.6
	}
}

// independenceScore discounts repeated reviewers: the same person saying a
// thing three times is weaker evidence than three people saying it once.
func independenceScore(distinctAuthors, evidenceCount int) float64 {
	if evidenceCount == 0 {
		return 0
	}
	if distinctAuthors > evidenceCount {
		distinctAuthors = evidenceCount
	}
	return float64(distinctAuthors) / float64(evidenceCount)
}
