package retrieval

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/hearsay-dev/hearsay/pkg/domain/interfaces"
	"github.com/hearsay-dev/hearsay/pkg/domain/model"
	"github.com/hearsay-dev/hearsay/pkg/domain/model/config"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
	"github.com/hearsay-dev/hearsay/pkg/service/embedding"
	"github.com/hearsay-dev/hearsay/pkg/utils/logging"
)

// Service produces the ranked, deduplicated, relevance-thresholded evidence
// set for a query. An empty result is a valid outcome, not an error: it is
// the trigger for a refusal downstream.
type Service struct {
	index    interfaces.IndexRepository
	embedder embedding.Service
	cfg      *config.Pipeline
}

// New creates a new retrieval service
func New(index interfaces.IndexRepository, embedder embedding.Service, cfg *config.Pipeline) *Service {
	return &Service{
		index:    index,
		embedder: embedder,
		cfg:      cfg,
	}
}

// Retrieve embeds the query, searches the venue index and applies the
// threshold, dedupe and diversity policies.
func (s *Service) Retrieve(ctx context.Context, venueID types.VenueID, query string) (*model.RetrievalResult, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query", goerr.V("venueID", venueID))
	}

	hits, err := s.index.Search(ctx, venueID, vector, s.cfg.SearchTopK)
	if err != nil {
		return nil, goerr.Wrap(err, "vector search failed", goerr.V("venueID", venueID))
	}

	// Below-threshold chunks are excluded rather than padding the result:
	// fewer relevant chunks beat a noisy full set.
	thresholded := make([]model.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < s.cfg.MinSimilarity {
			continue
		}
		thresholded = append(thresholded, model.ScoredChunk{
			Chunk:      hit.Chunk,
			Similarity: hit.Similarity,
		})
	}

	deduped := dedupeOverlapping(thresholded)
	selected := selectDiverse(deduped, s.cfg.EvidenceCap, s.cfg.TieBand)

	logging.From(ctx).Debug("retrieval completed",
		"venueID", venueID,
		"hits", len(hits),
		"aboveThreshold", len(thresholded),
		"selected", len(selected),
	)

	return &model.RetrievalResult{
		VenueID: venueID,
		Query:   query,
		Chunks:  selected,
	}, nil
}

// dedupeOverlapping drops chunks that overlap a higher-scoring chunk of the
// same review. Input must be ordered by score descending.
func dedupeOverlapping(candidates []model.ScoredChunk) []model.ScoredChunk {
	kept := make([]model.ScoredChunk, 0, len(candidates))
	for _, cand := range candidates {
		duplicate := false
		for _, k := range kept {
			if cand.Chunk.Overlaps(k.Chunk) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, cand)
		}
	}
	return kept
}

// selectDiverse caps the evidence set, preferring chunks from not-yet-used
// reviews over raw score when scores are within the tie band. This keeps
// one verbose review from dominating the evidence set.
func selectDiverse(candidates []model.ScoredChunk, limit int, tieBand float64) []model.ScoredChunk {
	selected := make([]model.ScoredChunk, 0, limit)
	usedReviews := make(map[types.ReviewID]struct{})
	remaining := append([]model.ScoredChunk(nil), candidates...)

	for len(selected) < limit && len(remaining) > 0 {
		pick := 0
		if _, used := usedReviews[remaining[0].Chunk.ReviewID]; used {
			for k := 1; k < len(remaining); k++ {
				if remaining[0].Similarity-remaining[k].Similarity > tieBand {
					break
				}
				if _, u := usedReviews[remaining[k].Chunk.ReviewID]; !u {
					pick = k
					break
				}
			}
		}

		chosen := remaining[pick]
		selected = append(selected, chosen)
		usedReviews[chosen.Chunk.ReviewID] = struct{}{}
		remaining = append(remaining[:pick], remaining[pick+1:]...)
	}

	return selected
}
