package model

import (
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
)

// ScoredChunk is a retrieved chunk with its cosine similarity to the query.
type ScoredChunk struct {
	Chunk      *Chunk
	Similarity float64
}

// RetrievalResult is the ordered, deduplicated, relevance-thresholded
// evidence set for one query. Empty is a valid value: it triggers a refusal
// downstream, it is not an error.
type RetrievalResult struct {
	VenueID types.VenueID
	Query   string
	Chunks  []ScoredChunk
}

// Empty reports whether no chunk survived thresholding
func (r *RetrievalResult) Empty() bool {
	return len(r.Chunks) == 0
}

// Contains reports whether the chunk ID belongs to the evidence set.
// Citations pointing outside this set are grounding violations.
func (r *RetrievalResult) Contains(id types.ChunkID) bool {
	for _, sc := range r.Chunks {
		if sc.Chunk.ID == id {
			return true
		}
	}
	return false
}

// Lookup returns the retrieved chunk for the given ID, or nil
func (r *RetrievalResult) Lookup(id types.ChunkID) *Chunk {
	for _, sc := range r.Chunks {
		if sc.Chunk.ID == id {
			return sc.Chunk
		}
	}
	return nil
}

// DistinctReviews counts how many distinct source reviews contributed chunks
func (r *RetrievalResult) DistinctReviews() int {
	seen := make(map[types.ReviewID]struct{}, len(r.Chunks))
	for _, sc := range r.Chunks {
		seen[sc.Chunk.ReviewID] = struct{}{}
	}
	return len(seen)
}
