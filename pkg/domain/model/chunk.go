package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
)

// Chunk is the smallest citable unit of review text. Its span is a verbatim
// substring of the parent review, which is what makes citations auditable.
type Chunk struct {
	ID          types.ChunkID  `json:"chunk_id"`
	ReviewID    types.ReviewID `json:"review_id"`
	VenueID     types.VenueID  `json:"venue_id"`
	AuthorID    types.AuthorID `json:"author_id,omitempty"`
	Text        string         `json:"text"`
	StartOffset int            `json:"start_offset"`
	EndOffset   int            `json:"end_offset"`
	Rating      *float64       `json:"rating,omitempty"`
	PostedAt    time.Time      `json:"posted_at"`
}

// Validate checks the provenance invariant against the parent review text:
// start < end and the span is the verbatim substring at those byte offsets.
func (c *Chunk) Validate(reviewText string) error {
	if c.StartOffset >= c.EndOffset {
		return goerr.New("chunk span is empty or inverted",
			goerr.V("chunkID", c.ID),
			goerr.V("start", c.StartOffset),
			goerr.V("end", c.EndOffset))
	}
	if c.EndOffset > len(reviewText) {
		return goerr.New("chunk span exceeds review text",
			goerr.V("chunkID", c.ID),
			goerr.V("end", c.EndOffset),
			goerr.V("textLen", len(reviewText)))
	}
	if reviewText[c.StartOffset:c.EndOffset] != c.Text {
		return goerr.New("chunk text is not a verbatim substring of its review",
			goerr.V("chunkID", c.ID),
			goerr.V("reviewID", c.ReviewID))
	}
	return nil
}

// Overlaps reports whether two chunks from the same review share any span.
// Used by retrieval dedupe; chunks of different reviews never overlap.
func (c *Chunk) Overlaps(other *Chunk) bool {
	if c.ReviewID != other.ReviewID {
		return false
	}
	return c.StartOffset < other.EndOffset && other.StartOffset < c.EndOffset
}

// IndexRecord pairs a chunk with its embedding vector inside a venue index.
// The vector is recomputed only when the embedding model version changes.
type IndexRecord struct {
	Chunk     *Chunk
	Embedding []float32
}
