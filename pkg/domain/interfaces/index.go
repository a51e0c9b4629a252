package interfaces

import (
	"context"

	"github.com/hearsay-dev/hearsay/pkg/domain/model"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
)

// SearchHit is one nearest-neighbour result from a venue index
type SearchHit struct {
	Chunk      *model.Chunk
	Similarity float64
}

// VenueMeta describes the indexed state of a venue
type VenueMeta struct {
	VenueID     types.VenueID
	ModelVer    string
	ReviewCount int
	ChunkCount  int
}

// IndexRepository defines per-venue vector index persistence.
//
// All operations are scoped to a single venue; cross-venue leakage is a
// correctness bug. Implementations must be safe for concurrent readers,
// and ReplaceVenue must be atomic: queries observe either the prior
// complete snapshot or the new one, never a mix.
type IndexRepository interface {
	// UpsertChunks adds records to the venue index without a full rebuild.
	// modelVer tags the embedding model that produced the vectors; it must
	// match the stored venue version.
	UpsertChunks(ctx context.Context, venueID types.VenueID, modelVer string, records []*model.IndexRecord) error

	// ReplaceVenue atomically swaps the venue's entire index for a freshly
	// built one, updating the model version tag and counters.
	ReplaceVenue(ctx context.Context, venueID types.VenueID, modelVer string, reviewCount int, records []*model.IndexRecord) error

	// Search returns up to limit chunks nearest to the query vector by
	// cosine similarity. Ties break by chunk recency (newer wins), then by
	// chunk ID. Never returns a chunk absent from the venue's reverse map.
	Search(ctx context.Context, venueID types.VenueID, vector []float32, limit int) ([]SearchHit, error)

	// GetChunk resolves a chunk ID within the venue. Returns the backend's
	// ErrNotFound sentinel when absent.
	GetChunk(ctx context.Context, venueID types.VenueID, chunkID types.ChunkID) (*model.Chunk, error)

	// GetVenueMeta reports the venue's indexed state. Returns ErrNotFound
	// for venues that were never indexed.
	GetVenueMeta(ctx context.Context, venueID types.VenueID) (*VenueMeta, error)
}
