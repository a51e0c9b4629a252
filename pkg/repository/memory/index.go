package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/hearsay-dev/hearsay/pkg/domain/interfaces"
	"github.com/hearsay-dev/hearsay/pkg/domain/model"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
)

// venueIndex is one complete, immutable-after-build generation of a venue's
// index. ReplaceVenue swaps the whole value so concurrent readers see either
// the old generation or the new one, never a mix.
type venueIndex struct {
	modelVer    string
	reviewCount int
	records     map[types.ChunkID]*model.IndexRecord
}

type indexRepository struct {
	mu     sync.RWMutex
	venues map[types.VenueID]*venueIndex
}

func newIndexRepository() *indexRepository {
	return &indexRepository{
		venues: make(map[types.VenueID]*venueIndex),
	}
}

func copyChunk(c *model.Chunk) *model.Chunk {
	copied := *c
	if c.Rating != nil {
		rating := *c.Rating
		copied.Rating = &rating
	}
	return &copied
}

func copyRecord(r *model.IndexRecord) *model.IndexRecord {
	copied := &model.IndexRecord{
		Chunk: copyChunk(r.Chunk),
	}
	if r.Embedding != nil {
		copied.Embedding = make([]float32, len(r.Embedding))
		copy(copied.Embedding, r.Embedding)
	}
	return copied
}

func (r *indexRepository) UpsertChunks(ctx context.Context, venueID types.VenueID, modelVer string, records []*model.IndexRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	vi, exists := r.venues[venueID]
	if !exists {
		vi = &venueIndex{
			modelVer: modelVer,
			records:  make(map[types.ChunkID]*model.IndexRecord),
		}
		r.venues[venueID] = vi
	}

	if vi.modelVer != modelVer {
		return goerr.Wrap(ErrVersionMismatch, "refusing additive insert into incompatible index",
			goerr.V("venueID", venueID),
			goerr.V("indexed", vi.modelVer),
			goerr.V("requested", modelVer))
	}

	// Re-delivered batches must not inflate the review count: it is the
	// coverage denominator in confidence scoring.
	existing := make(map[types.ReviewID]struct{}, len(vi.records))
	for _, rec := range vi.records {
		existing[rec.Chunk.ReviewID] = struct{}{}
	}

	added := make(map[types.ReviewID]struct{})
	for _, rec := range records {
		vi.records[rec.Chunk.ID] = copyRecord(rec)
		if _, ok := existing[rec.Chunk.ReviewID]; !ok {
			added[rec.Chunk.ReviewID] = struct{}{}
		}
	}
	vi.reviewCount += len(added)

	return nil
}

func (r *indexRepository) ReplaceVenue(ctx context.Context, venueID types.VenueID, modelVer string, reviewCount int, records []*model.IndexRecord) error {
	next := &venueIndex{
		modelVer:    modelVer,
		reviewCount: reviewCount,
		records:     make(map[types.ChunkID]*model.IndexRecord, len(records)),
	}
	for _, rec := range records {
		next.records[rec.Chunk.ID] = copyRecord(rec)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.venues[venueID] = next

	return nil
}

func (r *indexRepository) Search(ctx context.Context, venueID types.VenueID, vector []float32, limit int) ([]interfaces.SearchHit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vi, exists := r.venues[venueID]
	if !exists {
		return []interfaces.SearchHit{}, nil
	}

	candidates := make([]interfaces.SearchHit, 0, len(vi.records))
	for _, rec := range vi.records {
		if len(rec.Embedding) == 0 {
			continue
		}
		s := cosineSimilarity(vector, rec.Embedding)
		candidates = append(candidates, interfaces.SearchHit{
			Chunk:      copyChunk(rec.Chunk),
			Similarity: s,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		// Deterministic tie-break: newer chunk wins, then chunk ID
		ti, tj := candidates[i].Chunk.PostedAt, candidates[j].Chunk.PostedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return candidates[i].Chunk.ID < candidates[j].Chunk.ID
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}

	return candidates[:limit], nil
}

func (r *indexRepository) GetChunk(ctx context.Context, venueID types.VenueID, chunkID types.ChunkID) (*model.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vi, exists := r.venues[venueID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "venue not indexed", goerr.V("venueID", venueID))
	}

	rec, exists := vi.records[chunkID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "chunk not found",
			goerr.V("venueID", venueID), goerr.V("chunkID", chunkID))
	}

	return copyChunk(rec.Chunk), nil
}

func (r *indexRepository) GetVenueMeta(ctx context.Context, venueID types.VenueID) (*interfaces.VenueMeta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vi, exists := r.venues[venueID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "venue not indexed", goerr.V("venueID", venueID))
	}

	return &interfaces.VenueMeta{
		VenueID:     venueID,
		ModelVer:    vi.modelVer,
		ReviewCount: vi.reviewCount,
		ChunkCount:  len(vi.records),
	}, nil
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
