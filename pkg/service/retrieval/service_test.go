package retrieval_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/hearsay-dev/hearsay/pkg/domain/model"
	"github.com/hearsay-dev/hearsay/pkg/domain/model/config"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
	"github.com/hearsay-dev/hearsay/pkg/repository/memory"
	"github.com/hearsay-dev/hearsay/pkg/service/retrieval"
)

const testModelVer = "stub-embed@2"

// stubEmbedder returns a fixed vector for every input, so tests control
// similarity entirely through the indexed embeddings.
type stubEmbedder struct {
	vec []float32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vec, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

func (s *stubEmbedder) ModelVersion() string {
	return testModelVer
}

func indexRecord(chunkID types.ChunkID, reviewID types.ReviewID, start, end int, embedding []float32) *model.IndexRecord {
	return &model.IndexRecord{
		Chunk: &model.Chunk{
			ID:          chunkID,
			ReviewID:    reviewID,
			VenueID:     "venue-1",
			Text:        "review excerpt for " + string(chunkID),
			StartOffset: start,
			EndOffset:   end,
			PostedAt:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		Embedding: embedding,
	}
}

func setupRetrieval(t *testing.T, cfg *config.Pipeline, records []*model.IndexRecord) *retrieval.Service {
	t.Helper()

	repo := memory.New()
	gt.NoError(t, repo.Index().ReplaceVenue(context.Background(), "venue-1", testModelVer, len(records), records)).Required()

	return retrieval.New(repo.Index(), &stubEmbedder{vec: []float32{1, 0}}, cfg)
}

func TestRetrieveAppliesThreshold(t *testing.T) {
	cfg := config.DefaultPipeline()
	svc := setupRetrieval(t, &cfg, []*model.IndexRecord{
		indexRecord("chunk-relevant", "review-1", 0, 40, []float32{1, 0}),
		indexRecord("chunk-orthogonal", "review-2", 0, 40, []float32{0, 1}),
	})

	result, err := svc.Retrieve(context.Background(), "venue-1", "is the patio nice?")
	gt.NoError(t, err).Required()

	gt.Number(t, len(result.Chunks)).Equal(1)
	gt.Value(t, result.Chunks[0].Chunk.ID).Equal(types.ChunkID("chunk-relevant"))
}

func TestRetrieveEmptyIsNotAnError(t *testing.T) {
	cfg := config.DefaultPipeline()
	svc := setupRetrieval(t, &cfg, []*model.IndexRecord{
		indexRecord("chunk-orthogonal", "review-1", 0, 40, []float32{0, 1}),
	})

	result, err := svc.Retrieve(context.Background(), "venue-1", "do they have valet parking?")
	gt.NoError(t, err).Required()
	gt.Bool(t, result.Empty()).True()
}

func TestRetrieveDedupesOverlappingChunks(t *testing.T) {
	cfg := config.DefaultPipeline()
	// Two overlapping spans of the same review, the closer one first
	svc := setupRetrieval(t, &cfg, []*model.IndexRecord{
		indexRecord("chunk-strong", "review-1", 0, 50, []float32{1, 0}),
		indexRecord("chunk-overlap", "review-1", 25, 75, []float32{0.995, 0.0999}),
		indexRecord("chunk-other", "review-2", 0, 50, []float32{0.9, 0.436}),
	})

	result, err := svc.Retrieve(context.Background(), "venue-1", "how is the coffee?")
	gt.NoError(t, err).Required()

	gt.Number(t, len(result.Chunks)).Equal(2)
	gt.Value(t, result.Chunks[0].Chunk.ID).Equal(types.ChunkID("chunk-strong"))
	gt.Value(t, result.Chunks[1].Chunk.ID).Equal(types.ChunkID("chunk-other"))
}

func TestRetrievePrefersDistinctReviewsWithinTieBand(t *testing.T) {
	cfg := config.DefaultPipeline()
	cfg.EvidenceCap = 2
	cfg.TieBand = 0.02

	// review-1 holds the two closest chunks (non-overlapping spans); the
	// review-2 chunk sits within the tie band of the second one.
	svc := setupRetrieval(t, &cfg, []*model.IndexRecord{
		indexRecord("chunk-r1-a", "review-1", 0, 50, []float32{1, 0}),
		indexRecord("chunk-r1-b", "review-1", 60, 120, []float32{0.995, 0.0999}),
		indexRecord("chunk-r2-a", "review-2", 0, 50, []float32{0.99, 0.1411}),
	})

	result, err := svc.Retrieve(context.Background(), "venue-1", "is it loud at night?")
	gt.NoError(t, err).Required()

	gt.Number(t, len(result.Chunks)).Equal(2)
	gt.Value(t, result.Chunks[0].Chunk.ID).Equal(types.ChunkID("chunk-r1-a"))
	gt.Value(t, result.Chunks[1].Chunk.ID).Equal(types.ChunkID("chunk-r2-a"))
	gt.Number(t, result.DistinctReviews()).Equal(2)
}

func TestRetrieveCapsEvidence(t *testing.T) {
	cfg := config.DefaultPipeline()
	cfg.EvidenceCap = 2

	svc := setupRetrieval(t, &cfg, []*model.IndexRecord{
		indexRecord("chunk-a", "review-1", 0, 40, []float32{1, 0}),
		indexRecord("chunk-b", "review-2", 0, 40, []float32{0.98, 0.198}),
		indexRecord("chunk-c", "review-3", 0, 40, []float32{0.95, 0.312}),
	})

	result, err := svc.Retrieve(context.Background(), "venue-1", "what do people order?")
	gt.NoError(t, err).Required()
	gt.Number(t, len(result.Chunks)).Equal(2)
}
