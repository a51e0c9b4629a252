package firestore_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/hearsay-dev/hearsay/pkg/domain/interfaces"
	"github.com/hearsay-dev/hearsay/pkg/domain/model"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
	"github.com/hearsay-dev/hearsay/pkg/repository/firestore"
)

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test_%d_", time.Now().UnixNano())
	repo, err := firestore.New(ctx, projectID, databaseID, firestore.WithCollectionPrefix(prefix))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func testRecord(chunkID types.ChunkID, reviewID types.ReviewID, venueID types.VenueID, embedding []float32) *model.IndexRecord {
	return &model.IndexRecord{
		Chunk: &model.Chunk{
			ID:          chunkID,
			ReviewID:    reviewID,
			VenueID:     venueID,
			Text:        "some review text for " + string(chunkID),
			StartOffset: 0,
			EndOffset:   21,
			PostedAt:    time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		},
		Embedding: embedding,
	}
}

func TestFirestoreIndexRepository(t *testing.T) {
	repo := newFirestoreRepository(t)
	idx := repo.Index()
	ctx := context.Background()
	modelVer := "test-embed@4"

	t.Run("venue meta for unknown venue is not found", func(t *testing.T) {
		_, err := idx.GetVenueMeta(ctx, "venue-unknown")
		gt.Error(t, err).Is(firestore.ErrNotFound)
	})

	t.Run("replace then read back", func(t *testing.T) {
		gt.NoError(t, idx.ReplaceVenue(ctx, "venue-1", modelVer, 2, []*model.IndexRecord{
			testRecord("chunk-a", "review-a", "venue-1", []float32{1, 0, 0}),
			testRecord("chunk-b", "review-b", "venue-1", []float32{0, 1, 0}),
		})).Required()

		meta, err := idx.GetVenueMeta(ctx, "venue-1")
		gt.NoError(t, err).Required()
		gt.Value(t, meta.ModelVer).Equal(modelVer)
		gt.Number(t, meta.ReviewCount).Equal(2)
		gt.Number(t, meta.ChunkCount).Equal(2)

		chunk, err := idx.GetChunk(ctx, "venue-1", "chunk-a")
		gt.NoError(t, err).Required()
		gt.Value(t, chunk.ReviewID).Equal(types.ReviewID("review-a"))
	})

	t.Run("replace supersedes the previous generation", func(t *testing.T) {
		gt.NoError(t, idx.ReplaceVenue(ctx, "venue-1", modelVer, 1, []*model.IndexRecord{
			testRecord("chunk-c", "review-c", "venue-1", []float32{0, 0, 1}),
		})).Required()

		_, err := idx.GetChunk(ctx, "venue-1", "chunk-a")
		gt.Error(t, err).Is(firestore.ErrNotFound)

		meta, err := idx.GetVenueMeta(ctx, "venue-1")
		gt.NoError(t, err).Required()
		gt.Number(t, meta.ChunkCount).Equal(1)
	})

	t.Run("additive upsert rejects a model version change", func(t *testing.T) {
		err := idx.UpsertChunks(ctx, "venue-1", "other-embed@8", []*model.IndexRecord{
			testRecord("chunk-d", "review-d", "venue-1", []float32{1, 1, 0}),
		})
		gt.Error(t, err).Is(firestore.ErrVersionMismatch)
	})

	t.Run("additive upsert extends the current generation", func(t *testing.T) {
		gt.NoError(t, idx.UpsertChunks(ctx, "venue-1", modelVer, []*model.IndexRecord{
			testRecord("chunk-e", "review-e", "venue-1", []float32{1, 1, 0}),
		})).Required()

		meta, err := idx.GetVenueMeta(ctx, "venue-1")
		gt.NoError(t, err).Required()
		gt.Number(t, meta.ReviewCount).Equal(2)
		gt.Number(t, meta.ChunkCount).Equal(2)
	})

	t.Run("redelivered additive upsert keeps counters", func(t *testing.T) {
		gt.NoError(t, idx.UpsertChunks(ctx, "venue-1", modelVer, []*model.IndexRecord{
			testRecord("chunk-e", "review-e", "venue-1", []float32{1, 1, 0}),
		})).Required()

		meta, err := idx.GetVenueMeta(ctx, "venue-1")
		gt.NoError(t, err).Required()
		gt.Number(t, meta.ReviewCount).Equal(2)
		gt.Number(t, meta.ChunkCount).Equal(2)
	})

	t.Run("search unknown venue is empty", func(t *testing.T) {
		hits, err := idx.Search(ctx, "venue-unknown", []float32{1, 0, 0}, 10)
		gt.NoError(t, err).Required()
		gt.Number(t, len(hits)).Equal(0)
	})
}
