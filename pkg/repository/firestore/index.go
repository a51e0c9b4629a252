package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/hearsay-dev/hearsay/pkg/domain/interfaces"
	"github.com/hearsay-dev/hearsay/pkg/domain/model"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
	"github.com/hearsay-dev/hearsay/pkg/utils/logging"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// chunkDoc is the Firestore document representation of an index record.
// Embedding is stored as firestore.Vector32 so that FindNearest vector
// search works.
type chunkDoc struct {
	ID          types.ChunkID      `firestore:"ID"`
	ReviewID    types.ReviewID     `firestore:"ReviewID"`
	VenueID     types.VenueID      `firestore:"VenueID"`
	AuthorID    types.AuthorID     `firestore:"AuthorID,omitempty"`
	Text        string             `firestore:"Text"`
	StartOffset int                `firestore:"StartOffset"`
	EndOffset   int                `firestore:"EndOffset"`
	Rating      *float64           `firestore:"Rating,omitempty"`
	PostedAt    time.Time          `firestore:"PostedAt"`
	Embedding   firestore.Vector32 `firestore:"Embedding,omitempty"`
	CreatedAt   time.Time          `firestore:"CreatedAt"`
}

// venueDoc tracks the indexed state of one venue. Generation points at the
// chunk subcollection currently serving queries; ReplaceVenue writes a fresh
// generation and flips this pointer, so readers never observe a torn index.
type venueDoc struct {
	VenueID     types.VenueID `firestore:"VenueID"`
	ModelVer    string        `firestore:"ModelVer"`
	Generation  string        `firestore:"Generation"`
	ReviewCount int           `firestore:"ReviewCount"`
	ChunkCount  int           `firestore:"ChunkCount"`
	UpdatedAt   time.Time     `firestore:"UpdatedAt"`
}

func toChunkDoc(rec *model.IndexRecord, now time.Time) *chunkDoc {
	c := rec.Chunk
	doc := &chunkDoc{
		ID:          c.ID,
		ReviewID:    c.ReviewID,
		VenueID:     c.VenueID,
		AuthorID:    c.AuthorID,
		Text:        c.Text,
		StartOffset: c.StartOffset,
		EndOffset:   c.EndOffset,
		Rating:      c.Rating,
		PostedAt:    c.PostedAt,
		CreatedAt:   now,
	}
	if len(rec.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(rec.Embedding)
	}
	return doc
}

func fromChunkDoc(d *chunkDoc) *model.Chunk {
	return &model.Chunk{
		ID:          d.ID,
		ReviewID:    d.ReviewID,
		VenueID:     d.VenueID,
		AuthorID:    d.AuthorID,
		Text:        d.Text,
		StartOffset: d.StartOffset,
		EndOffset:   d.EndOffset,
		Rating:      d.Rating,
		PostedAt:    d.PostedAt,
	}
}

func docToChunk(doc *firestore.DocumentSnapshot) (*model.Chunk, error) {
	var d chunkDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, err
	}
	return fromChunkDoc(&d), nil
}

type indexRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newIndexRepository(client *firestore.Client) *indexRepository {
	return &indexRepository{
		client: client,
	}
}

func (r *indexRepository) venueDocRef(venueID types.VenueID) *firestore.DocumentRef {
	return r.client.Collection(r.collectionPrefix + "venues").Doc(string(venueID))
}

func (r *indexRepository) chunksCollection(venueID types.VenueID, generation string) *firestore.CollectionRef {
	return r.venueDocRef(venueID).Collection("generations").Doc(generation).Collection("chunks")
}

func (r *indexRepository) getVenueDoc(ctx context.Context, venueID types.VenueID) (*venueDoc, error) {
	snap, err := r.venueDocRef(venueID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "venue not indexed", goerr.V("venueID", venueID))
		}
		return nil, goerr.Wrap(err, "failed to get venue doc",
			goerr.T(types.ErrTagTransient), goerr.V("venueID", venueID))
	}

	var d venueDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal venue doc", goerr.V("venueID", venueID))
	}
	return &d, nil
}

func (r *indexRepository) writeChunks(ctx context.Context, venueID types.VenueID, generation string, records []*model.IndexRecord) error {
	now := time.Now().UTC()
	col := r.chunksCollection(venueID, generation)

	bw := r.client.BulkWriter(ctx)
	for _, rec := range records {
		if _, err := bw.Set(col.Doc(string(rec.Chunk.ID)), toChunkDoc(rec, now)); err != nil {
			return goerr.Wrap(err, "failed to enqueue chunk write",
				goerr.T(types.ErrTagTransient),
				goerr.V("venueID", venueID),
				goerr.V("chunkID", rec.Chunk.ID))
		}
	}
	bw.End()

	return nil
}

func (r *indexRepository) UpsertChunks(ctx context.Context, venueID types.VenueID, modelVer string, records []*model.IndexRecord) error {
	meta, err := r.getVenueDoc(ctx, venueID)
	if err != nil && !goerr.HasTag(err, types.ErrTagNotFound) {
		return err
	}

	if meta == nil {
		// First write for this venue: start generation zero
		meta = &venueDoc{
			VenueID:    venueID,
			ModelVer:   modelVer,
			Generation: uuid.New().String(),
		}
	}

	if meta.ModelVer != modelVer {
		return goerr.Wrap(ErrVersionMismatch, "refusing additive insert into incompatible index",
			goerr.V("venueID", venueID),
			goerr.V("indexed", meta.ModelVer),
			goerr.V("requested", modelVer))
	}

	newChunks, newReviews, err := r.countNew(ctx, venueID, meta.Generation, records)
	if err != nil {
		return err
	}

	if err := r.writeChunks(ctx, venueID, meta.Generation, records); err != nil {
		return err
	}

	meta.ReviewCount += newReviews
	meta.ChunkCount += newChunks
	meta.UpdatedAt = time.Now().UTC()

	if _, err := r.venueDocRef(venueID).Set(ctx, meta); err != nil {
		return goerr.Wrap(err, "failed to update venue doc",
			goerr.T(types.ErrTagTransient), goerr.V("venueID", venueID))
	}

	return nil
}

// countNew reports how many of the records' chunks and source reviews are
// not yet in the generation. Re-delivered batches must not inflate the venue
// counters: ReviewCount is the coverage denominator in confidence scoring.
func (r *indexRepository) countNew(ctx context.Context, venueID types.VenueID, generation string, records []*model.IndexRecord) (int, int, error) {
	col := r.chunksCollection(venueID, generation)

	refs := make([]*firestore.DocumentRef, len(records))
	for i, rec := range records {
		refs[i] = col.Doc(string(rec.Chunk.ID))
	}
	snaps, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return 0, 0, goerr.Wrap(err, "failed to probe existing chunks",
			goerr.T(types.ErrTagTransient), goerr.V("venueID", venueID))
	}

	newChunks := 0
	reviews := make(map[types.ReviewID]struct{})
	for i, snap := range snaps {
		if snap.Exists() {
			continue
		}
		newChunks++
		reviews[records[i].Chunk.ReviewID] = struct{}{}
	}

	newReviews := 0
	for reviewID := range reviews {
		iter := col.Where("ReviewID", "==", reviewID).Limit(1).Documents(ctx)
		_, err := iter.Next()
		iter.Stop()
		if err == iterator.Done {
			newReviews++
			continue
		}
		if err != nil {
			return 0, 0, goerr.Wrap(err, "failed to probe existing review chunks",
				goerr.T(types.ErrTagTransient),
				goerr.V("venueID", venueID), goerr.V("reviewID", reviewID))
		}
	}

	return newChunks, newReviews, nil
}

func (r *indexRepository) ReplaceVenue(ctx context.Context, venueID types.VenueID, modelVer string, reviewCount int, records []*model.IndexRecord) error {
	prev, err := r.getVenueDoc(ctx, venueID)
	if err != nil && !goerr.HasTag(err, types.ErrTagNotFound) {
		return err
	}

	generation := uuid.New().String()
	if err := r.writeChunks(ctx, venueID, generation, records); err != nil {
		return err
	}

	// Flip the generation pointer only after all chunks are in place
	meta := &venueDoc{
		VenueID:     venueID,
		ModelVer:    modelVer,
		Generation:  generation,
		ReviewCount: reviewCount,
		ChunkCount:  len(records),
		UpdatedAt:   time.Now().UTC(),
	}
	if _, err := r.venueDocRef(venueID).Set(ctx, meta); err != nil {
		return goerr.Wrap(err, "failed to flip venue generation",
			goerr.T(types.ErrTagTransient), goerr.V("venueID", venueID))
	}

	if prev != nil && prev.Generation != "" {
		r.cleanupGeneration(ctx, venueID, prev.Generation)
	}

	return nil
}

// cleanupGeneration removes a superseded generation. Best effort: orphaned
// docs cost storage, not correctness, since readers follow the pointer.
func (r *indexRepository) cleanupGeneration(ctx context.Context, venueID types.VenueID, generation string) {
	iter := r.chunksCollection(venueID, generation).Documents(ctx)
	defer iter.Stop()

	bw := r.client.BulkWriter(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logging.From(ctx).Warn("failed to iterate stale generation",
				"venueID", venueID, "generation", generation, "error", err.Error())
			break
		}
		if _, err := bw.Delete(doc.Ref); err != nil {
			logging.From(ctx).Warn("failed to delete stale chunk",
				"venueID", venueID, "error", err.Error())
			break
		}
	}
	bw.End()
}

func (r *indexRepository) Search(ctx context.Context, venueID types.VenueID, vector []float32, limit int) ([]interfaces.SearchHit, error) {
	meta, err := r.getVenueDoc(ctx, venueID)
	if err != nil {
		if goerr.HasTag(err, types.ErrTagNotFound) {
			// Unindexed venue: empty result, refusal is decided downstream
			return []interfaces.SearchHit{}, nil
		}
		return nil, err
	}

	vq := r.chunksCollection(venueID, meta.Generation).
		FindNearest("Embedding", firestore.Vector32(vector), limit, firestore.DistanceMeasureCosine,
			&firestore.FindNearestOptions{DistanceResultField: "vector_distance"})

	iter := vq.Documents(ctx)
	defer iter.Stop()

	hits := make([]interfaces.SearchHit, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate vector search results",
				goerr.T(types.ErrTagTransient), goerr.V("venueID", venueID))
		}

		chunk, err := docToChunk(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal chunk from vector search",
				goerr.V("venueID", venueID))
		}

		similarity := 0.0
		if dist, ok := doc.Data()["vector_distance"].(float64); ok {
			// Firestore reports cosine distance; similarity = 1 - distance
			similarity = 1 - dist
		}

		hits = append(hits, interfaces.SearchHit{Chunk: chunk, Similarity: similarity})
	}

	// Firestore orders by distance only; apply the deterministic tie-break
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		ti, tj := hits[i].Chunk.PostedAt, hits[j].Chunk.PostedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})

	return hits, nil
}

func (r *indexRepository) GetChunk(ctx context.Context, venueID types.VenueID, chunkID types.ChunkID) (*model.Chunk, error) {
	meta, err := r.getVenueDoc(ctx, venueID)
	if err != nil {
		return nil, err
	}

	snap, err := r.chunksCollection(venueID, meta.Generation).Doc(string(chunkID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "chunk not found",
				goerr.V("venueID", venueID), goerr.V("chunkID", chunkID))
		}
		return nil, goerr.Wrap(err, "failed to get chunk",
			goerr.T(types.ErrTagTransient), goerr.V("chunkID", chunkID))
	}

	chunk, err := docToChunk(snap)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal chunk", goerr.V("chunkID", chunkID))
	}

	return chunk, nil
}

func (r *indexRepository) GetVenueMeta(ctx context.Context, venueID types.VenueID) (*interfaces.VenueMeta, error) {
	meta, err := r.getVenueDoc(ctx, venueID)
	if err != nil {
		return nil, err
	}

	return &interfaces.VenueMeta{
		VenueID:     venueID,
		ModelVer:    meta.ModelVer,
		ReviewCount: meta.ReviewCount,
		ChunkCount:  meta.ChunkCount,
	}, nil
}
