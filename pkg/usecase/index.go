package usecase

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/hearsay-dev/hearsay/pkg/domain/interfaces"
	"github.com/hearsay-dev/hearsay/pkg/domain/model"
	"github.com/hearsay-dev/hearsay/pkg/domain/model/config"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
	"github.com/hearsay-dev/hearsay/pkg/service/chunker"
	"github.com/hearsay-dev/hearsay/pkg/service/embedding"
	"github.com/hearsay-dev/hearsay/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// IndexUseCase orchestrates review ingestion: validate, chunk, embed and
// persist into the venue's vector index.
type IndexUseCase struct {
	repo     interfaces.Repository
	chunker  *chunker.Service
	embedder embedding.Service
	cfg      *config.Pipeline
}

// NewIndexUseCase creates a new IndexUseCase
func NewIndexUseCase(repo interfaces.Repository, chunkSvc *chunker.Service, embedder embedding.Service, cfg *config.Pipeline) *IndexUseCase {
	return &IndexUseCase{
		repo:     repo,
		chunker:  chunkSvc,
		embedder: embedder,
		cfg:      cfg,
	}
}

// IndexOption holds options for one Index operation
type IndexOption struct {
	// Replace rebuilds the venue index from scratch instead of adding to it
	Replace bool
}

// IndexResult holds the per-record outcome counters of an Index operation.
// Malformed and unchunkable reviews are excluded, never batch-fatal.
type IndexResult struct {
	VenueID        types.VenueID
	ReviewsIndexed int
	ChunksIndexed  int
	Malformed      int
	Unchunkable    int
	Replaced       bool
}

// Index ingests a batch of reviews for a venue. Chunking and embedding fan
// out across a bounded worker pool; infrastructure failures abort the batch
// before any index write, per-record data problems are counted and skipped.
func (uc *IndexUseCase) Index(ctx context.Context, venueID types.VenueID, reviews []*model.Review, opts IndexOption) (*IndexResult, error) {
	if err := venueID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid venue ID")
	}

	result := &IndexResult{VenueID: venueID}

	valid := make([]*model.Review, 0, len(reviews))
	for _, review := range reviews {
		if review.VenueID == "" {
			review.VenueID = venueID
		}
		if review.VenueID != venueID {
			result.Malformed++
			logging.From(ctx).Warn("review belongs to a different venue, skipping",
				"venueID", venueID, "reviewID", review.ID, "reviewVenueID", review.VenueID)
			continue
		}
		if err := review.Validate(); err != nil {
			result.Malformed++
			logging.From(ctx).Warn("malformed review excluded",
				"venueID", venueID, "reviewID", review.ID, "error", err.Error())
			continue
		}
		valid = append(valid, review)
	}

	replace, err := uc.decideMode(ctx, venueID, opts)
	if err != nil {
		return nil, err
	}
	result.Replaced = replace

	records, unchunkable, err := uc.buildRecords(ctx, valid)
	if err != nil {
		return nil, err
	}
	result.Unchunkable = unchunkable
	result.ReviewsIndexed = len(valid) - unchunkable
	result.ChunksIndexed = len(records)

	if replace {
		err = uc.repo.Index().ReplaceVenue(ctx, venueID, uc.embedder.ModelVersion(), result.ReviewsIndexed, records)
	} else {
		err = uc.repo.Index().UpsertChunks(ctx, venueID, uc.embedder.ModelVersion(), records)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to persist venue index",
			goerr.V("venueID", venueID))
	}

	logging.From(ctx).Info("venue indexing completed",
		"venueID", venueID,
		"reviewsIndexed", result.ReviewsIndexed,
		"chunksIndexed", result.ChunksIndexed,
		"malformed", result.Malformed,
		"unchunkable", result.Unchunkable,
		"replaced", result.Replaced,
	)

	return result, nil
}

// decideMode promotes an additive ingest to a full rebuild when the stored
// index was built by a different embedding model. Mixing vector spaces would
// silently corrupt similarity search.
func (uc *IndexUseCase) decideMode(ctx context.Context, venueID types.VenueID, opts IndexOption) (bool, error) {
	if opts.Replace {
		return true, nil
	}

	meta, err := uc.repo.Index().GetVenueMeta(ctx, venueID)
	if err != nil {
		if goerr.HasTag(err, types.ErrTagNotFound) {
			// First ingest for this venue
			return true, nil
		}
		return false, goerr.Wrap(err, "failed to read venue meta", goerr.V("venueID", venueID))
	}

	if meta.ModelVer != uc.embedder.ModelVersion() {
		logging.From(ctx).Warn("embedding model changed, forcing full rebuild",
			"venueID", venueID,
			"indexed", meta.ModelVer,
			"current", uc.embedder.ModelVersion(),
		)
		return true, nil
	}

	return false, nil
}

// buildRecords chunks and embeds the reviews across IndexWorkers goroutines.
// Output order follows input order so rebuilds are reproducible.
func (uc *IndexUseCase) buildRecords(ctx context.Context, reviews []*model.Review) ([]*model.IndexRecord, int, error) {
	perReview := make([][]*model.IndexRecord, len(reviews))
	var mu sync.Mutex
	unchunkable := 0

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(uc.cfg.IndexWorkers)

	for i, review := range reviews {
		eg.Go(func() error {
			chunks, err := uc.chunker.Chunk(review)
			if err != nil {
				if goerr.HasTag(err, types.ErrTagDataQuality) {
					mu.Lock()
					unchunkable++
					mu.Unlock()
					logging.From(ctx).Warn("unchunkable review excluded",
						"reviewID", review.ID, "error", err.Error())
					return nil
				}
				return goerr.Wrap(err, "chunking failed", goerr.V("reviewID", review.ID))
			}

			texts := make([]string, len(chunks))
			for j, c := range chunks {
				texts[j] = c.Text
			}
			vectors, err := uc.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return goerr.Wrap(err, "embedding failed", goerr.V("reviewID", review.ID))
			}

			records := make([]*model.IndexRecord, len(chunks))
			for j, c := range chunks {
				records[j] = &model.IndexRecord{
					Chunk:     c,
					Embedding: vectors[j],
				}
			}

			perReview[i] = records
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, 0, err
	}

	var records []*model.IndexRecord
	for _, recs := range perReview {
		records = append(records, recs...)
	}

	return records, unchunkable, nil
}
