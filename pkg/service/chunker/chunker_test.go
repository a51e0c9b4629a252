package chunker_test

import (
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/hearsay-dev/hearsay/pkg/domain/model"
	"github.com/hearsay-dev/hearsay/pkg/domain/model/config"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
	"github.com/hearsay-dev/hearsay/pkg/service/chunker"
)

func testConfig() *config.Pipeline {
	cfg := config.DefaultPipeline()
	return &cfg
}

func testReview(text string) *model.Review {
	return &model.Review{
		ID:       "review-1",
		VenueID:  "venue-1",
		AuthorID: "author-1",
		Text:     text,
		PostedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestChunkDeterministic(t *testing.T) {
	svc := chunker.New(testConfig())
	review := testReview("The patio is lovely in summer. Service was slow on a Friday night. The espresso is the best in the neighborhood, easily worth the detour.")

	first, err := svc.Chunk(review)
	gt.NoError(t, err).Required()
	second, err := svc.Chunk(review)
	gt.NoError(t, err).Required()

	gt.Number(t, len(first)).Equal(len(second))
	for i := range first {
		gt.Value(t, first[i].ID).Equal(second[i].ID)
		gt.Number(t, first[i].StartOffset).Equal(second[i].StartOffset)
		gt.Number(t, first[i].EndOffset).Equal(second[i].EndOffset)
	}
}

func TestChunkVerbatimSpans(t *testing.T) {
	svc := chunker.New(testConfig())
	review := testReview("Good ramen! The broth is rich and the noodles have real bite to them. Gets rowdy after 7pm on weekends, so go early if you want to talk.")

	chunks, err := svc.Chunk(review)
	gt.NoError(t, err).Required()
	gt.Number(t, len(chunks)).Greater(0)

	for _, c := range chunks {
		gt.Value(t, c.Text).Equal(review.Text[c.StartOffset:c.EndOffset])
		gt.NoError(t, c.Validate(review.Text))
		gt.Value(t, c.ReviewID).Equal(review.ID)
		gt.Value(t, c.VenueID).Equal(review.VenueID)
		gt.Value(t, c.ID).Equal(types.DeriveChunkID(review.ID, c.StartOffset, c.EndOffset))
	}
}

func TestChunkMergesShortSentences(t *testing.T) {
	svc := chunker.New(testConfig())
	review := testReview("Great coffee. Nice staff. Would come again.")

	chunks, err := svc.Chunk(review)
	gt.NoError(t, err).Required()

	// Three short sentences merge into one chunk within the window
	gt.Number(t, len(chunks)).Equal(1)
	gt.Value(t, chunks[0].Text).Equal("Great coffee. Nice staff. Would come again.")
}

func TestChunkWindowSplitsLongText(t *testing.T) {
	cfg := testConfig()
	svc := chunker.New(cfg)
	// No sentence boundaries at all
	review := testReview(strings.TrimSpace(strings.Repeat("word ", 80)))

	chunks, err := svc.Chunk(review)
	gt.NoError(t, err).Required()
	gt.Number(t, len(chunks)).Greater(1)

	for _, c := range chunks {
		gt.Number(t, c.EndOffset-c.StartOffset).LessOrEqual(cfg.ChunkMaxChars)
		gt.Value(t, c.Text).Equal(review.Text[c.StartOffset:c.EndOffset])
	}
}

func TestChunkUnchunkable(t *testing.T) {
	svc := chunker.New(testConfig())
	review := testReview(" \n\t  ")

	_, err := svc.Chunk(review)
	gt.Error(t, err).Is(chunker.ErrUnchunkable)
	gt.Bool(t, goerr.HasTag(err, types.ErrTagDataQuality)).True()
}

func TestDeriveChunkIDStable(t *testing.T) {
	a := types.DeriveChunkID("review-1", 0, 42)
	b := types.DeriveChunkID("review-1", 0, 42)
	c := types.DeriveChunkID("review-1", 1, 42)

	gt.Value(t, a).Equal(b)
	gt.Value(t, a).NotEqual(c)
}
