package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	httpctrl "github.com/hearsay-dev/hearsay/pkg/controller/http"
	"github.com/hearsay-dev/hearsay/pkg/domain/model"
	"github.com/hearsay-dev/hearsay/pkg/domain/model/config"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
	"github.com/hearsay-dev/hearsay/pkg/repository/memory"
	"github.com/hearsay-dev/hearsay/pkg/service/answer"
	"github.com/hearsay-dev/hearsay/pkg/usecase"
)

const patioQuestion = "How is the patio?"
const patioReviewText = "The patio is lovely in summer and catches the afternoon sun."

// fixedEmbedder maps exact texts to vectors, defaulting to an orthogonal one
type fixedEmbedder struct {
	vecs map[string][]float32
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if vec, ok := f.vecs[text]; ok {
			out[i] = vec
		} else {
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

func (f *fixedEmbedder) ModelVersion() string {
	return "fixed-embed@3"
}

// quoteGenerator cites every evidence chunk verbatim
type quoteGenerator struct{}

func (quoteGenerator) Generate(ctx context.Context, input answer.Input) (*model.DraftAnswer, error) {
	draft := &model.DraftAnswer{}
	for _, sc := range input.Evidence.Chunks {
		draft.Sentences = append(draft.Sentences, model.DraftSentence{
			Text:      sc.Chunk.Text,
			Factual:   true,
			Citations: []types.ChunkID{sc.Chunk.ID},
		})
	}
	return draft, nil
}

func newTestServer(t *testing.T) *httpctrl.Server {
	t.Helper()

	cfg := config.DefaultPipeline()
	embedder := &fixedEmbedder{vecs: map[string][]float32{
		patioQuestion:   {1, 0, 0},
		patioReviewText: {0.97, 0.24, 0},
	}}
	uc := usecase.New(memory.New(), embedder, quoteGenerator{}, usecase.WithPipelineConfig(&cfg))

	return httpctrl.New(uc)
}

func TestGetVenueNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/venues/venue-1/", nil))

	gt.Number(t, rec.Code).Equal(http.StatusNotFound)
}

func TestAskValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/venues/venue-1/ask",
		bytes.NewReader([]byte(`{"question": ""}`))))
	gt.Number(t, rec.Code).Equal(http.StatusBadRequest)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/venues/venue-1/ask",
		bytes.NewReader([]byte(`not json`))))
	gt.Number(t, rec.Code).Equal(http.StatusBadRequest)
}

func TestAskUnindexedVenueRefuses(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/venues/venue-1/ask",
		bytes.NewReader([]byte(`{"question": "How is the patio?"}`))))

	gt.Number(t, rec.Code).Equal(http.StatusOK)

	var ans model.Answer
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ans)).Required()
	gt.Bool(t, ans.Refused).True()
	gt.Value(t, ans.RefusalReason).Equal(types.RefusalNoEvidence)
}

func TestIngestThenAsk(t *testing.T) {
	srv := newTestServer(t)

	body, err := json.Marshal(map[string]any{
		"replace": true,
		"reviews": []*model.Review{{
			ID:       "review-1",
			VenueID:  "venue-1",
			AuthorID: "author-1",
			Text:     patioReviewText,
			PostedAt: time.Now().Add(-24 * time.Hour),
		}},
	})
	gt.NoError(t, err).Required()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/venues/venue-1/reviews",
		bytes.NewReader(body)))
	gt.Number(t, rec.Code).Equal(http.StatusAccepted)

	// Indexing runs in the background; wait for the venue to appear
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/venues/venue-1/", nil))
		if rec.Code == http.StatusOK {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("venue was not indexed in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/venues/venue-1/ask",
		bytes.NewReader([]byte(`{"question": "How is the patio?"}`))))
	gt.Number(t, rec.Code).Equal(http.StatusOK)

	var ans model.Answer
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ans)).Required()
	gt.Bool(t, ans.Refused).False()
	gt.String(t, ans.Text).Contains("patio")
	gt.Number(t, len(ans.Citations)).Equal(1)
}

func TestIngestValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/venues/venue-1/reviews",
		bytes.NewReader([]byte(`{"reviews": []}`))))
	gt.Number(t, rec.Code).Equal(http.StatusBadRequest)
}
