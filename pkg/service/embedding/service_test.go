package embedding_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/gollem"
	"github.com/hearsay-dev/hearsay/pkg/domain/model/config"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
	"github.com/hearsay-dev/hearsay/pkg/service/embedding"
)

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	generateEmbeddingFn func(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return nil, goerr.New("not implemented")
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return c.generateEmbeddingFn(ctx, dimension, input)
}

func testConfig() *config.Pipeline {
	cfg := config.DefaultPipeline()
	cfg.EmbeddingTimeout = time.Second
	cfg.EmbeddingRetries = 3
	return &cfg
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	client := &mockLLMClient{
		generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
			out := make([][]float64, len(input))
			for i := range input {
				out[i] = []float64{float64(i), 1}
			}
			return out, nil
		},
	}

	svc, err := embedding.New(client, testConfig())
	gt.NoError(t, err).Required()

	vectors, err := svc.EmbedBatch(context.Background(), []string{"first", "second", "third"})
	gt.NoError(t, err).Required()

	gt.Number(t, len(vectors)).Equal(3)
	gt.Number(t, vectors[0][0]).Equal(float32(0))
	gt.Number(t, vectors[1][0]).Equal(float32(1))
	gt.Number(t, vectors[2][0]).Equal(float32(2))
}

func TestEmbedBatchRetriesTransientFailures(t *testing.T) {
	calls := 0
	client := &mockLLMClient{
		generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
			calls++
			if calls < 3 {
				return nil, goerr.New("backend hiccup")
			}
			return [][]float64{{1, 0}}, nil
		},
	}

	svc, err := embedding.New(client, testConfig(), embedding.WithBackoffBase(time.Millisecond))
	gt.NoError(t, err).Required()

	vectors, err := svc.EmbedBatch(context.Background(), []string{"text"})
	gt.NoError(t, err).Required()
	gt.Number(t, calls).Equal(3)
	gt.Number(t, len(vectors)).Equal(1)
}

func TestEmbedBatchExhaustsRetries(t *testing.T) {
	calls := 0
	client := &mockLLMClient{
		generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
			calls++
			return nil, goerr.New("backend down")
		},
	}

	svc, err := embedding.New(client, testConfig(), embedding.WithBackoffBase(time.Millisecond))
	gt.NoError(t, err).Required()

	_, err = svc.EmbedBatch(context.Background(), []string{"text"})
	gt.Error(t, err).Is(embedding.ErrEmbeddingUnavailable)
	gt.Bool(t, goerr.HasTag(err, types.ErrTagTransient)).True()
	gt.Number(t, calls).Equal(3)
}

func TestEmbedBatchRejectsCountMismatch(t *testing.T) {
	client := &mockLLMClient{
		generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
			return [][]float64{{1, 0}}, nil
		},
	}

	svc, err := embedding.New(client, testConfig(), embedding.WithBackoffBase(time.Millisecond))
	gt.NoError(t, err).Required()

	_, err = svc.EmbedBatch(context.Background(), []string{"one", "two"})
	gt.Value(t, err).NotNil()
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	client := &mockLLMClient{
		generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
			return nil, goerr.New("must not be called")
		},
	}

	svc, err := embedding.New(client, testConfig())
	gt.NoError(t, err).Required()

	vectors, err := svc.EmbedBatch(context.Background(), nil)
	gt.NoError(t, err).Required()
	gt.Number(t, len(vectors)).Equal(0)
}
