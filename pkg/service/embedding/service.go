package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/hearsay-dev/hearsay/pkg/domain/model"
	"github.com/hearsay-dev/hearsay/pkg/domain/model/config"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
	"github.com/hearsay-dev/hearsay/pkg/utils/logging"
)

// ErrEmbeddingUnavailable is returned when the embedding backend stays
// unreachable after bounded retries. It aborts the current indexing or
// query operation; a zero vector is never substituted, since that would
// corrupt ranking without detection.
var ErrEmbeddingUnavailable = goerr.New("embedding backend unavailable")

// client implements Service on top of a gollem LLM client
type client struct {
	llmClient   gollem.LLMClient
	dimension   int
	modelVer    string
	timeout     time.Duration
	maxAttempts int
	backoffBase time.Duration
}

// Option is a functional option for client configuration
type Option func(*client)

// WithModelVersion overrides the model version tag
func WithModelVersion(ver string) Option {
	return func(c *client) {
		c.modelVer = ver
	}
}

// WithDimension overrides the embedding dimension
func WithDimension(dim int) Option {
	return func(c *client) {
		c.dimension = dim
	}
}

// WithBackoffBase overrides the initial retry delay (tests use a short one)
func WithBackoffBase(d time.Duration) Option {
	return func(c *client) {
		c.backoffBase = d
	}
}

// New creates a new embedding service with the provided LLM client
func New(llmClient gollem.LLMClient, cfg *config.Pipeline, opts ...Option) (Service, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	c := &client{
		llmClient:   llmClient,
		dimension:   model.EmbeddingDimension,
		modelVer:    model.EmbeddingModelVersion,
		timeout:     cfg.EmbeddingTimeout,
		maxAttempts: cfg.EmbeddingRetries,
		backoffBase: 200 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *client) ModelVersion() string {
	return c.modelVer
}

func (c *client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, goerr.Wrap(ctx.Err(), "embedding cancelled",
					goerr.T(types.ErrTagTransient))
			case <-time.After(delay):
			}
			logging.From(ctx).Debug("retrying embedding call",
				"attempt", attempt+1, "lastError", lastErr.Error())
		}

		vectors, err := c.callOnce(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if errors.Is(err, context.Canceled) {
			// Caller gave up; do not burn the remaining attempts
			return nil, goerr.Wrap(err, "embedding cancelled", goerr.T(types.ErrTagTransient))
		}
		lastErr = err
	}

	return nil, goerr.Wrap(ErrEmbeddingUnavailable, "embedding retries exhausted",
		goerr.T(types.ErrTagTransient),
		goerr.V("attempts", c.maxAttempts),
		goerr.V("lastError", lastErr.Error()))
}

func (c *client) callOnce(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	embeddings, err := c.llmClient.GenerateEmbedding(callCtx, c.dimension, texts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embeddings",
			goerr.V("count", len(texts)))
	}
	if len(embeddings) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("want", len(texts)), goerr.V("got", len(embeddings)))
	}

	vectors := make([][]float32, len(embeddings))
	for i, emb := range embeddings {
		if len(emb) == 0 {
			return nil, goerr.New("empty embedding returned", goerr.V("index", i))
		}
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}

	return vectors, nil
}
