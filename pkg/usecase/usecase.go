package usecase

import (
	"github.com/hearsay-dev/hearsay/pkg/domain/interfaces"
	"github.com/hearsay-dev/hearsay/pkg/domain/model/config"
	"github.com/hearsay-dev/hearsay/pkg/service/answer"
	"github.com/hearsay-dev/hearsay/pkg/service/chunker"
	"github.com/hearsay-dev/hearsay/pkg/service/confidence"
	"github.com/hearsay-dev/hearsay/pkg/service/embedding"
	"github.com/hearsay-dev/hearsay/pkg/service/grounding"
	"github.com/hearsay-dev/hearsay/pkg/service/retrieval"
)

type UseCases struct {
	repo     interfaces.Repository
	embedder embedding.Service
	cfg      *config.Pipeline

	Index *IndexUseCase
	Query *QueryUseCase
}

type Option func(*UseCases)

// WithPipelineConfig overrides the default pipeline tunables
func WithPipelineConfig(cfg *config.Pipeline) Option {
	return func(uc *UseCases) {
		uc.cfg = cfg
	}
}

func New(repo interfaces.Repository, embedder embedding.Service, generator answer.Service, opts ...Option) *UseCases {
	defaults := config.DefaultPipeline()
	uc := &UseCases{
		repo:     repo,
		embedder: embedder,
		cfg:      &defaults,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Index = NewIndexUseCase(repo, chunker.New(uc.cfg), embedder, uc.cfg)
	uc.Query = NewQueryUseCase(repo,
		retrieval.New(repo.Index(), embedder, uc.cfg),
		generator,
		grounding.New(embedder, uc.cfg),
		confidence.New(uc.cfg),
		uc.cfg,
	)

	return uc
}
