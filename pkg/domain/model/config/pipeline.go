package config

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Pipeline holds every product-tunable constant of the retrieval and
// answer pipeline. The values here are starting points, not contracts;
// nothing numeric is baked into pipeline logic.
type Pipeline struct {
	// Chunking
	ChunkMinChars int `toml:"chunk_min_chars"`
	ChunkMaxChars int `toml:"chunk_max_chars"`

	// Retrieval
	SearchTopK    int     `toml:"search_top_k"`
	MinSimilarity float64 `toml:"min_similarity"`
	EvidenceCap   int     `toml:"evidence_cap"`
	TieBand       float64 `toml:"tie_band"`

	// Generation / verification
	MaxGenerationRetries int     `toml:"max_generation_retries"`
	MinSupportOverlap    float64 `toml:"min_support_overlap"`
	MinSupportSimilarity float64 `toml:"min_support_similarity"`
	// WeakGroundingPolicy is "remove" (default) or "hedge"
	WeakGroundingPolicy string `toml:"weak_grounding_policy"`

	// Confidence
	CoverageWeight     float64 `toml:"coverage_weight"`
	RecencyWeight      float64 `toml:"recency_weight"`
	IndependenceWeight float64 `toml:"independence_weight"`
	ConfidenceCeiling  float64 `toml:"confidence_ceiling"`
	MinPublishable     float64 `toml:"min_publishable"`
	// RecencyHorizon separates "recent" from "stale" supporting reviews
	RecencyHorizon time.Duration `toml:"recency_horizon"`

	// Infrastructure
	IndexWorkers     int           `toml:"index_workers"`
	EmbeddingTimeout time.Duration `toml:"embedding_timeout"`
	EmbeddingRetries int           `toml:"embedding_retries"`
}

// WeakGroundingRemove and WeakGroundingHedge are the verifier policies for
// weakly grounded sentences.
const (
	WeakGroundingRemove = "remove"
	WeakGroundingHedge  = "hedge"
)

// DefaultPipeline returns the default tuning described in the product plan
func DefaultPipeline() Pipeline {
	return Pipeline{
		ChunkMinChars: 40,
		ChunkMaxChars: 200,

		SearchTopK:    20,
		MinSimilarity: 0.30,
		EvidenceCap:   8,
		TieBand:       0.02,

		MaxGenerationRetries: 2,
		MinSupportOverlap:    0.2,
		MinSupportSimilarity: 0.55,
		WeakGroundingPolicy:  WeakGroundingRemove,

		CoverageWeight:     0.5,
		RecencyWeight:      0.25,
		IndependenceWeight: 0.25,
		ConfidenceCeiling:  0.95,
		MinPublishable:     0.15,
		RecencyHorizon:     180 * 24 * time.Hour,

		IndexWorkers:     4,
		EmbeddingTimeout: 10 * time.Second,
		EmbeddingRetries: 3,
	}
}

// Validate checks the tuning for internal consistency
func (p *Pipeline) Validate() error {
	if p.ChunkMinChars <= 0 || p.ChunkMaxChars <= p.ChunkMinChars {
		return goerr.New("invalid chunk window",
			goerr.V("min", p.ChunkMinChars), goerr.V("max", p.ChunkMaxChars))
	}
	if p.SearchTopK < 1 {
		return goerr.New("search_top_k must be at least 1", goerr.V("topK", p.SearchTopK))
	}
	if p.EvidenceCap < 1 || p.EvidenceCap > p.SearchTopK {
		return goerr.New("evidence_cap must be in [1, search_top_k]",
			goerr.V("cap", p.EvidenceCap), goerr.V("topK", p.SearchTopK))
	}
	if p.MinSimilarity < -1 || p.MinSimilarity > 1 {
		return goerr.New("min_similarity must be a cosine value", goerr.V("minSimilarity", p.MinSimilarity))
	}
	if p.TieBand < 0 {
		return goerr.New("tie_band cannot be negative", goerr.V("tieBand", p.TieBand))
	}
	if p.MaxGenerationRetries < 0 {
		return goerr.New("max_generation_retries cannot be negative",
			goerr.V("retries", p.MaxGenerationRetries))
	}
	switch p.WeakGroundingPolicy {
	case WeakGroundingRemove, WeakGroundingHedge:
	default:
		return goerr.New("unknown weak_grounding_policy", goerr.V("policy", p.WeakGroundingPolicy))
	}
	if p.ConfidenceCeiling <= 0 || p.ConfidenceCeiling > 1 {
		return goerr.New("confidence_ceiling must be in (0,1]", goerr.V("ceiling", p.ConfidenceCeiling))
	}
	if p.MinPublishable < 0 || p.MinPublishable > p.ConfidenceCeiling {
		return goerr.New("min_publishable must be in [0, confidence_ceiling]",
			goerr.V("minPublishable", p.MinPublishable))
	}
	totalWeight := p.CoverageWeight + p.RecencyWeight + p.IndependenceWeight
	if totalWeight <= 0 {
		return goerr.New("confidence weights must sum to a positive value",
			goerr.V("coverage", p.CoverageWeight),
			goerr.V("recency", p.RecencyWeight),
			goerr.V("independence", p.IndependenceWeight))
	}
	if p.IndexWorkers < 1 {
		return goerr.New("index_workers must be at least 1", goerr.V("workers", p.IndexWorkers))
	}
	if p.EmbeddingRetries < 1 {
		return goerr.New("embedding_retries must be at least 1", goerr.V("retries", p.EmbeddingRetries))
	}
	return nil
}
