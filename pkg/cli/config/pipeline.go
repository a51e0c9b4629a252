package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	domainConfig "github.com/hearsay-dev/hearsay/pkg/domain/model/config"
	"github.com/urfave/cli/v3"
)

// Pipeline holds CLI flags for the answer pipeline tuning. A TOML file sets
// the baseline; individual flags override it.
type Pipeline struct {
	configPath string

	evidenceCap    int
	minSimilarity  float64
	maxRetries     int
	weakGrounding  string
	minPublishable float64
	indexWorkers   int
}

// Flags returns CLI flags for pipeline configuration
func (p *Pipeline) Flags() []cli.Flag {
	defaults := domainConfig.DefaultPipeline()
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "pipeline-config",
			Usage:       "Path to a TOML file with pipeline tuning",
			Sources:     cli.EnvVars("HEARSAY_PIPELINE_CONFIG"),
			Destination: &p.configPath,
		},
		&cli.IntFlag{
			Name:        "evidence-cap",
			Usage:       "Maximum chunks in the evidence set for one question",
			Value:       defaults.EvidenceCap,
			Sources:     cli.EnvVars("HEARSAY_EVIDENCE_CAP"),
			Destination: &p.evidenceCap,
		},
		&cli.FloatFlag{
			Name:        "min-similarity",
			Usage:       "Relevance threshold for retrieved chunks (cosine)",
			Value:       defaults.MinSimilarity,
			Sources:     cli.EnvVars("HEARSAY_MIN_SIMILARITY"),
			Destination: &p.minSimilarity,
		},
		&cli.IntFlag{
			Name:        "max-generation-retries",
			Usage:       "Generation retries after grounding violations",
			Value:       defaults.MaxGenerationRetries,
			Sources:     cli.EnvVars("HEARSAY_MAX_GENERATION_RETRIES"),
			Destination: &p.maxRetries,
		},
		&cli.StringFlag{
			Name:        "weak-grounding-policy",
			Usage:       "Handling of weakly grounded sentences (remove or hedge)",
			Value:       defaults.WeakGroundingPolicy,
			Sources:     cli.EnvVars("HEARSAY_WEAK_GROUNDING_POLICY"),
			Destination: &p.weakGrounding,
		},
		&cli.FloatFlag{
			Name:        "min-publishable",
			Usage:       "Confidence below which answers are marked hedged",
			Value:       defaults.MinPublishable,
			Sources:     cli.EnvVars("HEARSAY_MIN_PUBLISHABLE"),
			Destination: &p.minPublishable,
		},
		&cli.IntFlag{
			Name:        "index-workers",
			Usage:       "Concurrent chunk-and-embed workers during indexing",
			Value:       defaults.IndexWorkers,
			Sources:     cli.EnvVars("HEARSAY_INDEX_WORKERS"),
			Destination: &p.indexWorkers,
		},
	}
}

// Configure builds the pipeline tuning: defaults, then the TOML file, then
// flag overrides, validated as a whole. Only flags actually set on the
// command override the file; otherwise the flag defaults would clobber it.
func (p *Pipeline) Configure(c *cli.Command) (*domainConfig.Pipeline, error) {
	cfg := domainConfig.DefaultPipeline()

	if p.configPath != "" {
		// #nosec G304 - path is expected to be provided by CLI argument
		data, err := os.ReadFile(p.configPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read pipeline config file",
				goerr.V("path", p.configPath))
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, goerr.Wrap(err, "failed to parse TOML pipeline config",
				goerr.V("path", p.configPath))
		}
	}

	if c.IsSet("evidence-cap") {
		cfg.EvidenceCap = p.evidenceCap
	}
	if c.IsSet("min-similarity") {
		cfg.MinSimilarity = p.minSimilarity
	}
	if c.IsSet("max-generation-retries") {
		cfg.MaxGenerationRetries = p.maxRetries
	}
	if c.IsSet("weak-grounding-policy") {
		cfg.WeakGroundingPolicy = p.weakGrounding
	}
	if c.IsSet("min-publishable") {
		cfg.MinPublishable = p.minPublishable
	}
	if c.IsSet("index-workers") {
		cfg.IndexWorkers = p.indexWorkers
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "pipeline config validation failed")
	}

	return &cfg, nil
}
