package usecase

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/hearsay-dev/hearsay/pkg/domain/interfaces"
	"github.com/hearsay-dev/hearsay/pkg/domain/model"
	"github.com/hearsay-dev/hearsay/pkg/domain/model/config"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
	"github.com/hearsay-dev/hearsay/pkg/service/answer"
	"github.com/hearsay-dev/hearsay/pkg/service/confidence"
	"github.com/hearsay-dev/hearsay/pkg/service/grounding"
	"github.com/hearsay-dev/hearsay/pkg/service/retrieval"
	"github.com/hearsay-dev/hearsay/pkg/utils/logging"
)

// QueryUseCase drives one question through retrieval, generation, grounding
// verification, confidence scoring and composition. Refusal is a first-class
// outcome: an Answer with Refused set, never an error.
type QueryUseCase struct {
	repo      interfaces.Repository
	retriever *retrieval.Service
	generator answer.Service
	verifier  *grounding.Verifier
	estimator *confidence.Estimator
	cfg       *config.Pipeline
}

// NewQueryUseCase creates a new QueryUseCase
func NewQueryUseCase(
	repo interfaces.Repository,
	retriever *retrieval.Service,
	generator answer.Service,
	verifier *grounding.Verifier,
	estimator *confidence.Estimator,
	cfg *config.Pipeline,
) *QueryUseCase {
	return &QueryUseCase{
		repo:      repo,
		retriever: retriever,
		generator: generator,
		verifier:  verifier,
		estimator: estimator,
		cfg:       cfg,
	}
}

// Ask answers a natural-language question about a venue from its indexed
// reviews. The returned Answer always satisfies the output schema; a schema
// failure aborts the request rather than emitting a malformed answer.
func (uc *QueryUseCase) Ask(ctx context.Context, venueID types.VenueID, question string) (*model.Answer, error) {
	if err := venueID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid venue ID")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, goerr.New("question must not be empty", goerr.V("venueID", venueID))
	}

	logger := logging.From(ctx)
	state := types.QueryStateRetrieving
	logger.Debug("query state", "state", state, "venueID", venueID)

	evidence, err := uc.retriever.Retrieve(ctx, venueID, question)
	if err != nil {
		return nil, goerr.Wrap(err, "retrieval failed", goerr.V("venueID", venueID))
	}

	if evidence.Empty() {
		return uc.refuse(ctx, venueID, question, types.RefusalNoEvidence)
	}

	verified, reason, err := uc.generateVerified(ctx, question, evidence)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return uc.refuse(ctx, venueID, question, reason)
	}

	state = types.QueryStateScoring
	logger.Debug("query state", "state", state, "venueID", venueID)

	totalReviews := uc.totalReviews(ctx, venueID, evidence)
	score := uc.estimator.Estimate(ctx, verified, evidence, totalReviews)

	return uc.compose(ctx, venueID, question, verified, evidence, score)
}

// generateVerified runs the bounded generate/verify loop. Hard grounding
// violations feed back into the next generation attempt as repair
// instructions; the loop gives up after MaxGenerationRetries retries.
// A non-empty refusal reason means no grounded answer could be produced.
func (uc *QueryUseCase) generateVerified(ctx context.Context, question string, evidence *model.RetrievalResult) (*model.VerifiedAnswer, types.RefusalReason, error) {
	logger := logging.From(ctx)

	var violations []string
	var result *grounding.Result

	for attempt := 0; attempt <= uc.cfg.MaxGenerationRetries; attempt++ {
		logger.Debug("query state",
			"state", types.QueryStateGenerating, "attempt", attempt)

		draft, err := uc.generator.Generate(ctx, answer.Input{
			Question:   question,
			Evidence:   evidence,
			Violations: violations,
		})
		if err != nil {
			return nil, "", goerr.Wrap(err, "answer generation failed",
				goerr.V("attempt", attempt))
		}

		logger.Debug("query state",
			"state", types.QueryStateVerifying, "attempt", attempt)

		result, err = uc.verifier.Verify(ctx, draft, evidence)
		if err != nil {
			return nil, "", goerr.Wrap(err, "grounding verification failed",
				goerr.V("attempt", attempt))
		}

		if result.Clean() {
			if result.TotalFailure() {
				// A well-behaved draft whose every claim was unsupported
				return nil, types.RefusalUnsupported, nil
			}
			return result.Verified, "", nil
		}

		logger.Info("grounding violations detected",
			"attempt", attempt,
			"violations", len(result.Violations),
		)
		violations = result.Violations
	}

	// Retry budget exhausted. Surviving stripped sentences are still
	// grounded, so a partial answer beats a refusal.
	if result != nil && !result.TotalFailure() {
		return result.Verified, "", nil
	}
	return nil, types.RefusalRetryExhausted, nil
}

// VenueMeta reports the indexed state of a venue. Errors carry the
// not_found tag for venues that were never indexed.
func (uc *QueryUseCase) VenueMeta(ctx context.Context, venueID types.VenueID) (*interfaces.VenueMeta, error) {
	if err := venueID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid venue ID")
	}
	return uc.repo.Index().GetVenueMeta(ctx, venueID)
}

// totalReviews resolves the venue's review count for coverage scoring. An
// unreadable meta degrades to the evidence itself rather than failing a
// query that already has a verified answer.
func (uc *QueryUseCase) totalReviews(ctx context.Context, venueID types.VenueID, evidence *model.RetrievalResult) int {
	meta, err := uc.repo.Index().GetVenueMeta(ctx, venueID)
	if err != nil {
		logging.From(ctx).Warn("failed to read venue meta for coverage scoring",
			"venueID", venueID, "error", err.Error())
		return evidence.DistinctReviews()
	}
	return meta.ReviewCount
}

// compose assembles and validates the terminal Answer
func (uc *QueryUseCase) compose(ctx context.Context, venueID types.VenueID, question string, verified *model.VerifiedAnswer, evidence *model.RetrievalResult, score confidence.Score) (*model.Answer, error) {
	citations := collectCitations(verified, evidence)

	out := &model.Answer{
		VenueID:       venueID,
		Question:      question,
		Text:          verified.Text(),
		Citations:     citations,
		Confidence:    score.Confidence,
		EvidenceCount: score.EvidenceCount,
		Hedged:        verified.HedgedSentences > 0 || score.Confidence < uc.cfg.MinPublishable,
	}

	if err := out.Validate(); err != nil {
		return nil, goerr.Wrap(err, "composed answer failed schema validation",
			goerr.V("venueID", venueID))
	}

	logging.From(ctx).Info("query answered",
		"state", types.QueryStateComposed,
		"venueID", venueID,
		"evidenceCount", out.EvidenceCount,
		"confidence", out.Confidence,
		"citations", len(out.Citations),
		"hedged", out.Hedged,
	)

	return out, nil
}

// refuse builds the terminal refusal Answer
func (uc *QueryUseCase) refuse(ctx context.Context, venueID types.VenueID, question string, reason types.RefusalReason) (*model.Answer, error) {
	out := &model.Answer{
		VenueID:       venueID,
		Question:      question,
		Text:          reason.Message(),
		Citations:     []model.Citation{},
		Refused:       true,
		RefusalReason: reason,
	}

	if err := out.Validate(); err != nil {
		return nil, goerr.Wrap(err, "refusal answer failed schema validation",
			goerr.V("venueID", venueID))
	}

	logging.From(ctx).Info("query refused",
		"state", types.QueryStateRefused,
		"venueID", venueID,
		"reason", reason,
	)

	return out, nil
}

// collectCitations flattens the verified sentences' citations in reading
// order, one entry per distinct chunk, with the cited text carried along.
func collectCitations(verified *model.VerifiedAnswer, evidence *model.RetrievalResult) []model.Citation {
	seen := make(map[types.ChunkID]struct{})
	citations := make([]model.Citation, 0)

	for _, sentence := range verified.Sentences {
		for _, id := range sentence.Citations {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			quote := ""
			if chunk := evidence.Lookup(id); chunk != nil {
				quote = chunk.Text
			}
			citations = append(citations, model.Citation{
				ChunkID: id,
				Quote:   quote,
			})
		}
	}

	return citations
}
