package types

import "github.com/m-mizutani/goerr/v2"

// Error tags classify pipeline failures so callers can distinguish
// retryable infrastructure faults from data and grounding problems.
// Epistemic insufficiency is intentionally absent: it is an Answer state,
// not an error.
var (
	// ErrTagTransient marks retryable infrastructure errors (embedding
	// model timeouts, index I/O). Exhausted retries surface to the caller
	// as a service error, never as a refusal.
	ErrTagTransient = goerr.NewTag("transient")

	// ErrTagDataQuality marks per-record input problems (unchunkable text,
	// malformed reviews). Logged and excluded, never a batch abort.
	ErrTagDataQuality = goerr.NewTag("data_quality")

	// ErrTagGrounding marks hallucinated or unsupported citations detected
	// during verification.
	ErrTagGrounding = goerr.NewTag("grounding")

	// ErrTagSchema marks an Answer that failed schema validation just
	// before emission. Fatal to the request.
	ErrTagSchema = goerr.NewTag("schema")

	// ErrTagNotFound marks lookups for entities that do not exist. Carried
	// by the repository sentinels so callers need not know the backend.
	ErrTagNotFound = goerr.NewTag("not_found")
)
