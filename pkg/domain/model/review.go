package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
)

// Review is a raw user review handed over by the ingestion collaborator.
// Immutable once ingested; the engine only reads it.
type Review struct {
	ID       types.ReviewID `json:"review_id"`
	VenueID  types.VenueID  `json:"venue_id"`
	AuthorID types.AuthorID `json:"author_id,omitempty"`
	Text     string         `json:"text"`
	Rating   *float64       `json:"rating,omitempty"`
	PostedAt time.Time      `json:"posted_at"`
}

// Validate checks the ingestion contract: non-empty text and venue ID.
// Malformed reviews are rejected per-record, never as a batch abort.
func (r *Review) Validate() error {
	if err := r.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid review", goerr.T(types.ErrTagDataQuality))
	}
	if err := r.VenueID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid review", goerr.T(types.ErrTagDataQuality), goerr.V("reviewID", r.ID))
	}
	if strings.TrimSpace(r.Text) == "" {
		return goerr.New("review text is empty",
			goerr.T(types.ErrTagDataQuality),
			goerr.V("reviewID", r.ID),
			goerr.V("venueID", r.VenueID))
	}
	if r.Rating != nil && (*r.Rating < 0 || *r.Rating > 5) {
		return goerr.New("review rating out of range",
			goerr.T(types.ErrTagDataQuality),
			goerr.V("reviewID", r.ID),
			goerr.V("rating", *r.Rating))
	}
	return nil
}
