package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/hearsay-dev/hearsay/pkg/domain/model"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
	"github.com/hearsay-dev/hearsay/pkg/usecase"
	"github.com/hearsay-dev/hearsay/pkg/utils/async"
	"github.com/hearsay-dev/hearsay/pkg/utils/errutil"
	"github.com/hearsay-dev/hearsay/pkg/utils/safe"
)

func venueIDFromRequest(r *http.Request) (types.VenueID, error) {
	venueID := types.VenueID(chi.URLParam(r, "venueID"))
	if err := venueID.Validate(); err != nil {
		return "", goerr.Wrap(err, "invalid venue ID in path")
	}
	return venueID, nil
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data) //nolint:errcheck // header already committed
}

// handleGetVenue reports the indexed state of a venue
func (s *Server) handleGetVenue(w http.ResponseWriter, r *http.Request) {
	type response struct {
		VenueID      types.VenueID `json:"venue_id"`
		ModelVersion string        `json:"model_version"`
		ReviewCount  int           `json:"review_count"`
		ChunkCount   int           `json:"chunk_count"`
	}

	venueID, err := venueIDFromRequest(r)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	meta, err := s.uc.Query.VenueMeta(r.Context(), venueID)
	if err != nil {
		if goerr.HasTag(err, types.ErrTagNotFound) {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusNotFound)
			return
		}
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, response{
		VenueID:      meta.VenueID,
		ModelVersion: meta.ModelVer,
		ReviewCount:  meta.ReviewCount,
		ChunkCount:   meta.ChunkCount,
	})
}

// handleIngestReviews accepts a review batch and indexes it in the
// background. The response acknowledges receipt, not completion: embedding a
// large batch outlives a sensible request timeout.
func (s *Server) handleIngestReviews(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Reviews []*model.Review `json:"reviews"`
		Replace bool            `json:"replace"`
	}
	type response struct {
		Status   string `json:"status"`
		Accepted int    `json:"accepted"`
	}

	defer safe.Close(r.Context(), r.Body)

	venueID, err := venueIDFromRequest(r)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errutil.HandleHTTP(r.Context(), w,
			goerr.Wrap(err, "failed to decode review batch"), http.StatusBadRequest)
		return
	}
	if len(req.Reviews) == 0 {
		errutil.HandleHTTP(r.Context(), w,
			goerr.New("review batch is empty"), http.StatusBadRequest)
		return
	}

	async.Dispatch(r.Context(), func(ctx context.Context) error {
		_, err := s.uc.Index.Index(ctx, venueID, req.Reviews, usecase.IndexOption{Replace: req.Replace})
		return errutil.Handle(ctx, err, "background indexing failed")
	})

	writeJSON(w, http.StatusAccepted, response{
		Status:   "accepted",
		Accepted: len(req.Reviews),
	})
}

// handleAsk answers a question about the venue from its indexed reviews.
// Refusals are 200 responses with the refused answer body.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Question string `json:"question"`
	}

	defer safe.Close(r.Context(), r.Body)

	venueID, err := venueIDFromRequest(r)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errutil.HandleHTTP(r.Context(), w,
			goerr.Wrap(err, "failed to decode question"), http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		errutil.HandleHTTP(r.Context(), w,
			goerr.New("question must not be empty"), http.StatusBadRequest)
		return
	}

	ans, err := s.uc.Query.Ask(r.Context(), venueID, req.Question)
	if err != nil {
		status := http.StatusInternalServerError
		if goerr.HasTag(err, types.ErrTagTransient) {
			status = http.StatusBadGateway
		}
		errutil.HandleHTTP(r.Context(), w, err, status)
		return
	}

	writeJSON(w, http.StatusOK, ans)
}
