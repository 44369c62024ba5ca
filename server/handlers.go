package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"listing-publisher/models"
	"listing-publisher/pipeline"
)

type startRequest struct {
	URL string `json:"url"`
}

type publishRequest struct {
	Platforms []models.Platform `json:"platforms"`
}

type publishResponse struct {
	RunID  string               `json:"run_id"`
	Stage  pipeline.Stage       `json:"stage"`
	Result models.PublishResult `json:"result"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "runs": s.runs.Len()})
}

// startRun streams the run's progress as server-sent events until it
// reaches review or fails.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeJSONError(w, http.StatusBadRequest, "body must be {\"url\": \"...\"}")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sink := func(e pipeline.Event) {
		// Register before the client can see the review payload and act on it.
		if st, ok := e.Payload.(pipeline.State); ok && e.Kind == pipeline.EventComplete {
			s.runs.Put(st)
		}
		if err := writeEvent(w, e); err != nil {
			s.logger.Warn("[http] SSE write failed: %v", err)
			return
		}
		flusher.Flush()
	}

	st, err := s.coord.Prepare(r.Context(), req.URL, sink)
	if err != nil {
		s.logger.Warn("[http] Run %s ended at %s: %v", st.RunID, st.FailedAt, err)
	}
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	st, ok := s.runs.Get(chi.URLParam(r, "runID"))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) reviewRun(w http.ResponseWriter, r *http.Request) {
	var edits pipeline.Edits
	if err := json.NewDecoder(r.Body).Decode(&edits); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid review body: "+err.Error())
		return
	}

	st, found, err := s.runs.Update(chi.URLParam(r, "runID"), func(cur pipeline.State) (pipeline.State, error) {
		return s.coord.Review(cur, edits)
	})
	if !found {
		writeJSONError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) publishRun(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid publish body: "+err.Error())
		return
	}
	if err := validatePlatforms(req.Platforms); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A client disconnect must not abandon a half-published run.
	ctx := context.WithoutCancel(r.Context())
	st, found, err := s.runs.Update(chi.URLParam(r, "runID"), func(cur pipeline.State) (pipeline.State, error) {
		return s.coord.Publish(ctx, cur, req.Platforms, nil)
	})
	if !found {
		writeJSONError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, publishResponse{RunID: st.RunID, Stage: st.Stage, Result: st.Result})
}

func (s *Server) abandonRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	_, found, _ := s.runs.Update(id, func(cur pipeline.State) (pipeline.State, error) {
		return s.coord.Abandon(context.WithoutCancel(r.Context()), cur), nil
	})
	if !found {
		writeJSONError(w, http.StatusNotFound, "run not found")
		return
	}
	s.runs.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.receipts.FetchByListing(chi.URLParam(r, "listingID"))
	if err != nil {
		s.logger.Error("[http] Receipt lookup failed: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "receipt lookup failed")
		return
	}
	respondJSON(w, http.StatusOK, receipts)
}

func validatePlatforms(platforms []models.Platform) error {
	if len(platforms) == 0 {
		return errors.New("at least one platform is required")
	}
	seen := make(map[models.Platform]bool, len(platforms))
	for _, p := range platforms {
		if p != models.Facebook && p != models.Instagram {
			return fmt.Errorf("unknown platform %q", p)
		}
		if seen[p] {
			return fmt.Errorf("platform %q listed twice", p)
		}
		seen[p] = true
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidEdit):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrWrongStage):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeEvent(w http.ResponseWriter, e pipeline.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data)
	return err
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
