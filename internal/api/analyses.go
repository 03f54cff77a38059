package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldnote/insight/internal/analyzer"
	"github.com/fieldnote/insight/internal/pipeline"
	"github.com/fieldnote/insight/internal/store"
	"github.com/fieldnote/insight/internal/transcript"
)

type createAnalysisRequest struct {
	Transcript    string `json:"transcript"`
	ProjectID     string `json:"project_id"`
	Interviewer   string `json:"interviewer"`
	InterviewDate string `json:"interview_date"`
	UserID        string `json:"user_id"`
}

type createAnalysisResponse struct {
	Analysis     *pipeline.AnalysisResult `json:"analysis"`
	Storage      *pipeline.Receipt        `json:"storage"`
	StorageError string                   `json:"storage_error,omitempty"`
}

func (s *Server) createAnalysis(w http.ResponseWriter, r *http.Request) {
	var req createAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	meta := pipeline.RequestMeta{
		ProjectID:     req.ProjectID,
		Interviewer:   req.Interviewer,
		InterviewDate: req.InterviewDate,
		UserID:        req.UserID,
	}

	result, receipt, err := s.runner.Process(r.Context(), req.Transcript, meta)
	if err != nil {
		var genErr *analyzer.GenerationError
		var storeErr *store.StorageError
		switch {
		case errors.Is(err, transcript.ErrMalformedTranscript):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case errors.As(err, &storeErr) && result != nil:
			// The analysis completed; only persistence failed. Return the
			// result so the caller does not lose the work.
			s.logger.Error("analysis persisted nothing", "error", err)
			writeJSON(w, http.StatusOK, createAnalysisResponse{
				Analysis:     result,
				Storage:      nil,
				StorageError: err.Error(),
			})
			return
		case errors.As(err, &genErr):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusGatewayTimeout, "analysis deadline exceeded")
			return
		default:
			s.logger.Error("analysis failed", "error", err)
			writeError(w, http.StatusInternalServerError, "analysis failed")
			return
		}
	}

	writeJSON(w, http.StatusOK, createAnalysisResponse{
		Analysis: result,
		Storage:  receipt,
	})
}

func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid analysis id")
		return
	}

	record, err := s.fetcher.GetAnalysis(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "analysis not found")
			return
		}
		s.logger.Error("failed to load analysis", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load analysis")
		return
	}

	writeJSON(w, http.StatusOK, record)
}
