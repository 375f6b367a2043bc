package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/opstriage/triage-engine/internal/models"
	"github.com/opstriage/triage-engine/internal/queue"
)

type submitAlertRequest struct {
	AlertText string `json:"alert_text"`
}

type submitAlertResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Poll      string `json:"poll"`
}

type queueStatsResponse struct {
	ActiveCount                  int  `json:"active_count"`
	QueueLength                  int  `json:"queue_length"`
	IsBusy                       bool `json:"is_busy"`
	AverageProcessingTimeSeconds int  `json:"average_processing_time_seconds"`
}

type requestStatusResponse struct {
	RequestID             string `json:"request_id"`
	Status                string `json:"status"`
	Position              int    `json:"position,omitempty"`
	EstimatedWaitSeconds  int    `json:"estimated_wait_seconds,omitempty"`
	ProcessingTimeSeconds int    `json:"processing_time_seconds,omitempty"`
	Failure               string `json:"failure,omitempty"`
	Transient             bool   `json:"transient,omitempty"`
}

type diagnosisResponse struct {
	RequestID string           `json:"request_id"`
	Status    string           `json:"status"`
	Diagnosis models.Diagnosis `json:"diagnosis"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Status    string `json:"status,omitempty"`
	Transient bool   `json:"transient,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmitAlert(w http.ResponseWriter, r *http.Request) {
	var req submitAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.AlertText) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "alert_text is required"})
		return
	}

	id, err := s.controller.Submit(req.AlertText)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, submitAlertResponse{
		RequestID: id,
		Status:    string(queue.StatusQueued),
		Poll:      "/api/v1/queue/" + id,
	})
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats := s.controller.Stats()
	writeJSON(w, http.StatusOK, queueStatsResponse{
		ActiveCount:                  stats.ActiveCount,
		QueueLength:                  stats.QueueLength,
		IsBusy:                       stats.IsBusy,
		AverageProcessingTimeSeconds: stats.AverageProcessingTimeSeconds,
	})
}

func (s *Server) handleRequestStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := s.controller.Status(id)
	if err != nil {
		if errors.Is(err, queue.ErrUnknownRequest) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown request id"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, requestStatusResponse{
		RequestID:             status.ID,
		Status:                string(status.Status),
		Position:              status.Position,
		EstimatedWaitSeconds:  status.EstimatedWaitSeconds,
		ProcessingTimeSeconds: status.ProcessingTimeSeconds,
		Failure:               status.Failure,
		Transient:             status.Transient,
	})
}

func (s *Server) handleDiagnosis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := s.controller.Status(id)
	if err != nil {
		if errors.Is(err, queue.ErrUnknownRequest) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown request id"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	switch status.Status {
	case queue.StatusQueued, queue.StatusProcessing:
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:  "diagnosis not ready",
			Status: string(status.Status),
		})
	case queue.StatusFailed:
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:     status.Failure,
			Status:    string(status.Status),
			Transient: status.Transient,
		})
	case queue.StatusCompleted:
		if status.Result == nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "completed request has no result"})
			return
		}
		writeJSON(w, http.StatusOK, diagnosisResponse{
			RequestID: status.ID,
			Status:    string(status.Status),
			Diagnosis: *status.Result,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
