package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/store"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/visits"
)

type Handler struct {
	service visits.Service
}

type createVisitRequest struct {
	RequestID string `json:"request_id"`
	Mode      string `json:"mode"`
}

type pauseRequest struct {
	Reason     string     `json:"reason"`
	Notes      string     `json:"notes"`
	ResumeDate *time.Time `json:"resume_date"`
}

type actionResponse struct {
	Applied bool             `json:"applied"`
	Visit   models.VisitView `json:"visit"`
}

type canQueueResponse struct {
	CanQueue bool `json:"can_queue"`
}

type eventsResponse struct {
	Events   []models.VisitEvent `json:"events"`
	Verified *bool               `json:"verified,omitempty"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// URL action names mapped to journal action names.
var visitActions = map[string]string{
	"join":        models.ActionJoinQueue,
	"leave":       models.ActionLeaveQueue,
	"advance":     models.ActionAdvance,
	"toggle-mode": models.ActionToggleMode,
	"queue-all":   models.ActionQueueAll,
	"pause":       models.ActionPauseQueue,
	"resume":      models.ActionResumeQueue,
}

var stepActions = map[string]string{
	"queue":    models.ActionQueueStep,
	"start":    models.ActionStartStep,
	"check-in": models.ActionCheckIn,
	"complete": models.ActionCompleteStep,
}

func NewHandler(service visits.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/visits", h.handleCreateVisit).Methods(http.MethodPost)
	router.HandleFunc("/api/visits/{visit_id}", h.handleGetVisit).Methods(http.MethodGet)
	router.HandleFunc("/api/visits/{visit_id}/actions/{action}", h.handleVisitAction).Methods(http.MethodPost)
	router.HandleFunc("/api/visits/{visit_id}/steps/{step_id}/actions/{action}", h.handleStepAction).Methods(http.MethodPost)
	router.HandleFunc("/api/visits/{visit_id}/steps/{step_id}/can-queue", h.handleCanQueue).Methods(http.MethodGet)
	router.HandleFunc("/api/visits/{visit_id}/events", h.handleEvents).Methods(http.MethodGet)
	return router
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleCreateVisit(w http.ResponseWriter, r *http.Request) {
	var req createVisitRequest
	if !decodeRequest(w, r, &req, false) {
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.Mode = strings.TrimSpace(req.Mode)
	if req.RequestID == "" {
		req.RequestID = strings.TrimSpace(r.Header.Get("X-Request-ID"))
	}

	mode := models.Mode(req.Mode)
	if req.Mode != "" && !mode.Valid() {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "mode must be LINEAR or MULTI_STREAM")
		return
	}

	view, _, err := h.service.CreateVisit(r.Context(), visits.CreateVisitInput{RequestID: req.RequestID, Mode: mode})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleGetVisit(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetVisit(r.Context(), mux.Vars(r)["visit_id"])
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleVisitAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	action, ok := visitActions[vars["action"]]
	if !ok {
		writeError(w, requestID(r), http.StatusNotFound, "unknown_action", "unknown action")
		return
	}

	input := visits.VisitActionInput{VisitID: vars["visit_id"], Action: action}
	if action == models.ActionPauseQueue {
		var req pauseRequest
		if !decodeRequest(w, r, &req, true) {
			return
		}
		input.Pause = visits.PauseInput{Reason: req.Reason, Notes: req.Notes, ResumeDate: req.ResumeDate}
	}

	view, applied, err := h.service.ApplyVisitAction(r.Context(), input)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Applied: applied, Visit: view})
}

func (h *Handler) handleStepAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	action, ok := stepActions[vars["action"]]
	if !ok {
		writeError(w, requestID(r), http.StatusNotFound, "unknown_action", "unknown action")
		return
	}

	view, applied, err := h.service.ApplyStepAction(r.Context(), visits.StepActionInput{
		VisitID: vars["visit_id"],
		StepID:  vars["step_id"],
		Action:  action,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Applied: applied, Visit: view})
}

func (h *Handler) handleCanQueue(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	can, err := h.service.CanQueueStep(r.Context(), vars["visit_id"], vars["step_id"])
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID(r), status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, canQueueResponse{CanQueue: can})
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	visitID := mux.Vars(r)["visit_id"]

	verify := false
	if raw := strings.TrimSpace(r.URL.Query().Get("verify")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, requestID(r), http.StatusBadRequest, "invalid_request", "verify must be a boolean")
			return
		}
		verify = parsed
	}

	events, err := h.service.ListEvents(r.Context(), visitID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID(r), status, code, msg)
		return
	}
	resp := eventsResponse{Events: events}
	if resp.Events == nil {
		resp.Events = []models.VisitEvent{}
	}
	if verify {
		ok, err := h.service.VerifyEvents(r.Context(), visitID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, requestID(r), status, code, msg)
			return
		}
		resp.Verified = &ok
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeRequest reads a JSON body into target. An empty body is accepted
// unless required is set.
func decodeRequest(w http.ResponseWriter, r *http.Request, target interface{}, required bool) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) && !required {
			return true
		}
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func requestID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrVisitNotFound):
		return http.StatusNotFound, "visit_not_found", "visit not found"
	case errors.Is(err, store.ErrStepNotFound):
		return http.StatusNotFound, "step_not_found", "step not found"
	case errors.Is(err, visits.ErrUnknownAction):
		return http.StatusNotFound, "unknown_action", "unknown action"
	case errors.Is(err, visits.ErrInvalidPause):
		return http.StatusBadRequest, "invalid_request", err.Error()
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
