package learning

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/arbiter-ai/arbiter/pkg/handlers"
	"github.com/arbiter-ai/arbiter/pkg/routes"
)

// Handler provides HTTP endpoints for learning operations.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "learning"),
	}
}

// Routes returns the route group definition for learning endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/learning",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/analyses", Handler: h.ListAnalyses},
			{Method: "GET", Pattern: "/analyses/{id}", Handler: h.FindAnalysis},
			{Method: "POST", Pattern: "/analyses", Handler: h.Analyze},
			{Method: "GET", Pattern: "/suggestions", Handler: h.ListSuggestions},
			{Method: "GET", Pattern: "/suggestions/{id}", Handler: h.FindSuggestion},
			{Method: "POST", Pattern: "/suggestions/{id}/approve", Handler: h.Approve},
			{Method: "POST", Pattern: "/suggestions/{id}/reject", Handler: h.Reject},
			{Method: "POST", Pattern: "/suggestions/{id}/apply", Handler: h.Apply},
			{Method: "POST", Pattern: "/validate", Handler: h.Validate},
		},
	}
}

// Analyze starts a manual analysis run over the requested feedback range.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var cmd AnalyzeCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	analysis, err := h.sys.Analyze(r.Context(), cmd, TriggerManual)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, analysis)
}

// ListAnalyses returns stored analyses, newest first.
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	analyses, err := h.sys.ListAnalyses(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, analyses)
}

// FindAnalysis returns a single analysis by its UUID path parameter.
func (h *Handler) FindAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrAnalysisNotFound)
		return
	}

	analysis, err := h.sys.FindAnalysis(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, analysis)
}

// ListSuggestions returns suggestions, optionally filtered by status.
func (h *Handler) ListSuggestions(w http.ResponseWriter, r *http.Request) {
	var status *SuggestionStatus
	if s := r.URL.Query().Get("status"); s != "" {
		v := SuggestionStatus(s)
		status = &v
	}

	suggestions, err := h.sys.ListSuggestions(r.Context(), status)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, suggestions)
}

// FindSuggestion returns a single suggestion by its UUID path parameter.
func (h *Handler) FindSuggestion(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrSuggestionNotFound)
		return
	}

	s, err := h.sys.FindSuggestion(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}

// Approve moves a pending suggestion to approved.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.reviewEndpoint(w, r, h.sys.Approve)
}

// Reject moves a pending suggestion to rejected.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.reviewEndpoint(w, r, h.sys.Reject)
}

// Apply publishes an approved suggestion as the next matrix version.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrSuggestionNotFound)
		return
	}

	s, err := h.sys.Apply(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}

// Validate re-evaluates a sample of misclassified cases against the
// active matrix and returns the improvement report.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	report, err := h.sys.Validate(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, report)
}

func (h *Handler) reviewEndpoint(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, id uuid.UUID, cmd ReviewCommand) (*Suggestion, error),
) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrSuggestionNotFound)
		return
	}

	var cmd ReviewCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	s, err := op(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}
