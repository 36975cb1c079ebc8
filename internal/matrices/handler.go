package matrices

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/arbiter-ai/arbiter/pkg/handlers"
	"github.com/arbiter-ai/arbiter/pkg/routes"
)

// Handler provides HTTP endpoints for matrix store operations.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "matrices"),
	}
}

// Routes returns the route group definition for matrix endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/matrices",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/active", Handler: h.Active},
			{Method: "GET", Pattern: "/{version}", Handler: h.Version},
			{Method: "GET", Pattern: "/{version}/export", Handler: h.Export},
			{Method: "POST", Pattern: "", Handler: h.Save},
			{Method: "POST", Pattern: "/evaluate", Handler: h.Evaluate},
		},
	}
}

// List returns summaries of every matrix version, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.sys.List(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, summaries)
}

// Active returns the currently active matrix version, generating the
// baseline version first if none exists.
func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	m, err := h.sys.Active(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, m)
}

// Version returns a specific matrix version by its path parameter.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	m, err := h.sys.Version(r.Context(), r.PathValue("version"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, m)
}

// Export returns a matrix version as a downloadable JSON document.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	version := r.PathValue("version")

	data, err := h.sys.Export(r.Context(), version)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="matrix-`+version+`.json"`)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(data); err != nil {
		h.logger.Error("write export response", "version", version, "error", err)
	}
}

// Save publishes a draft posted as JSON as the next matrix version.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	var cmd SaveCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	m, err := h.sys.Save(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, m)
}

// Evaluate runs the rule evaluator over a posted classification and
// attribute set without touching any case record.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var cmd EvaluateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	ev, err := h.sys.Evaluate(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, ev)
}
