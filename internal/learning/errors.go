package learning

import (
	"errors"
	"net/http"

	"github.com/arbiter-ai/arbiter/internal/llm"
)

// Domain errors for learning operations.
var (
	ErrAnalysisNotFound   = errors.New("analysis not found")
	ErrSuggestionNotFound = errors.New("suggestion not found")
	ErrDuplicate          = errors.New("record already exists")
	ErrWorkflowViolation  = errors.New("suggestion state does not allow this transition")
	ErrInvalidPayload     = errors.New("suggestion payload does not match its type")
	ErrNoFeedback         = errors.New("no reviewed cases available")
)

// MapHTTPStatus maps learning domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrAnalysisNotFound) || errors.Is(err, ErrSuggestionNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrWorkflowViolation) || errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidPayload) {
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, ErrNoFeedback) {
		return http.StatusConflict
	}
	if errors.Is(err, llm.ErrUnavailable) || errors.Is(err, llm.ErrMalformed) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
