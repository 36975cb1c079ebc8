package cases

import (
	"errors"
	"net/http"

	"github.com/arbiter-ai/arbiter/internal/interview"
	"github.com/arbiter-ai/arbiter/internal/llm"
)

// Domain errors for case operations.
var (
	ErrNotFound         = errors.New("case not found")
	ErrDuplicate        = errors.New("case already exists")
	ErrEmptyDescription = errors.New("case description must not be empty")
	ErrNotInterviewing  = errors.New("case has no open clarification session")
	ErrAlreadyDecided   = errors.New("case already has a final classification")
	ErrNotDecided       = errors.New("case has no final classification yet")
	ErrConcurrentTurn   = errors.New("another turn is in progress for this case")
	ErrInvalidFeedback  = errors.New("feedback outcome is invalid")
)

// MapHTTPStatus maps case domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrConcurrentTurn) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrNotInterviewing) || errors.Is(err, ErrAlreadyDecided) ||
		errors.Is(err, ErrNotDecided) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrEmptyDescription) || errors.Is(err, ErrInvalidFeedback) {
		return http.StatusBadRequest
	}
	if errors.Is(err, interview.ErrNotWaitingForAnswer) || errors.Is(err, interview.ErrSessionTerminal) {
		return http.StatusConflict
	}
	if errors.Is(err, llm.ErrUnavailable) || errors.Is(err, llm.ErrMalformed) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
