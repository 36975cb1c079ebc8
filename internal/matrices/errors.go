package matrices

import (
	"errors"
	"net/http"

	"github.com/arbiter-ai/arbiter/internal/decision"
	"github.com/arbiter-ai/arbiter/internal/llm"
)

// Domain errors for matrix store operations.
var (
	ErrNotFound     = errors.New("matrix version not found")
	ErrDuplicate    = errors.New("matrix version already exists")
	ErrEmptyDraft   = errors.New("matrix draft requires at least one attribute and one rule")
	ErrNoActive     = errors.New("no active matrix version")
	ErrRuleConflict = errors.New("rule references an undeclared attribute")
)

// MapHTTPStatus maps matrix domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrEmptyDraft) || errors.Is(err, ErrRuleConflict) {
		return http.StatusBadRequest
	}
	if errors.Is(err, decision.ErrInvalidVersion) || errors.Is(err, decision.ErrUnknownCategory) {
		return http.StatusBadRequest
	}
	if errors.Is(err, llm.ErrUnavailable) || errors.Is(err, llm.ErrMalformed) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
