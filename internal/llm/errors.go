package llm

import "errors"

// Sentinel errors for collaborator calls. Both survive retry exhaustion so
// call sites can distinguish a provider outage from output that parsed but
// failed validation.
var (
	ErrUnavailable = errors.New("llm provider unavailable")
	ErrMalformed   = errors.New("llm response malformed")
)

// Retryable reports whether the caller may resubmit the same turn.
// Both collaborator failure modes are retryable; malformed output is
// treated like a transient failure per the error handling design.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrMalformed)
}
