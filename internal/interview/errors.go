package interview

import "errors"

// Sentinel errors for clarification session transitions.
var (
	ErrNotWaitingForAnswer = errors.New("session is not waiting for an answer")
	ErrSessionTerminal     = errors.New("session has already reached a terminal state")
)
