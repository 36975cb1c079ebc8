package workflow

import "errors"

// Workflow errors. Turn errors surface through the cases domain; graph
// errors wrap the failing node.
var (
	ErrSessionNotReady = errors.New("session has not reached a terminal state")
	ErrExtractFailed   = errors.New("attribute extraction failed")
	ErrEvaluateFailed  = errors.New("matrix evaluation failed")
)
