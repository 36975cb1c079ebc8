// Package interview implements the bounded clarification dialogue that runs
// between an ambiguous initial classification and the final decision. The
// controller is a pure state machine over a Session snapshot: it never
// performs I/O, so a failed collaborator call simply discards the working
// copy and leaves the persisted session untouched.
package interview

import "slices"

// Status identifies the state of a clarification session.
type Status string

// Session states. ReadyToClassify and ForceStopped are terminal.
const (
	StatusAwaitingInitial  Status = "awaiting_initial"
	StatusAsking           Status = "asking"
	StatusWaitingForAnswer Status = "waiting_for_answer"
	StatusReadyToClassify  Status = "ready_to_classify"
	StatusForceStopped     Status = "force_stopped"
)

// StopReason explains why a session was force-stopped.
type StopReason string

// Force-stop reasons.
const (
	StopRepetition        StopReason = "repetition_detected"
	StopUserLacksInfo     StopReason = "user_lacks_information"
	StopTurnLimit         StopReason = "turn_limit_reached"
	StopMalformedResponse StopReason = "malformed_response"
	StopNoQuestions       StopReason = "no_askable_questions"
)

// Session is the persisted snapshot of one clarification dialogue.
// Question/answer turns are strictly serialized: at most one question round
// is outstanding at any time.
type Session struct {
	Status         Status     `json:"status"`
	TurnsTaken     int        `json:"turns_taken"`
	AskedQuestions []string   `json:"asked_questions"`
	Answers        []string   `json:"answers"`
	PendingCount   int        `json:"pending_count"`
	LastConfidence float64    `json:"last_confidence"`
	StopReason     StopReason `json:"stop_reason,omitempty"`
	ReviewRequired bool       `json:"review_required"`
	Skipped        bool       `json:"skipped"`
	SoftWarning    bool       `json:"soft_warning"`
}

// NewSession creates a session awaiting its initial classification.
func NewSession() *Session {
	return &Session{
		Status:         StatusAwaitingInitial,
		AskedQuestions: []string{},
		Answers:        []string{},
	}
}

// Terminal reports whether the session has reached a terminal state.
func (s *Session) Terminal() bool {
	return s.Status == StatusReadyToClassify || s.Status == StatusForceStopped
}

// Clone returns a deep copy of the session for all-or-nothing turn mutation.
func (s *Session) Clone() *Session {
	c := *s
	c.AskedQuestions = slices.Clone(s.AskedQuestions)
	c.Answers = slices.Clone(s.Answers)
	return &c
}
