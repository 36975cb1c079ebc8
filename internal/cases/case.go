// Package cases implements the case domain: the subjects of
// classification, their clarification sessions, the immutable decision
// records produced for them, and reviewer feedback.
package cases

import (
	"time"

	"github.com/google/uuid"

	"github.com/arbiter-ai/arbiter/internal/decision"
	"github.com/arbiter-ai/arbiter/internal/interview"
)

// Status identifies where a case sits in its lifecycle.
type Status string

// Case states. Review is a classified case flagged for human review.
const (
	StatusPending      Status = "pending"
	StatusInterviewing Status = "interviewing"
	StatusClassified   Status = "classified"
	StatusReview       Status = "review"
)

// FeedbackOutcome is a reviewer's verdict on a final classification.
type FeedbackOutcome string

// Feedback outcomes.
const (
	FeedbackConfirmed FeedbackOutcome = "confirmed"
	FeedbackCorrected FeedbackOutcome = "corrected"
)

// Feedback records a reviewer's verdict. CorrectedCategory is set only
// when the outcome is corrected.
type Feedback struct {
	Outcome           FeedbackOutcome    `json:"outcome"`
	CorrectedCategory *decision.Category `json:"corrected_category,omitempty"`
	Notes             string             `json:"notes,omitempty"`
	Reviewer          string             `json:"reviewer"`
	SubmittedAt       time.Time          `json:"submitted_at"`
}

// Case is one classification subject and its dialogue state. The session
// and latest classification are snapshots; decision records are stored
// separately and never mutated.
type Case struct {
	ID                 uuid.UUID                `json:"id"`
	Description        string                   `json:"description"`
	Status             Status                   `json:"status"`
	Session            *interview.Session       `json:"session,omitempty"`
	LastClassification *decision.Classification `json:"last_classification,omitempty"`
	ReviewRequired     bool                     `json:"review_required"`
	Feedback           *Feedback                `json:"feedback,omitempty"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

// Decision is one immutable decision record for a case: the reconciled
// classification together with the matrix evaluation that produced it.
type Decision struct {
	ID             uuid.UUID               `json:"id"`
	CaseID         uuid.UUID               `json:"case_id"`
	Classification decision.Classification `json:"classification"`
	MatrixVersion  string                  `json:"matrix_version"`
	Attributes     map[string]any          `json:"attributes"`
	Evaluation     decision.Evaluation     `json:"evaluation"`
	ReviewRequired bool                    `json:"review_required"`
	DecidedAt      time.Time               `json:"decided_at"`
}

// FeedbackRecord is the learning engine's view of one reviewed case:
// what the system decided and what the reviewer said.
type FeedbackRecord struct {
	CaseID            uuid.UUID               `json:"case_id"`
	Description       string                  `json:"description"`
	FinalCategory     decision.Category       `json:"final_category"`
	Confidence        float64                 `json:"confidence"`
	Original          decision.Classification `json:"original"`
	MatrixVersion     string                  `json:"matrix_version"`
	Attributes        map[string]any          `json:"attributes"`
	Outcome           FeedbackOutcome         `json:"outcome"`
	CorrectedCategory *decision.Category      `json:"corrected_category,omitempty"`
	SubmittedAt       time.Time               `json:"submitted_at"`
}

// Misclassified reports whether the reviewer corrected the decision.
func (r FeedbackRecord) Misclassified() bool {
	return r.Outcome == FeedbackCorrected
}

// CreateCommand opens a new case for classification.
type CreateCommand struct {
	Description string `json:"description"`
}

// AnswerCommand carries one user answer to an outstanding question.
type AnswerCommand struct {
	Answer string `json:"answer"`
}

// FeedbackCommand carries a reviewer verdict on a classified case.
type FeedbackCommand struct {
	Outcome           FeedbackOutcome    `json:"outcome"`
	CorrectedCategory *decision.Category `json:"corrected_category,omitempty"`
	Notes             string             `json:"notes,omitempty"`
	Reviewer          string             `json:"reviewer"`
}

// TurnResponse is returned by the operations that advance a case: the
// updated case, any questions awaiting answers, and the decision record
// once the case reaches a final classification.
type TurnResponse struct {
	Case      Case      `json:"case"`
	Questions []string  `json:"questions,omitempty"`
	Decision  *Decision `json:"decision,omitempty"`
}
