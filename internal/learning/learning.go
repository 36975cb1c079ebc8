// Package learning implements the feedback-driven improvement loop:
// agreement analysis over reviewer feedback, LLM-generated matrix change
// suggestions, the human approval workflow those suggestions move
// through, and sample re-validation of the active matrix.
package learning

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/arbiter-ai/arbiter/internal/llm"
)

// Trigger identifies what started an analysis run.
type Trigger string

// Analysis triggers.
const (
	TriggerManual    Trigger = "manual"
	TriggerAutomatic Trigger = "automatic"
)

// Analysis is one stored analysis run: agreement rates computed from
// reviewer feedback, misclassification clusters, and the collaborator's
// pattern summaries.
type Analysis struct {
	ID                uuid.UUID          `json:"id"`
	Trigger           Trigger            `json:"trigger"`
	RangeStart        *time.Time         `json:"range_start,omitempty"`
	RangeEnd          *time.Time         `json:"range_end,omitempty"`
	MisclassifiedOnly bool               `json:"misclassified_only"`
	TotalCases        int                `json:"total_cases"`
	OverallAgreement  float64            `json:"overall_agreement"`
	CategoryAgreement map[string]float64 `json:"category_agreement"`
	Clusters          []llm.Cluster      `json:"clusters"`
	Patterns          []string           `json:"patterns"`
	CreatedAt         time.Time          `json:"created_at"`
}

// SuggestionStatus is a suggestion's position in the approval workflow.
type SuggestionStatus string

// Suggestion states. Rejected and applied are terminal.
const (
	StatusPending  SuggestionStatus = "pending"
	StatusApproved SuggestionStatus = "approved"
	StatusRejected SuggestionStatus = "rejected"
	StatusApplied  SuggestionStatus = "applied"
)

// Suggestion change types. The payload shape is fixed per type.
const (
	ChangeNewRule      = "new_rule"
	ChangeModifyRule   = "modify_rule"
	ChangeAdjustWeight = "adjust_weight"
	ChangeNewAttribute = "new_attribute"
)

// Suggestion is one proposed matrix change moving through the approval
// workflow. Payload carries the typed change content and is only merged
// into a draft when the suggestion is applied.
type Suggestion struct {
	ID             uuid.UUID        `json:"id"`
	AnalysisID     uuid.UUID        `json:"analysis_id"`
	Type           string           `json:"type"`
	Rationale      string           `json:"rationale"`
	ImpactEstimate string           `json:"impact_estimate"`
	Payload        json.RawMessage  `json:"payload"`
	Status         SuggestionStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	ReviewedBy     string           `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time       `json:"reviewed_at,omitempty"`
	AppliedVersion *string          `json:"applied_version,omitempty"`
}

// AnalyzeCommand scopes a manual analysis run.
type AnalyzeCommand struct {
	RangeStart        *time.Time `json:"range_start,omitempty"`
	RangeEnd          *time.Time `json:"range_end,omitempty"`
	MisclassifiedOnly bool       `json:"misclassified_only"`
}

// ReviewCommand identifies the reviewer acting on a suggestion.
type ReviewCommand struct {
	Reviewer string `json:"reviewer"`
}

// ValidationReport summarizes a sample re-evaluation of previously
// misclassified cases against the active matrix.
type ValidationReport struct {
	MatrixVersion string    `json:"matrix_version"`
	Candidates    int       `json:"candidates"`
	SampleSize    int       `json:"sample_size"`
	Improved      int       `json:"improved"`
	Unchanged     int       `json:"unchanged"`
	Worsened      int       `json:"worsened"`
	ValidatedAt   time.Time `json:"validated_at"`
}
