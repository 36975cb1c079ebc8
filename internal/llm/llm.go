// Package llm wraps the language-model provider behind typed collaborator
// calls. Every call carries a timeout and bounded retry with exponential
// backoff; responses are validated into domain types so call sites match on
// the unavailable/malformed sentinels instead of parsing ad hoc payloads.
package llm

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/arbiter-ai/arbiter/internal/decision"
	"github.com/arbiter-ai/arbiter/internal/interview"
)

// Turn is one completed question/answer exchange supplied as dialogue history.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Cluster is one misclassification pair with its observed frequency and
// example cases, supplied as analysis evidence.
type Cluster struct {
	From         decision.Category `json:"from"`
	To           decision.Category `json:"to"`
	Count        int               `json:"count"`
	ExampleCases []uuid.UUID       `json:"example_cases"`
}

// Evidence is the aggregated feedback material given to the pattern and
// suggestion stages.
type Evidence struct {
	OverallAgreement  float64            `json:"overall_agreement"`
	CategoryAgreement map[string]float64 `json:"category_agreement"`
	Clusters          []Cluster          `json:"clusters"`
}

// SuggestedChange is one proposed matrix change from the suggestion stage.
// Payload is shaped by Type and validated by the learning engine before the
// suggestion enters the approval workflow.
type SuggestedChange struct {
	Type           string          `json:"type"`
	Rationale      string          `json:"rationale"`
	ImpactEstimate string          `json:"impact_estimate"`
	Payload        json.RawMessage `json:"payload"`
}

// Draft is the bootstrap stage's proposed baseline matrix content.
type Draft struct {
	Description string               `json:"description"`
	Attributes  []decision.Attribute `json:"attributes"`
	Rules       []decision.Rule      `json:"rules"`
}

// Collaborator defines the typed LLM calls the pipeline consumes. All calls
// may fail; failures never corrupt caller state.
type Collaborator interface {
	Classify(ctx context.Context, description string, history []Turn) (*decision.Classification, error)
	GenerateQuestions(ctx context.Context, description string, current *decision.Classification, history []Turn, budget int, criticalOnly bool) ([]interview.Question, error)
	ExtractAttributes(ctx context.Context, description string, history []Turn, attrs []decision.Attribute) (map[string]any, error)
	GenerateDraft(ctx context.Context) (*Draft, error)
	SummarizePatterns(ctx context.Context, ev Evidence) ([]string, error)
	SuggestChanges(ctx context.Context, ev Evidence) ([]SuggestedChange, error)
}
