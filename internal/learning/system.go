package learning

import (
	"context"

	"github.com/google/uuid"
)

// System defines the public contract for learning engine operations.
type System interface {
	Handler() *Handler

	Analyze(ctx context.Context, cmd AnalyzeCommand, trigger Trigger) (*Analysis, error)
	ListAnalyses(ctx context.Context) ([]Analysis, error)
	FindAnalysis(ctx context.Context, id uuid.UUID) (*Analysis, error)

	ListSuggestions(ctx context.Context, status *SuggestionStatus) ([]Suggestion, error)
	FindSuggestion(ctx context.Context, id uuid.UUID) (*Suggestion, error)
	Approve(ctx context.Context, id uuid.UUID, cmd ReviewCommand) (*Suggestion, error)
	Reject(ctx context.Context, id uuid.UUID, cmd ReviewCommand) (*Suggestion, error)
	Apply(ctx context.Context, id uuid.UUID) (*Suggestion, error)

	Validate(ctx context.Context) (*ValidationReport, error)

	// AutoCheck runs after feedback is recorded and starts an automatic
	// analysis when any per-category agreement rate has fallen below the
	// configured threshold.
	AutoCheck(ctx context.Context)
}
