package cases

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arbiter-ai/arbiter/pkg/pagination"
)

// System defines the public contract for case domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Case], error)

	Find(ctx context.Context, id uuid.UUID) (*Case, error)
	Create(ctx context.Context, cmd CreateCommand) (*TurnResponse, error)
	Answer(ctx context.Context, id uuid.UUID, cmd AnswerCommand) (*TurnResponse, error)
	Classify(ctx context.Context, id uuid.UUID) (*TurnResponse, error)
	Feedback(ctx context.Context, id uuid.UUID, cmd FeedbackCommand) (*Case, error)
	Evaluation(ctx context.Context, id uuid.UUID) (*Decision, error)
	FeedbackRecords(ctx context.Context, since *time.Time, misclassifiedOnly bool) ([]FeedbackRecord, error)
}
