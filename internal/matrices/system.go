package matrices

import (
	"context"

	"github.com/arbiter-ai/arbiter/internal/decision"
)

// System defines the public contract for matrix store operations.
type System interface {
	Handler() *Handler

	Active(ctx context.Context) (*decision.Matrix, error)
	Version(ctx context.Context, version string) (*decision.Matrix, error)
	List(ctx context.Context) ([]VersionSummary, error)
	Save(ctx context.Context, cmd SaveCommand) (*decision.Matrix, error)
	Evaluate(ctx context.Context, cmd EvaluateCommand) (*decision.Evaluation, error)
	Export(ctx context.Context, version string) ([]byte, error)
}
