package api

import (
	"context"

	"github.com/arbiter-ai/arbiter/internal/cases"
	"github.com/arbiter-ai/arbiter/internal/config"
	"github.com/arbiter-ai/arbiter/internal/learning"
	"github.com/arbiter-ai/arbiter/internal/llm"
	"github.com/arbiter-ai/arbiter/internal/matrices"
	"github.com/arbiter-ai/arbiter/internal/prompts"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Cases    cases.System
	Matrices matrices.System
	Learning learning.System
	Prompts  prompts.System
}

// NewDomain creates all domain systems from the API runtime. The cases
// system notifies the learning system after each feedback verdict through
// a hook bound after both systems exist, which keeps the dependency
// one-directional at compile time.
func NewDomain(cfg *config.Config, runtime *Runtime) *Domain {
	promptsSystem := prompts.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	collaborator := llm.NewClient(
		runtime.Agent,
		promptsSystem,
		cfg.LLM.Options(),
		runtime.Logger,
	)

	matrixSystem := matrices.New(
		runtime.Database.Connection(),
		collaborator,
		runtime.Storage,
		runtime.Logger,
	)

	var learningSystem learning.System

	caseSystem := cases.New(
		runtime.Database.Connection(),
		collaborator,
		matrixSystem,
		cfg.Decision.Interview(),
		runtime.Logger,
		runtime.Pagination,
		func(ctx context.Context) {
			if learningSystem != nil {
				learningSystem.AutoCheck(ctx)
			}
		},
	)

	learningSystem = learning.New(
		runtime.Database.Connection(),
		collaborator,
		caseSystem,
		matrixSystem,
		cfg.Learning.Engine(),
		runtime.Logger,
	)

	return &Domain{
		Cases:    caseSystem,
		Matrices: matrixSystem,
		Learning: learningSystem,
		Prompts:  promptsSystem,
	}
}
