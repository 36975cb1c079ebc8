// Package workflow coordinates the classification pipeline: the
// interactive clarification turns and the non-interactive decision graph
// that runs once a session reaches a terminal state. Turn operations work
// on session clones, so a failed collaborator call leaves the persisted
// session untouched.
package workflow

import (
	"log/slog"

	"github.com/arbiter-ai/arbiter/internal/interview"
	"github.com/arbiter-ai/arbiter/internal/llm"
	"github.com/arbiter-ai/arbiter/internal/matrices"
)

// Runtime bundles the dependencies that workflow operations require.
// It is constructed by higher-level composition code from Infrastructure
// and Domain systems.
type Runtime struct {
	LLM        llm.Collaborator
	Matrices   matrices.System
	Controller *interview.Controller
	Logger     *slog.Logger
}
