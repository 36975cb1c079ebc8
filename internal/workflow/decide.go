package workflow

import (
	"context"
	"errors"
	"fmt"

	gaoconfig "github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/arbiter-ai/arbiter/internal/decision"
	"github.com/arbiter-ai/arbiter/internal/interview"
	"github.com/arbiter-ai/arbiter/internal/llm"
)

// State keys shared between decision graph nodes.
const (
	KeyDescription     = "description"
	KeySession         = "session"
	KeyClassification  = "classification"
	KeyMatrix          = "matrix"
	KeyAttributes      = "attributes"
	KeyExtractDegraded = "extract_degraded"
	KeyOutcome         = "outcome"
)

// Outcome is the result of the non-interactive decision pipeline: the
// extracted attribute values, the matrix evaluation over them, and the
// final reconciled classification.
type Outcome struct {
	MatrixVersion  string                  `json:"matrix_version"`
	Attributes     map[string]any          `json:"attributes"`
	Classification decision.Classification `json:"classification"`
	Evaluation     decision.Evaluation     `json:"evaluation"`
	ReviewRequired bool                    `json:"review_required"`
}

// Decide runs the decision graph (extract → evaluate → finalize) for a
// session that has reached a terminal state. The classification argument
// is the most recent LLM pass recorded during the dialogue.
func Decide(ctx context.Context, rt *Runtime, description string, session *interview.Session, classification decision.Classification) (*Outcome, error) {
	if !session.Terminal() {
		return nil, ErrSessionNotReady
	}

	matrix, err := rt.Matrices.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve active matrix: %w", err)
	}

	graph, err := buildGraph(rt)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	initialState := state.New(nil)
	initialState = initialState.Set(KeyDescription, description)
	initialState = initialState.Set(KeySession, *session)
	initialState = initialState.Set(KeyClassification, classification)
	initialState = initialState.Set(KeyMatrix, *matrix)

	finalState, err := graph.Execute(ctx, initialState)
	if err != nil {
		return nil, fmt.Errorf("execute graph: %w", err)
	}

	return extractOutcome(finalState)
}

func buildGraph(rt *Runtime) (state.StateGraph, error) {
	cfg := gaoconfig.DefaultGraphConfig("arbiter-decide")
	cfg.Observer = "noop"

	graph, err := state.NewGraph(cfg)
	if err != nil {
		return nil, err
	}

	if err := graph.AddNode("extract", ExtractNode(rt)); err != nil {
		return nil, err
	}

	if err := graph.AddNode("evaluate", EvaluateNode(rt)); err != nil {
		return nil, err
	}

	if err := graph.AddNode("finalize", FinalizeNode(rt)); err != nil {
		return nil, err
	}

	if err := graph.AddEdge("extract", "evaluate", nil); err != nil {
		return nil, err
	}

	if err := graph.AddEdge("evaluate", "finalize", nil); err != nil {
		return nil, err
	}

	if err := graph.SetEntryPoint("extract"); err != nil {
		return nil, err
	}

	if err := graph.SetExitPoint("finalize"); err != nil {
		return nil, err
	}

	return graph, nil
}

// ExtractNode returns a state node that extracts the matrix's declared
// attribute values from the case description and dialogue history. A
// response that stays malformed after retries degrades to unknown values
// and flags the case for review instead of failing the pipeline.
func ExtractNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		description, session, err := extractInputs(s)
		if err != nil {
			return s, fmt.Errorf("extract: %w", err)
		}

		matrix, err := extractMatrix(s)
		if err != nil {
			return s, fmt.Errorf("extract: %w", err)
		}

		values, err := rt.LLM.ExtractAttributes(ctx, description, History(&session), matrix.Attributes)
		if err != nil {
			if !errors.Is(err, llm.ErrMalformed) {
				return s, fmt.Errorf("%w: %w", ErrExtractFailed, err)
			}

			rt.Logger.WarnContext(ctx, "attribute extraction degraded, defaulting values",
				"error", err)

			values = make(map[string]any, len(matrix.Attributes))
			for _, a := range matrix.Attributes {
				values[a.Name] = decision.UnknownValue
			}
			s = s.Set(KeyExtractDegraded, true)
		}

		rt.Logger.InfoContext(ctx, "extract node complete", "attributes", len(values))

		s = s.Set(KeyAttributes, values)
		return s, nil
	})
}

// EvaluateNode returns a state node that runs the pure rule evaluator over
// the extracted attributes and the dialogue's final classification.
func EvaluateNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		matrix, err := extractMatrix(s)
		if err != nil {
			return s, fmt.Errorf("evaluate: %w", err)
		}

		classification, err := stateValue[decision.Classification](s, KeyClassification)
		if err != nil {
			return s, fmt.Errorf("evaluate: %w", err)
		}

		values, err := stateValue[map[string]any](s, KeyAttributes)
		if err != nil {
			return s, fmt.Errorf("evaluate: %w", err)
		}

		ev := decision.Evaluate(matrix, values, classification)

		rt.Logger.InfoContext(ctx, "evaluate node complete",
			"matrix_version", ev.MatrixVersion,
			"triggered_rules", len(ev.TriggeredRules),
			"overridden", ev.Overridden)

		s = s.Set(KeyOutcome, Outcome{
			MatrixVersion:  ev.MatrixVersion,
			Attributes:     values,
			Classification: ev.Final,
			Evaluation:     ev,
		})
		return s, nil
	})
}

// FinalizeNode returns a state node that folds the session and extraction
// flags into the outcome's review decision.
func FinalizeNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		outcome, err := stateValue[Outcome](s, KeyOutcome)
		if err != nil {
			return s, fmt.Errorf("finalize: %w", err)
		}

		_, session, err := extractInputs(s)
		if err != nil {
			return s, fmt.Errorf("finalize: %w", err)
		}

		degraded := false
		if v, ok := s.Get(KeyExtractDegraded); ok {
			degraded, _ = v.(bool)
		}

		outcome.ReviewRequired = session.ReviewRequired ||
			outcome.Evaluation.ReviewRequired ||
			degraded

		rt.Logger.InfoContext(ctx, "decision complete",
			"category", outcome.Classification.Category,
			"confidence", outcome.Classification.Confidence,
			"review_required", outcome.ReviewRequired)

		s = s.Set(KeyOutcome, outcome)
		return s, nil
	})
}

func extractInputs(s state.State) (string, interview.Session, error) {
	description, err := stateValue[string](s, KeyDescription)
	if err != nil {
		return "", interview.Session{}, err
	}

	session, err := stateValue[interview.Session](s, KeySession)
	if err != nil {
		return "", interview.Session{}, err
	}

	return description, session, nil
}

func extractMatrix(s state.State) (decision.Matrix, error) {
	return stateValue[decision.Matrix](s, KeyMatrix)
}

func extractOutcome(s state.State) (*Outcome, error) {
	outcome, err := stateValue[Outcome](s, KeyOutcome)
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

func stateValue[T any](s state.State, key string) (T, error) {
	var zero T

	val, ok := s.Get(key)
	if !ok {
		return zero, fmt.Errorf("missing %s in state", key)
	}

	typed, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("%s has unexpected type %T", key, val)
	}

	return typed, nil
}
