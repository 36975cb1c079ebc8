package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/arbiter-ai/arbiter/internal/decision"
	"github.com/arbiter-ai/arbiter/internal/interview"
	"github.com/arbiter-ai/arbiter/internal/llm"
)

// TurnResult is the outcome of one dialogue operation: the updated session
// snapshot, the most recent classification pass if one ran this turn, and
// any newly accepted questions for the user.
type TurnResult struct {
	Session        *interview.Session       `json:"session"`
	Classification *decision.Classification `json:"classification,omitempty"`
	Questions      []string                 `json:"questions,omitempty"`
}

// Begin runs the initial classification for a new case and routes the
// fresh session. When the confidence lands in the clarification band, the
// first question round is generated and recorded. Output that stays
// malformed after retries routes the case to manual review instead of
// failing the operation.
func Begin(ctx context.Context, rt *Runtime, description string) (*TurnResult, error) {
	session := interview.NewSession()

	classification, err := rt.LLM.Classify(ctx, description, nil)
	if err != nil {
		if !errors.Is(err, llm.ErrMalformed) {
			return nil, fmt.Errorf("initial classification: %w", err)
		}

		rt.Logger.WarnContext(ctx, "initial classification degraded, routing to review",
			"error", err)

		if err := rt.Controller.StopDegraded(session); err != nil {
			return nil, err
		}
		return &TurnResult{Session: session}, nil
	}

	rt.Controller.Route(session, classification.Confidence)

	questions, err := nextQuestions(ctx, rt, session, description, classification)
	if err != nil {
		return nil, err
	}

	rt.Logger.InfoContext(ctx, "interview started",
		"status", session.Status,
		"confidence", classification.Confidence,
		"questions", len(questions))

	return &TurnResult{
		Session:        session,
		Classification: classification,
		Questions:      questions,
	}, nil
}

// Answer records one user answer against a clone of the session. When the
// answer completes the outstanding round, the case is re-classified over
// the full dialogue history, re-routed, and the next round generated. The
// caller persists the returned session only on success; any collaborator
// failure leaves the stored session untouched.
func Answer(ctx context.Context, rt *Runtime, session *interview.Session, description, answer string) (*TurnResult, error) {
	work := session.Clone()

	if err := rt.Controller.RecordAnswer(work, answer); err != nil {
		return nil, err
	}

	if work.Status != interview.StatusAsking {
		// more answers outstanding in this round; no model call yet
		return &TurnResult{Session: work}, nil
	}

	classification, err := rt.LLM.Classify(ctx, description, History(work))
	if err != nil {
		if !errors.Is(err, llm.ErrMalformed) {
			return nil, fmt.Errorf("re-classification after turn %d: %w", work.TurnsTaken, err)
		}

		rt.Logger.WarnContext(ctx, "re-classification degraded, routing to review",
			"turn", work.TurnsTaken,
			"error", err)

		if err := rt.Controller.StopDegraded(work); err != nil {
			return nil, err
		}
		return &TurnResult{Session: work}, nil
	}

	rt.Controller.Route(work, classification.Confidence)

	questions, err := nextQuestions(ctx, rt, work, description, classification)
	if err != nil {
		return nil, err
	}

	rt.Logger.InfoContext(ctx, "interview turn complete",
		"turn", work.TurnsTaken,
		"status", work.Status,
		"confidence", classification.Confidence,
		"questions", len(questions))

	return &TurnResult{
		Session:        work,
		Classification: classification,
		Questions:      questions,
	}, nil
}

// Skip force-classifies a clone of the session, ending the dialogue at the
// user's request without another model call.
func Skip(rt *Runtime, session *interview.Session) (*TurnResult, error) {
	work := session.Clone()

	if err := rt.Controller.ForceClassify(work); err != nil {
		return nil, err
	}

	rt.Logger.Info("interview skipped", "turns_taken", work.TurnsTaken)
	return &TurnResult{Session: work}, nil
}

// nextQuestions runs the guards and generates the next question round for
// a session left in Asking. Sessions in any other state pass through
// unchanged. A round where no generated question survives dedupe and
// budget force-stops the dialogue for manual review: a model that can
// only repeat itself must not end the case as a clean classification.
func nextQuestions(ctx context.Context, rt *Runtime, s *interview.Session, description string, current *decision.Classification) ([]string, error) {
	if s.Status != interview.StatusAsking {
		return nil, nil
	}

	if !rt.Controller.CheckGuards(s) {
		rt.Logger.InfoContext(ctx, "interview force-stopped",
			"reason", s.StopReason,
			"turns_taken", s.TurnsTaken)
		return nil, nil
	}

	budget, criticalOnly := rt.Controller.QuestionBudget(s)

	generated, err := rt.LLM.GenerateQuestions(ctx, description, current, History(s), budget, criticalOnly)
	if err != nil {
		if !errors.Is(err, llm.ErrMalformed) {
			return nil, fmt.Errorf("generate questions: %w", err)
		}

		rt.Logger.WarnContext(ctx, "question generation degraded, treating round as empty",
			"turn", s.TurnsTaken,
			"error", err)
		generated = nil
	}

	accepted := rt.Controller.AcceptQuestions(s, generated)
	if len(accepted) == 0 {
		if err := rt.Controller.StopBarrenRound(s, generated); err != nil {
			return nil, err
		}
		rt.Logger.InfoContext(ctx, "interview force-stopped, no askable questions",
			"reason", s.StopReason,
			"turns_taken", s.TurnsTaken)
	}

	return accepted, nil
}

// History pairs the session's asked questions with their answers in order.
// An unanswered trailing question is excluded.
func History(s *interview.Session) []llm.Turn {
	n := min(len(s.AskedQuestions), len(s.Answers))

	turns := make([]llm.Turn, 0, n)
	for i := range n {
		turns = append(turns, llm.Turn{
			Question: s.AskedQuestions[i],
			Answer:   s.Answers[i],
		})
	}
	return turns
}
