package cases_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/arbiter-ai/arbiter/internal/cases"
	"github.com/arbiter-ai/arbiter/internal/decision"
	"github.com/arbiter-ai/arbiter/internal/interview"
	"github.com/arbiter-ai/arbiter/pkg/pagination"
)

type mockSystem struct {
	listFn       func(ctx context.Context, page pagination.PageRequest, filters cases.Filters) (*pagination.PageResult[cases.Case], error)
	findFn       func(ctx context.Context, id uuid.UUID) (*cases.Case, error)
	createFn     func(ctx context.Context, cmd cases.CreateCommand) (*cases.TurnResponse, error)
	answerFn     func(ctx context.Context, id uuid.UUID, cmd cases.AnswerCommand) (*cases.TurnResponse, error)
	classifyFn   func(ctx context.Context, id uuid.UUID) (*cases.TurnResponse, error)
	feedbackFn   func(ctx context.Context, id uuid.UUID, cmd cases.FeedbackCommand) (*cases.Case, error)
	evaluationFn func(ctx context.Context, id uuid.UUID) (*cases.Decision, error)
}

func (m *mockSystem) Handler() *cases.Handler { return nil }

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters cases.Filters) (*pagination.PageResult[cases.Case], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*cases.Case, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Create(ctx context.Context, cmd cases.CreateCommand) (*cases.TurnResponse, error) {
	return m.createFn(ctx, cmd)
}

func (m *mockSystem) Answer(ctx context.Context, id uuid.UUID, cmd cases.AnswerCommand) (*cases.TurnResponse, error) {
	return m.answerFn(ctx, id, cmd)
}

func (m *mockSystem) Classify(ctx context.Context, id uuid.UUID) (*cases.TurnResponse, error) {
	return m.classifyFn(ctx, id)
}

func (m *mockSystem) Feedback(ctx context.Context, id uuid.UUID, cmd cases.FeedbackCommand) (*cases.Case, error) {
	return m.feedbackFn(ctx, id, cmd)
}

func (m *mockSystem) Evaluation(ctx context.Context, id uuid.UUID) (*cases.Decision, error) {
	return m.evaluationFn(ctx, id)
}

func (m *mockSystem) FeedbackRecords(context.Context, *time.Time, bool) ([]cases.FeedbackRecord, error) {
	return nil, nil
}

func newTestHandler(sys *mockSystem) *cases.Handler {
	return cases.NewHandler(
		sys,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
}

func setupMux(h *cases.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		pattern := route.Method + " " + group.Prefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	return mux
}

func sampleCase() cases.Case {
	now := time.Now().Truncate(time.Second)
	return cases.Case{
		ID:          uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
		Description: "automated invoice matching for accounts payable",
		Status:      cases.StatusInterviewing,
		Session: &interview.Session{
			Status:         interview.StatusWaitingForAnswer,
			AskedQuestions: []string{"How many invoices per month?"},
			Answers:        []string{},
			PendingCount:   1,
			LastConfidence: 0.72,
		},
		LastClassification: &decision.Classification{
			Category:   decision.CategoryAutomated,
			Confidence: 0.72,
			Rationale:  "straight-through processing with exception queue",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestHandlerCreate(t *testing.T) {
	c := sampleCase()
	sys := &mockSystem{
		createFn: func(_ context.Context, cmd cases.CreateCommand) (*cases.TurnResponse, error) {
			if cmd.Description == "" {
				return nil, cases.ErrEmptyDescription
			}
			return &cases.TurnResponse{
				Case:      c,
				Questions: []string{"How many invoices per month?"},
			}, nil
		},
	}

	mux := setupMux(newTestHandler(sys))

	t.Run("creates case and returns questions", func(t *testing.T) {
		body, _ := json.Marshal(cases.CreateCommand{Description: c.Description})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/cases", bytes.NewReader(body))
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", rec.Code)
		}

		var result cases.TurnResponse
		if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(result.Questions) != 1 {
			t.Errorf("questions = %d, want 1", len(result.Questions))
		}
		if result.Case.Status != cases.StatusInterviewing {
			t.Errorf("status = %s, want %s", result.Case.Status, cases.StatusInterviewing)
		}
	})

	t.Run("rejects empty description", func(t *testing.T) {
		body, _ := json.Marshal(cases.CreateCommand{})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/cases", bytes.NewReader(body))
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerAnswer(t *testing.T) {
	c := sampleCase()
	sys := &mockSystem{
		answerFn: func(_ context.Context, id uuid.UUID, cmd cases.AnswerCommand) (*cases.TurnResponse, error) {
			if id != c.ID {
				return nil, cases.ErrNotFound
			}
			decided := c
			decided.Status = cases.StatusClassified
			return &cases.TurnResponse{
				Case: decided,
				Decision: &cases.Decision{
					ID:            uuid.New(),
					CaseID:        c.ID,
					MatrixVersion: "1.0",
					Classification: decision.Classification{
						Category:   decision.CategoryAutomated,
						Confidence: 0.9,
					},
					DecidedAt: time.Now(),
				},
			}, nil
		},
	}

	mux := setupMux(newTestHandler(sys))

	t.Run("records answer and returns decision", func(t *testing.T) {
		body, _ := json.Marshal(cases.AnswerCommand{Answer: "around 40k"})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/cases/"+c.ID.String()+"/answer", bytes.NewReader(body))
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var result cases.TurnResponse
		if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if result.Decision == nil {
			t.Fatal("expected decision in response")
		}
		if result.Decision.MatrixVersion != "1.0" {
			t.Errorf("matrix_version = %s", result.Decision.MatrixVersion)
		}
	})

	t.Run("unknown case returns 404", func(t *testing.T) {
		body, _ := json.Marshal(cases.AnswerCommand{Answer: "anything"})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/cases/"+uuid.NewString()+"/answer", bytes.NewReader(body))
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("malformed id returns 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/cases/not-a-uuid/answer", bytes.NewReader([]byte(`{}`)))
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerFeedback(t *testing.T) {
	c := sampleCase()
	c.Status = cases.StatusClassified

	sys := &mockSystem{
		feedbackFn: func(_ context.Context, id uuid.UUID, cmd cases.FeedbackCommand) (*cases.Case, error) {
			if cmd.Outcome != cases.FeedbackConfirmed && cmd.Outcome != cases.FeedbackCorrected {
				return nil, cases.ErrInvalidFeedback
			}
			updated := c
			updated.Feedback = &cases.Feedback{
				Outcome:     cmd.Outcome,
				Reviewer:    cmd.Reviewer,
				SubmittedAt: time.Now(),
			}
			return &updated, nil
		},
	}

	mux := setupMux(newTestHandler(sys))

	t.Run("records confirmation", func(t *testing.T) {
		body, _ := json.Marshal(cases.FeedbackCommand{
			Outcome:  cases.FeedbackConfirmed,
			Reviewer: "reviewer@example.com",
		})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/cases/"+c.ID.String()+"/feedback", bytes.NewReader(body))
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var result cases.Case
		if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if result.Feedback == nil || result.Feedback.Outcome != cases.FeedbackConfirmed {
			t.Error("feedback not recorded on response")
		}
	})

	t.Run("rejects unknown outcome", func(t *testing.T) {
		body := []byte(`{"outcome":"maybe","reviewer":"reviewer@example.com"}`)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/cases/"+c.ID.String()+"/feedback", bytes.NewReader(body))
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerEvaluation(t *testing.T) {
	c := sampleCase()
	sys := &mockSystem{
		evaluationFn: func(_ context.Context, id uuid.UUID) (*cases.Decision, error) {
			if id != c.ID {
				return nil, cases.ErrNotDecided
			}
			return &cases.Decision{
				ID:            uuid.New(),
				CaseID:        c.ID,
				MatrixVersion: "1.2",
				Evaluation: decision.Evaluation{
					MatrixVersion: "1.2",
					TriggeredRules: []decision.TriggeredRule{
						{RuleID: "rule-regulated", RuleName: "regulated work needs human oversight", Priority: 80},
					},
				},
				DecidedAt: time.Now(),
			}, nil
		},
	}

	mux := setupMux(newTestHandler(sys))

	t.Run("returns stored trace", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/cases/"+c.ID.String()+"/evaluation", nil)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var result cases.Decision
		if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(result.Evaluation.TriggeredRules) != 1 {
			t.Errorf("triggered rules = %d, want 1", len(result.Evaluation.TriggeredRules))
		}
	})

	t.Run("undecided case returns 409", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/cases/"+uuid.NewString()+"/evaluation", nil)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
	})
}
