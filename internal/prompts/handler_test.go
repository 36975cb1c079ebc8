package prompts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/arbiter-ai/arbiter/internal/prompts"
	"github.com/arbiter-ai/arbiter/pkg/pagination"
)

type mockSystem struct {
	listFn         func(ctx context.Context, page pagination.PageRequest, filters prompts.Filters) (*pagination.PageResult[prompts.Prompt], error)
	findFn         func(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error)
	createFn       func(ctx context.Context, cmd prompts.CreateCommand) (*prompts.Prompt, error)
	updateFn       func(ctx context.Context, id uuid.UUID, cmd prompts.UpdateCommand) (*prompts.Prompt, error)
	deleteFn       func(ctx context.Context, id uuid.UUID) error
	activateFn     func(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error)
	deactivateFn   func(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error)
	instructionsFn func(ctx context.Context, stage prompts.Stage) (string, error)
}

func (m *mockSystem) Handler() *prompts.Handler { return nil }

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters prompts.Filters) (*pagination.PageResult[prompts.Prompt], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Create(ctx context.Context, cmd prompts.CreateCommand) (*prompts.Prompt, error) {
	return m.createFn(ctx, cmd)
}

func (m *mockSystem) Update(ctx context.Context, id uuid.UUID, cmd prompts.UpdateCommand) (*prompts.Prompt, error) {
	return m.updateFn(ctx, id, cmd)
}

func (m *mockSystem) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func (m *mockSystem) Activate(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error) {
	return m.activateFn(ctx, id)
}

func (m *mockSystem) Deactivate(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error) {
	return m.deactivateFn(ctx, id)
}

func (m *mockSystem) Instructions(ctx context.Context, stage prompts.Stage) (string, error) {
	return m.instructionsFn(ctx, stage)
}

func newTestHandler(sys *mockSystem) *prompts.Handler {
	return prompts.NewHandler(
		sys,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
}

func setupMux(h *prompts.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		pattern := route.Method + " " + group.Prefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	return mux
}

func samplePrompt() prompts.Prompt {
	return prompts.Prompt{
		ID:           uuid.MustParse("650e8400-e29b-41d4-a716-446655440001"),
		Name:         "strict-classify",
		Stage:        prompts.StageClassify,
		Instructions: "Classify conservatively.",
		Active:       true,
	}
}

func TestHandlerFind(t *testing.T) {
	t.Run("returns prompt", func(t *testing.T) {
		p := samplePrompt()
		sys := &mockSystem{
			findFn: func(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error) {
				if id != p.ID {
					t.Errorf("id = %v, want %v", id, p.ID)
				}
				return &p, nil
			},
		}
		mux := setupMux(newTestHandler(sys))

		req := httptest.NewRequest("GET", "/prompts/"+p.ID.String(), nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var got prompts.Prompt
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Name != p.Name {
			t.Errorf("name = %q, want %q", got.Name, p.Name)
		}
	})

	t.Run("unknown id returns 404", func(t *testing.T) {
		sys := &mockSystem{
			findFn: func(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error) {
				return nil, prompts.ErrNotFound
			},
		}
		mux := setupMux(newTestHandler(sys))

		req := httptest.NewRequest("GET", "/prompts/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("malformed id returns 400", func(t *testing.T) {
		mux := setupMux(newTestHandler(&mockSystem{}))

		req := httptest.NewRequest("GET", "/prompts/not-a-uuid", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerCreate(t *testing.T) {
	t.Run("creates prompt", func(t *testing.T) {
		p := samplePrompt()
		sys := &mockSystem{
			createFn: func(ctx context.Context, cmd prompts.CreateCommand) (*prompts.Prompt, error) {
				if cmd.Stage != prompts.StageClassify {
					t.Errorf("stage = %q, want classify", cmd.Stage)
				}
				return &p, nil
			},
		}
		mux := setupMux(newTestHandler(sys))

		body, _ := json.Marshal(prompts.CreateCommand{
			Name:         "strict-classify",
			Stage:        prompts.StageClassify,
			Instructions: "Classify conservatively.",
		})
		req := httptest.NewRequest("POST", "/prompts", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("invalid stage returns 400", func(t *testing.T) {
		mux := setupMux(newTestHandler(&mockSystem{}))

		req := httptest.NewRequest("POST", "/prompts", bytes.NewReader([]byte(`{"name":"x","stage":"banana"}`)))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("duplicate name returns 409", func(t *testing.T) {
		sys := &mockSystem{
			createFn: func(ctx context.Context, cmd prompts.CreateCommand) (*prompts.Prompt, error) {
				return nil, prompts.ErrDuplicate
			},
		}
		mux := setupMux(newTestHandler(sys))

		body, _ := json.Marshal(prompts.CreateCommand{Name: "strict-classify", Stage: prompts.StageClassify})
		req := httptest.NewRequest("POST", "/prompts", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})
}

func TestHandlerStages(t *testing.T) {
	mux := setupMux(newTestHandler(&mockSystem{}))

	req := httptest.NewRequest("GET", "/prompts/stages", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got []prompts.Stage
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != len(prompts.Stages()) {
		t.Errorf("stages = %d, want %d", len(got), len(prompts.Stages()))
	}
}

func TestHandlerInstructions(t *testing.T) {
	t.Run("returns effective instructions", func(t *testing.T) {
		sys := &mockSystem{
			instructionsFn: func(ctx context.Context, stage prompts.Stage) (string, error) {
				return "override text", nil
			},
		}
		mux := setupMux(newTestHandler(sys))

		req := httptest.NewRequest("GET", "/prompts/extract/instructions", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var got prompts.StageContent
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Stage != prompts.StageExtract {
			t.Errorf("stage = %q, want extract", got.Stage)
		}
		if got.Content != "override text" {
			t.Errorf("content = %q, want override text", got.Content)
		}
	})

	t.Run("unknown stage returns 400", func(t *testing.T) {
		mux := setupMux(newTestHandler(&mockSystem{}))

		req := httptest.NewRequest("GET", "/prompts/banana/instructions", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerSpec(t *testing.T) {
	mux := setupMux(newTestHandler(&mockSystem{}))

	req := httptest.NewRequest("GET", "/prompts/classify/spec", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got prompts.StageContent
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Content == "" {
		t.Error("spec content should not be empty")
	}
}

func TestHandlerActivate(t *testing.T) {
	p := samplePrompt()
	sys := &mockSystem{
		activateFn: func(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error) {
			active := p
			active.Active = true
			return &active, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	req := httptest.NewRequest("POST", "/prompts/"+p.ID.String()+"/activate", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got prompts.Prompt
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Active {
		t.Error("prompt should be active")
	}
}

func TestHandlerDelete(t *testing.T) {
	p := samplePrompt()
	sys := &mockSystem{
		deleteFn: func(ctx context.Context, id uuid.UUID) error {
			if id != p.ID {
				t.Errorf("id = %v, want %v", id, p.ID)
			}
			return nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	req := httptest.NewRequest("DELETE", "/prompts/"+p.ID.String(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}
