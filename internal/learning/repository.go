package learning

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/arbiter-ai/arbiter/internal/cases"
	"github.com/arbiter-ai/arbiter/internal/decision"
	"github.com/arbiter-ai/arbiter/internal/llm"
	"github.com/arbiter-ai/arbiter/internal/matrices"
	"github.com/arbiter-ai/arbiter/pkg/repository"
)

// Config carries the learning engine's tunables.
type Config struct {
	// AgreementThreshold is the per-category agreement rate below which
	// feedback triggers an automatic analysis.
	AgreementThreshold float64
	// SampleFraction is the minimum share of misclassified cases
	// re-evaluated by Validate.
	SampleFraction float64
	// ValidateWorkers bounds the re-evaluation concurrency.
	ValidateWorkers int
}

type repo struct {
	db     *sql.DB
	llm    llm.Collaborator
	cases  cases.System
	store  matrices.System
	cfg    Config
	logger *slog.Logger
}

// New creates a learning repository implementing the System interface.
func New(
	db *sql.DB,
	collaborator llm.Collaborator,
	caseSys cases.System,
	store matrices.System,
	cfg Config,
	logger *slog.Logger,
) System {
	return &repo{
		db:     db,
		llm:    collaborator,
		cases:  caseSys,
		store:  store,
		cfg:    cfg,
		logger: logger.With("system", "learning"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

// Analyze runs one analysis: agreement rates from reviewer feedback,
// misclassification clusters, collaborator pattern summaries, and the
// suggestions derived from them. The analysis and its suggestions are
// stored in one transaction.
func (r *repo) Analyze(ctx context.Context, cmd AnalyzeCommand, trigger Trigger) (*Analysis, error) {
	records, err := r.cases.FeedbackRecords(ctx, cmd.RangeStart, false)
	if err != nil {
		return nil, err
	}

	if cmd.RangeEnd != nil {
		records = filterBefore(records, *cmd.RangeEnd)
	}
	if len(records) == 0 {
		return nil, ErrNoFeedback
	}

	overall, perCategory := Agreement(records)
	clusters := BuildClusters(records)

	scoped := records
	if cmd.MisclassifiedOnly {
		scoped = misclassified(records)
	}

	evidence := llm.Evidence{
		OverallAgreement:  overall,
		CategoryAgreement: perCategory,
		Clusters:          clusters,
	}

	patterns, err := r.llm.SummarizePatterns(ctx, evidence)
	if err != nil {
		return nil, fmt.Errorf("summarize patterns: %w", err)
	}

	changes, err := r.llm.SuggestChanges(ctx, evidence)
	if err != nil {
		return nil, fmt.Errorf("suggest changes: %w", err)
	}

	analysis := &Analysis{
		ID:                uuid.New(),
		Trigger:           trigger,
		RangeStart:        cmd.RangeStart,
		RangeEnd:          cmd.RangeEnd,
		MisclassifiedOnly: cmd.MisclassifiedOnly,
		TotalCases:        len(scoped),
		OverallAgreement:  overall,
		CategoryAgreement: perCategory,
		Clusters:          clusters,
		Patterns:          patterns,
		CreatedAt:         time.Now().UTC(),
	}

	suggestions := make([]Suggestion, 0, len(changes))
	for _, change := range changes {
		suggestions = append(suggestions, Suggestion{
			ID:             uuid.New(),
			AnalysisID:     analysis.ID,
			Type:           change.Type,
			Rationale:      change.Rationale,
			ImpactEstimate: change.ImpactEstimate,
			Payload:        change.Payload,
			Status:         StatusPending,
			CreatedAt:      analysis.CreatedAt,
		})
	}

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := insertAnalysis(ctx, tx, analysis); err != nil {
			return struct{}{}, err
		}
		for i := range suggestions {
			if err := insertSuggestion(ctx, tx, &suggestions[i]); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("analysis complete",
		"analysis_id", analysis.ID,
		"trigger", trigger,
		"cases", analysis.TotalCases,
		"overall_agreement", overall,
		"suggestions", len(suggestions))

	return analysis, nil
}

func (r *repo) ListAnalyses(ctx context.Context) ([]Analysis, error) {
	q := fmt.Sprintf(`SELECT %s FROM analyses ORDER BY created_at DESC`, analysisColumns)

	analyses, err := repository.QueryMany(ctx, r.db, q, nil, scanAnalysis)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return analyses, nil
}

func (r *repo) FindAnalysis(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	q := fmt.Sprintf(`SELECT %s FROM analyses WHERE id = $1`, analysisColumns)

	a, err := repository.QueryOne(ctx, r.db, q, []any{id}, scanAnalysis)
	if err != nil {
		return nil, repository.MapError(err, ErrAnalysisNotFound, ErrDuplicate)
	}
	return &a, nil
}

func (r *repo) ListSuggestions(ctx context.Context, status *SuggestionStatus) ([]Suggestion, error) {
	q := fmt.Sprintf(`SELECT %s FROM suggestions`, suggestionColumns)

	var args []any
	if status != nil {
		args = append(args, *status)
		q += " WHERE status = $1"
	}
	q += " ORDER BY created_at DESC"

	suggestions, err := repository.QueryMany(ctx, r.db, q, args, scanSuggestion)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	return suggestions, nil
}

func (r *repo) FindSuggestion(ctx context.Context, id uuid.UUID) (*Suggestion, error) {
	q := fmt.Sprintf(`SELECT %s FROM suggestions WHERE id = $1`, suggestionColumns)

	s, err := repository.QueryOne(ctx, r.db, q, []any{id}, scanSuggestion)
	if err != nil {
		return nil, repository.MapError(err, ErrSuggestionNotFound, ErrDuplicate)
	}
	return &s, nil
}

func (r *repo) Approve(ctx context.Context, id uuid.UUID, cmd ReviewCommand) (*Suggestion, error) {
	return r.review(ctx, id, cmd.Reviewer, StatusApproved)
}

func (r *repo) Reject(ctx context.Context, id uuid.UUID, cmd ReviewCommand) (*Suggestion, error) {
	return r.review(ctx, id, cmd.Reviewer, StatusRejected)
}

// Apply publishes an approved suggestion: its payload is merged into a
// draft of the active matrix and saved as the next version, then the
// suggestion records the version it produced.
func (r *repo) Apply(ctx context.Context, id uuid.UUID) (*Suggestion, error) {
	s, err := r.FindSuggestion(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canTransition(s.Status, StatusApplied) {
		return nil, fmt.Errorf("%w: %s → %s", ErrWorkflowViolation, s.Status, StatusApplied)
	}

	active, err := r.store.Active(ctx)
	if err != nil {
		return nil, err
	}

	draft, err := mergeSuggestion(*active, s)
	if err != nil {
		return nil, err
	}

	published, err := r.store.Save(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("publish suggestion %s: %w", id, err)
	}

	now := time.Now().UTC()
	err = repository.ExecExpectOne(ctx, r.db, `
		UPDATE suggestions
		SET status = $2, reviewed_at = $3, applied_version = $4
		WHERE id = $1 AND status = $5`,
		id, StatusApplied, now, published.Version, StatusApproved)
	if err != nil {
		return nil, repository.MapError(
			fmt.Errorf("%w: suggestion %s moved during apply", ErrWorkflowViolation, id),
			ErrSuggestionNotFound, ErrDuplicate)
	}

	s.Status = StatusApplied
	s.ReviewedAt = &now
	s.AppliedVersion = &published.Version

	r.logger.Info("suggestion applied",
		"suggestion_id", id,
		"type", s.Type,
		"matrix_version", published.Version)

	return s, nil
}

// Validate re-evaluates a random sample of misclassified cases against
// the active matrix. Only the rule evaluator runs; no model calls.
func (r *repo) Validate(ctx context.Context) (*ValidationReport, error) {
	records, err := r.cases.FeedbackRecords(ctx, nil, true)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoFeedback
	}

	active, err := r.store.Active(ctx)
	if err != nil {
		return nil, err
	}

	size := max(1, int(math.Ceil(r.cfg.SampleFraction*float64(len(records)))))
	sample := make([]cases.FeedbackRecord, 0, size)
	for _, i := range rand.Perm(len(records))[:size] {
		sample = append(sample, records[i])
	}

	report := &ValidationReport{
		MatrixVersion: active.Version,
		Candidates:    len(records),
		SampleSize:    size,
		ValidatedAt:   time.Now().UTC(),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.cfg.ValidateWorkers))

	for _, record := range sample {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			ev := decision.Evaluate(*active, record.Attributes, record.Original)
			outcome := compareOutcome(record.FinalCategory, *record.CorrectedCategory, ev.Final.Category)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeImproved:
				report.Improved++
			case outcomeUnchanged:
				report.Unchanged++
			case outcomeWorsened:
				report.Worsened++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("validate sample: %w", err)
	}

	r.logger.Info("matrix validated",
		"matrix_version", report.MatrixVersion,
		"sample", report.SampleSize,
		"improved", report.Improved,
		"unchanged", report.Unchanged,
		"worsened", report.Worsened)

	return report, nil
}

// AutoCheck inspects the current agreement rates after feedback lands
// and starts an automatic analysis when any category has drifted below
// the threshold. Failures are logged; feedback recording never depends
// on this path.
func (r *repo) AutoCheck(ctx context.Context) {
	records, err := r.cases.FeedbackRecords(ctx, nil, false)
	if err != nil {
		r.logger.Error("auto-check feedback query failed", "error", err)
		return
	}

	_, perCategory := Agreement(records)

	for category, rate := range perCategory {
		if rate >= r.cfg.AgreementThreshold {
			continue
		}

		r.logger.Info("agreement below threshold, starting analysis",
			"category", category,
			"rate", rate,
			"threshold", r.cfg.AgreementThreshold)

		if _, err := r.Analyze(ctx, AnalyzeCommand{}, TriggerAutomatic); err != nil {
			r.logger.Error("automatic analysis failed", "error", err)
		}
		return
	}
}

func (r *repo) review(ctx context.Context, id uuid.UUID, reviewer string, to SuggestionStatus) (*Suggestion, error) {
	s, err := r.FindSuggestion(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canTransition(s.Status, to) {
		return nil, fmt.Errorf("%w: %s → %s", ErrWorkflowViolation, s.Status, to)
	}

	now := time.Now().UTC()
	err = repository.ExecExpectOne(ctx, r.db, `
		UPDATE suggestions
		SET status = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $1 AND status = $5`,
		id, to, reviewer, now, s.Status)
	if err != nil {
		return nil, repository.MapError(
			fmt.Errorf("%w: suggestion %s moved during review", ErrWorkflowViolation, id),
			ErrSuggestionNotFound, ErrDuplicate)
	}

	s.Status = to
	s.ReviewedBy = reviewer
	s.ReviewedAt = &now

	r.logger.Info("suggestion reviewed",
		"suggestion_id", id,
		"status", to,
		"reviewer", reviewer)

	return s, nil
}

func insertAnalysis(ctx context.Context, tx *sql.Tx, a *Analysis) error {
	agreement, err := json.Marshal(a.CategoryAgreement)
	if err != nil {
		return fmt.Errorf("marshal category_agreement: %w", err)
	}

	clusters, err := json.Marshal(a.Clusters)
	if err != nil {
		return fmt.Errorf("marshal clusters: %w", err)
	}

	patterns, err := json.Marshal(a.Patterns)
	if err != nil {
		return fmt.Errorf("marshal patterns: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analyses (id, trigger, range_start, range_end, misclassified_only, total_cases, overall_agreement, category_agreement, clusters, patterns, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.Trigger, a.RangeStart, a.RangeEnd, a.MisclassifiedOnly,
		a.TotalCases, a.OverallAgreement, agreement, clusters, patterns, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}

	return nil
}

func insertSuggestion(ctx context.Context, tx *sql.Tx, s *Suggestion) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO suggestions (id, analysis_id, type, rationale, impact_estimate, payload, status, created_at, reviewed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '')`,
		s.ID, s.AnalysisID, s.Type, s.Rationale, s.ImpactEstimate,
		[]byte(s.Payload), s.Status, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert suggestion: %w", err)
	}

	return nil
}

func filterBefore(records []cases.FeedbackRecord, end time.Time) []cases.FeedbackRecord {
	filtered := make([]cases.FeedbackRecord, 0, len(records))
	for _, r := range records {
		if !r.SubmittedAt.After(end) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func misclassified(records []cases.FeedbackRecord) []cases.FeedbackRecord {
	filtered := make([]cases.FeedbackRecord, 0, len(records))
	for _, r := range records {
		if r.Misclassified() {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
