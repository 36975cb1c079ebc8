package cases

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arbiter-ai/arbiter/internal/interview"
	"github.com/arbiter-ai/arbiter/internal/llm"
	"github.com/arbiter-ai/arbiter/internal/matrices"
	"github.com/arbiter-ai/arbiter/internal/workflow"
	"github.com/arbiter-ai/arbiter/pkg/pagination"
	"github.com/arbiter-ai/arbiter/pkg/query"
	"github.com/arbiter-ai/arbiter/pkg/repository"
)

// FeedbackHook is invoked after feedback is recorded, letting the learning
// engine decide whether an automatic analysis should run. Hook failures
// are logged, never surfaced to the reviewer.
type FeedbackHook func(ctx context.Context)

type repo struct {
	db         *sql.DB
	rt         *workflow.Runtime
	hook       FeedbackHook
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a case repository implementing the System interface. It
// internally constructs the workflow runtime from the provided
// dependencies. hook may be nil.
func New(
	db *sql.DB,
	collaborator llm.Collaborator,
	store matrices.System,
	interviewCfg interview.Config,
	logger *slog.Logger,
	pagination pagination.Config,
	hook FeedbackHook,
) System {
	rt := &workflow.Runtime{
		LLM:        collaborator,
		Matrices:   store,
		Controller: interview.NewController(interviewCfg),
		Logger:     logger.With("workflow", "decide"),
	}
	return &repo{
		db:         db,
		rt:         rt,
		hook:       hook,
		logger:     logger.With("system", "cases"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Case], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Description")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count cases: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanCase)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Case, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	c, err := repository.QueryOne(ctx, r.db, q, args, scanCase)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

// Create opens a case and runs the initial classification. The case row
// is inserted as pending before the model call, so a failed call leaves
// a pending case that a later classify request can pick up.
func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*TurnResponse, error) {
	if cmd.Description == "" {
		return nil, ErrEmptyDescription
	}

	now := time.Now().UTC()
	c := &Case{
		ID:          uuid.New(),
		Description: cmd.Description,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.insertCase(ctx, c); err != nil {
		return nil, err
	}

	result, err := workflow.Begin(ctx, r.rt, c.Description)
	if err != nil {
		return nil, fmt.Errorf("begin case %s: %w", c.ID, err)
	}

	return r.commitTurn(ctx, c, result, nil)
}

// Answer applies one user answer to an interviewing case. Turns are
// strictly serialized per case: a concurrent answer that committed first
// fails this one with ErrConcurrentTurn.
func (r *repo) Answer(ctx context.Context, id uuid.UUID, cmd AnswerCommand) (*TurnResponse, error) {
	c, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.Status != StatusInterviewing || c.Session == nil {
		return nil, ErrNotInterviewing
	}

	guard := c.Session.TurnsTaken
	result, err := workflow.Answer(ctx, r.rt, c.Session, c.Description, cmd.Answer)
	if err != nil {
		return nil, fmt.Errorf("answer case %s: %w", id, err)
	}

	return r.commitTurn(ctx, c, result, &guard)
}

// Classify forces a final classification now. A pending case gets its
// initial classification first; an open interview is marked skipped.
func (r *repo) Classify(ctx context.Context, id uuid.UUID) (*TurnResponse, error) {
	c, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	var guard *int

	switch c.Status {
	case StatusPending:
		result, err := workflow.Begin(ctx, r.rt, c.Description)
		if err != nil {
			return nil, fmt.Errorf("begin case %s: %w", id, err)
		}
		c.Session = result.Session
		c.LastClassification = result.Classification
	case StatusInterviewing:
		if c.Session == nil {
			return nil, ErrNotInterviewing
		}
		g := c.Session.TurnsTaken
		guard = &g
	default:
		return nil, ErrAlreadyDecided
	}

	if !c.Session.Terminal() {
		result, err := workflow.Skip(r.rt, c.Session)
		if err != nil {
			return nil, fmt.Errorf("skip interview for case %s: %w", id, err)
		}
		c.Session = result.Session
	}

	return r.commitTurn(ctx, c, &workflow.TurnResult{Session: c.Session}, guard)
}

// Feedback records a reviewer verdict on a decided case. A later verdict
// replaces an earlier one. The feedback hook runs after the verdict is
// stored.
func (r *repo) Feedback(ctx context.Context, id uuid.UUID, cmd FeedbackCommand) (*Case, error) {
	if err := validateFeedback(cmd); err != nil {
		return nil, err
	}

	c, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.Status != StatusClassified && c.Status != StatusReview {
		return nil, ErrNotDecided
	}

	c.Feedback = &Feedback{
		Outcome:           cmd.Outcome,
		CorrectedCategory: cmd.CorrectedCategory,
		Notes:             cmd.Notes,
		Reviewer:          cmd.Reviewer,
		SubmittedAt:       time.Now().UTC(),
	}
	c.UpdatedAt = time.Now().UTC()

	feedback, err := json.Marshal(c.Feedback)
	if err != nil {
		return nil, fmt.Errorf("marshal feedback: %w", err)
	}

	err = repository.ExecExpectOne(ctx, r.db,
		`UPDATE cases SET feedback = $2, updated_at = $3 WHERE id = $1`,
		c.ID, feedback, c.UpdatedAt)
	if err != nil {
		return nil, repository.MapError(fmt.Errorf("record feedback for case %s: %w", id, err), ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("feedback recorded",
		"case_id", c.ID,
		"outcome", cmd.Outcome,
		"reviewer", cmd.Reviewer)

	if r.hook != nil {
		r.hook(ctx)
	}

	return c, nil
}

// Evaluation returns the case's most recent decision record.
func (r *repo) Evaluation(ctx context.Context, id uuid.UUID) (*Decision, error) {
	if _, err := r.Find(ctx, id); err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`
		SELECT %s FROM decisions
		WHERE case_id = $1
		ORDER BY decided_at DESC
		LIMIT 1`, decisionColumns)

	d, err := repository.QueryOne(ctx, r.db, q, []any{id}, scanDecision)
	if err != nil {
		return nil, repository.MapError(err, ErrNotDecided, ErrDuplicate)
	}
	return &d, nil
}

// FeedbackRecords returns the learning engine's view of reviewed cases,
// pairing each case's feedback with its latest decision.
func (r *repo) FeedbackRecords(ctx context.Context, since *time.Time, misclassifiedOnly bool) ([]FeedbackRecord, error) {
	q := `
		SELECT c.id, c.description,
		       d.classification->>'category',
		       (d.classification->>'confidence')::float8,
		       d.evaluation->'original',
		       d.matrix_version, d.attributes, c.feedback
		FROM cases c
		JOIN LATERAL (
			SELECT classification, matrix_version, attributes, evaluation
			FROM decisions
			WHERE case_id = c.id
			ORDER BY decided_at DESC
			LIMIT 1
		) d ON true
		WHERE c.feedback IS NOT NULL`

	var args []any
	if since != nil {
		args = append(args, *since)
		q += fmt.Sprintf(" AND (c.feedback->>'submitted_at')::timestamptz >= $%d", len(args))
	}
	if misclassifiedOnly {
		q += fmt.Sprintf(" AND c.feedback->>'outcome' = '%s'", FeedbackCorrected)
	}
	q += " ORDER BY (c.feedback->>'submitted_at')::timestamptz"

	records, err := repository.QueryMany(ctx, r.db, q, args, scanFeedbackRecord)
	if err != nil {
		return nil, fmt.Errorf("query feedback records: %w", err)
	}
	return records, nil
}

// commitTurn persists the outcome of a dialogue operation. When the
// session reached a terminal state, the decision graph runs and the
// resulting record is stored in the same transaction as the case update.
func (r *repo) commitTurn(ctx context.Context, c *Case, result *workflow.TurnResult, guard *int) (*TurnResponse, error) {
	c.Session = result.Session
	if result.Classification != nil {
		c.LastClassification = result.Classification
	}

	var d *Decision

	switch {
	case c.Session.Terminal() && c.LastClassification == nil:
		// the collaborator never produced a usable classification;
		// nothing to decide, a human takes the case
		c.ReviewRequired = true
		c.Status = StatusReview

	case c.Session.Terminal():
		outcome, err := workflow.Decide(ctx, r.rt, c.Description, c.Session, *c.LastClassification)
		if err != nil {
			return nil, fmt.Errorf("decide case %s: %w", c.ID, err)
		}

		d = &Decision{
			ID:             uuid.New(),
			CaseID:         c.ID,
			Classification: outcome.Classification,
			MatrixVersion:  outcome.MatrixVersion,
			Attributes:     outcome.Attributes,
			Evaluation:     outcome.Evaluation,
			ReviewRequired: outcome.ReviewRequired,
			DecidedAt:      time.Now().UTC(),
		}

		c.ReviewRequired = outcome.ReviewRequired
		if outcome.ReviewRequired {
			c.Status = StatusReview
		} else {
			c.Status = StatusClassified
		}

	default:
		c.Status = StatusInterviewing
	}

	c.UpdatedAt = time.Now().UTC()

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := r.updateCase(ctx, tx, c, guard); err != nil {
			return struct{}{}, err
		}
		if d != nil {
			if err := insertDecision(ctx, tx, d); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("case turn committed",
		"case_id", c.ID,
		"status", c.Status,
		"turns_taken", c.Session.TurnsTaken)

	return &TurnResponse{
		Case:      *c,
		Questions: result.Questions,
		Decision:  d,
	}, nil
}

func (r *repo) insertCase(ctx context.Context, c *Case) error {
	err := repository.ExecExpectOne(ctx, r.db, `
		INSERT INTO cases (id, description, status, review_required, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Description, c.Status, c.ReviewRequired, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return repository.MapError(fmt.Errorf("insert case: %w", err), ErrNotFound, ErrDuplicate)
	}
	return nil
}

// updateCase writes a case snapshot. With a guard, the update only lands
// when the stored session still shows the turn count the operation
// started from; losing that race means another turn committed first.
func (r *repo) updateCase(ctx context.Context, tx *sql.Tx, c *Case, guard *int) error {
	session, err := json.Marshal(c.Session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	var classification []byte
	if c.LastClassification != nil {
		if classification, err = json.Marshal(c.LastClassification); err != nil {
			return fmt.Errorf("marshal last_classification: %w", err)
		}
	}

	q := `
		UPDATE cases
		SET status = $2, session = $3, last_classification = $4,
		    review_required = $5, updated_at = $6
		WHERE id = $1`
	args := []any{c.ID, c.Status, session, classification, c.ReviewRequired, c.UpdatedAt}

	if guard != nil {
		args = append(args, *guard)
		q += fmt.Sprintf(" AND (session->>'turns_taken')::int = $%d", len(args))
	}

	if err := repository.ExecExpectOne(ctx, tx, q, args...); err != nil {
		if guard != nil {
			return fmt.Errorf("%w: case %s", ErrConcurrentTurn, c.ID)
		}
		return repository.MapError(fmt.Errorf("update case %s: %w", c.ID, err), ErrNotFound, ErrDuplicate)
	}

	return nil
}

func insertDecision(ctx context.Context, tx *sql.Tx, d *Decision) error {
	classification, err := json.Marshal(d.Classification)
	if err != nil {
		return fmt.Errorf("marshal classification: %w", err)
	}

	attributes, err := json.Marshal(d.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	evaluation, err := json.Marshal(d.Evaluation)
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO decisions (id, case_id, classification, matrix_version, attributes, evaluation, review_required, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.CaseID, classification, d.MatrixVersion, attributes, evaluation, d.ReviewRequired, d.DecidedAt)
	if err != nil {
		return fmt.Errorf("insert decision for case %s: %w", d.CaseID, err)
	}

	return nil
}

func validateFeedback(cmd FeedbackCommand) error {
	switch cmd.Outcome {
	case FeedbackConfirmed:
		if cmd.CorrectedCategory != nil {
			return fmt.Errorf("%w: confirmation must not carry a corrected category", ErrInvalidFeedback)
		}
	case FeedbackCorrected:
		if cmd.CorrectedCategory == nil || !cmd.CorrectedCategory.Valid() {
			return fmt.Errorf("%w: correction requires a known category", ErrInvalidFeedback)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFeedback, cmd.Outcome)
	}

	if cmd.Reviewer == "" {
		return fmt.Errorf("%w: reviewer required", ErrInvalidFeedback)
	}

	return nil
}
