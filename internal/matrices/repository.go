package matrices

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arbiter-ai/arbiter/internal/decision"
	"github.com/arbiter-ai/arbiter/internal/llm"
	"github.com/arbiter-ai/arbiter/pkg/repository"
	"github.com/arbiter-ai/arbiter/pkg/storage"
)

type repo struct {
	db      *sql.DB
	llm     llm.Collaborator
	archive storage.System
	logger  *slog.Logger
}

// New creates a matrix store repository implementing the System interface.
// archive may be nil; when set, every published version is snapshotted to
// blob storage as a JSON export.
func New(
	db *sql.DB,
	collaborator llm.Collaborator,
	archive storage.System,
	logger *slog.Logger,
) System {
	return &repo{
		db:      db,
		llm:     collaborator,
		archive: archive,
		logger:  logger.With("system", "matrices"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

// Active returns the currently active matrix version. When no version
// exists yet, the baseline matrix is generated through the collaborator
// and persisted as the initial version before being returned.
func (r *repo) Active(ctx context.Context) (*decision.Matrix, error) {
	m, err := r.findActive(ctx)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, ErrNoActive) {
		return nil, err
	}
	return r.bootstrap(ctx)
}

func (r *repo) Version(ctx context.Context, version string) (*decision.Matrix, error) {
	q := fmt.Sprintf(`SELECT %s FROM matrix_versions WHERE version = $1`, matrixColumns)

	m, err := repository.QueryOne(ctx, r.db, q, []any{version}, scanMatrix)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &m, nil
}

func (r *repo) List(ctx context.Context) ([]VersionSummary, error) {
	const q = `
		SELECT version, created_at, created_by, description, active,
		       jsonb_array_length(attributes), jsonb_array_length(rules)
		FROM matrix_versions
		ORDER BY created_at DESC`

	summaries, err := repository.QueryMany(ctx, r.db, q, nil, scanSummary)
	if err != nil {
		return nil, fmt.Errorf("list matrix versions: %w", err)
	}
	return summaries, nil
}

// Save publishes a draft as the next matrix version. The current active
// version is deactivated and the new version activated in one transaction,
// so exactly one version is active at any time. Saving against a stale
// base version still publishes; the conflict is logged and noted on the
// new version's description.
func (r *repo) Save(ctx context.Context, cmd SaveCommand) (*decision.Matrix, error) {
	if err := validateDraft(cmd.Attributes, cmd.Rules); err != nil {
		return nil, err
	}

	createdBy := cmd.CreatedBy
	if createdBy == "" {
		createdBy = decision.CreatedByAdmin
	}

	m, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (decision.Matrix, error) {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT version FROM matrix_versions WHERE active = true FOR UPDATE`,
		).Scan(&current)

		version := decision.InitialVersion
		description := cmd.Description

		switch {
		case err == nil:
			version, err = decision.NextVersion(current, cmd.BumpMajor)
			if err != nil {
				return decision.Matrix{}, err
			}
			if cmd.BaseVersion != nil && *cmd.BaseVersion != current {
				r.logger.Warn("draft based on superseded version",
					"base", *cmd.BaseVersion,
					"active", current,
					"publishing", version)
				description = fmt.Sprintf("%s (drafted against %s, active was %s)",
					description, *cmd.BaseVersion, current)
			}
		case errors.Is(err, sql.ErrNoRows):
			// first save without bootstrap becomes the initial version
		default:
			return decision.Matrix{}, fmt.Errorf("lock active version: %w", err)
		}

		next := decision.Matrix{
			Version:     version,
			CreatedAt:   time.Now().UTC(),
			CreatedBy:   createdBy,
			Description: description,
			Attributes:  cmd.Attributes,
			Rules:       cmd.Rules,
			Active:      true,
		}

		if err := insertMatrix(ctx, tx, next, current); err != nil {
			return decision.Matrix{}, err
		}
		return next, nil
	})

	if err != nil {
		return nil, err
	}

	r.logger.Info("matrix version published",
		"version", m.Version,
		"created_by", m.CreatedBy,
		"rules", len(m.Rules))

	r.snapshot(ctx, &m)
	return &m, nil
}

// Evaluate runs the rule evaluator against the requested matrix version,
// or the active version when none is named.
func (r *repo) Evaluate(ctx context.Context, cmd EvaluateCommand) (*decision.Evaluation, error) {
	if !cmd.Classification.Category.Valid() {
		return nil, fmt.Errorf("%w: %q", decision.ErrUnknownCategory, cmd.Classification.Category)
	}

	var m *decision.Matrix
	var err error

	if cmd.Version != nil {
		m, err = r.Version(ctx, *cmd.Version)
	} else {
		m, err = r.Active(ctx)
	}
	if err != nil {
		return nil, err
	}

	ev := decision.Evaluate(*m, cmd.Attributes, cmd.Classification)
	return &ev, nil
}

// Export renders a matrix version as the interchange JSON document.
func (r *repo) Export(ctx context.Context, version string) ([]byte, error) {
	m, err := r.Version(ctx, version)
	if err != nil {
		return nil, err
	}
	return exportJSON(m)
}

func (r *repo) findActive(ctx context.Context) (*decision.Matrix, error) {
	q := fmt.Sprintf(`SELECT %s FROM matrix_versions WHERE active = true`, matrixColumns)

	m, err := repository.QueryOne(ctx, r.db, q, nil, scanMatrix)
	if err != nil {
		return nil, repository.MapError(err, ErrNoActive, ErrDuplicate)
	}
	return &m, nil
}

// bootstrap generates the baseline matrix through the collaborator and
// persists it as the initial version. A concurrent bootstrap losing the
// insert race falls back to reading the winner's row.
func (r *repo) bootstrap(ctx context.Context) (*decision.Matrix, error) {
	r.logger.Info("no matrix versions found, generating baseline")

	draft, err := r.llm.GenerateDraft(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate baseline matrix: %w", err)
	}

	if err := validateDraft(draft.Attributes, draft.Rules); err != nil {
		return nil, fmt.Errorf("baseline matrix rejected: %w", err)
	}

	m := decision.Matrix{
		Version:     decision.InitialVersion,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   decision.CreatedByAI,
		Description: draft.Description,
		Attributes:  draft.Attributes,
		Rules:       draft.Rules,
		Active:      true,
	}

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, insertMatrix(ctx, tx, m, "")
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return r.findActive(ctx)
		}
		return nil, err
	}

	r.logger.Info("baseline matrix published", "version", m.Version)

	r.snapshot(ctx, &m)
	return &m, nil
}

// snapshot archives a published version to blob storage. Archive failures
// are logged, not returned; the database row is the source of truth.
func (r *repo) snapshot(ctx context.Context, m *decision.Matrix) {
	if r.archive == nil {
		return
	}

	data, err := exportJSON(m)
	if err != nil {
		r.logger.Error("render matrix snapshot", "version", m.Version, "error", err)
		return
	}

	key := fmt.Sprintf("matrices/matrix-%s.json", m.Version)
	if err := r.archive.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		r.logger.Error("archive matrix snapshot", "version", m.Version, "error", err)
		return
	}

	r.logger.Info("matrix snapshot archived", "version", m.Version, "key", key)
}

func insertMatrix(ctx context.Context, tx *sql.Tx, m decision.Matrix, previous string) error {
	if previous != "" {
		err := repository.ExecExpectOne(ctx, tx,
			`UPDATE matrix_versions SET active = false WHERE version = $1`,
			previous)
		if err != nil {
			return fmt.Errorf("deactivate version %s: %w", previous, err)
		}
	}

	attributes, err := json.Marshal(m.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	rules, err := json.Marshal(m.Rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO matrix_versions (version, created_at, created_by, description, attributes, rules, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.Version, m.CreatedAt, m.CreatedBy, m.Description, attributes, rules, m.Active)
	if err != nil {
		return repository.MapError(fmt.Errorf("insert version %s: %w", m.Version, err), ErrNotFound, ErrDuplicate)
	}

	return nil
}

func exportJSON(m *decision.Matrix) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export matrix %s: %w", m.Version, err)
	}
	return data, nil
}

// validateDraft rejects drafts that cannot produce a usable matrix:
// empty content, or rules whose conditions or override targets reference
// nothing the matrix declares.
func validateDraft(attributes []decision.Attribute, rules []decision.Rule) error {
	if len(attributes) == 0 || len(rules) == 0 {
		return ErrEmptyDraft
	}

	declared := make(map[string]bool, len(attributes))
	for _, a := range attributes {
		declared[a.Name] = true
	}

	for _, rule := range rules {
		for _, c := range rule.Conditions {
			if !declared[c.Attribute] {
				return fmt.Errorf("%w: rule %q condition on %q", ErrRuleConflict, rule.Name, c.Attribute)
			}
		}
		if rule.Action.Type == decision.ActionOverride && !rule.Action.TargetCategory.Valid() {
			return fmt.Errorf("%w: rule %q targets %q", decision.ErrUnknownCategory, rule.Name, rule.Action.TargetCategory)
		}
	}

	return nil
}

