package cases

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/arbiter-ai/arbiter/pkg/query"
	"github.com/arbiter-ai/arbiter/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "cases", "c").
	Project("id", "ID").
	Project("description", "Description").
	Project("status", "Status").
	Project("session", "Session").
	Project("last_classification", "LastClassification").
	Project("review_required", "ReviewRequired").
	Project("feedback", "Feedback").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for case queries.
// Nil fields are ignored. All fields use exact matching.
type Filters struct {
	Status         *Status `json:"status,omitempty"`
	ReviewRequired *bool   `json:"review_required,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("ReviewRequired", f.ReviewRequired)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		status := Status(s)
		f.Status = &status
	}

	if r := values.Get("review_required"); r == "true" || r == "false" {
		review := r == "true"
		f.ReviewRequired = &review
	}

	return f
}

func scanCase(s repository.Scanner) (Case, error) {
	var c Case
	var sessionRaw, classificationRaw, feedbackRaw []byte

	err := s.Scan(
		&c.ID,
		&c.Description,
		&c.Status,
		&sessionRaw,
		&classificationRaw,
		&c.ReviewRequired,
		&feedbackRaw,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	if err != nil {
		return c, err
	}

	if len(sessionRaw) > 0 {
		if err := json.Unmarshal(sessionRaw, &c.Session); err != nil {
			return c, fmt.Errorf("unmarshal session: %w", err)
		}
	}

	if len(classificationRaw) > 0 {
		if err := json.Unmarshal(classificationRaw, &c.LastClassification); err != nil {
			return c, fmt.Errorf("unmarshal last_classification: %w", err)
		}
	}

	if len(feedbackRaw) > 0 {
		if err := json.Unmarshal(feedbackRaw, &c.Feedback); err != nil {
			return c, fmt.Errorf("unmarshal feedback: %w", err)
		}
	}

	return c, nil
}

const decisionColumns = `id, case_id, classification, matrix_version, attributes, evaluation, review_required, decided_at`

func scanDecision(s repository.Scanner) (Decision, error) {
	var d Decision
	var classificationRaw, attributesRaw, evaluationRaw []byte

	err := s.Scan(
		&d.ID,
		&d.CaseID,
		&classificationRaw,
		&d.MatrixVersion,
		&attributesRaw,
		&evaluationRaw,
		&d.ReviewRequired,
		&d.DecidedAt,
	)

	if err != nil {
		return d, err
	}

	if err := json.Unmarshal(classificationRaw, &d.Classification); err != nil {
		return d, fmt.Errorf("unmarshal classification: %w", err)
	}

	if len(attributesRaw) > 0 {
		if err := json.Unmarshal(attributesRaw, &d.Attributes); err != nil {
			return d, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}

	if len(evaluationRaw) > 0 {
		if err := json.Unmarshal(evaluationRaw, &d.Evaluation); err != nil {
			return d, fmt.Errorf("unmarshal evaluation: %w", err)
		}
	}

	return d, nil
}

func scanFeedbackRecord(s repository.Scanner) (FeedbackRecord, error) {
	var r FeedbackRecord
	var originalRaw, attributesRaw, feedbackRaw []byte

	err := s.Scan(
		&r.CaseID,
		&r.Description,
		&r.FinalCategory,
		&r.Confidence,
		&originalRaw,
		&r.MatrixVersion,
		&attributesRaw,
		&feedbackRaw,
	)

	if err != nil {
		return r, err
	}

	if len(originalRaw) > 0 {
		if err := json.Unmarshal(originalRaw, &r.Original); err != nil {
			return r, fmt.Errorf("unmarshal original classification: %w", err)
		}
	}

	if len(attributesRaw) > 0 {
		if err := json.Unmarshal(attributesRaw, &r.Attributes); err != nil {
			return r, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}

	var f Feedback
	if err := json.Unmarshal(feedbackRaw, &f); err != nil {
		return r, fmt.Errorf("unmarshal feedback: %w", err)
	}

	r.Outcome = f.Outcome
	r.CorrectedCategory = f.CorrectedCategory
	r.SubmittedAt = f.SubmittedAt

	return r, nil
}
