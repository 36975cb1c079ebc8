package learning

import (
	"encoding/json"
	"fmt"

	"github.com/arbiter-ai/arbiter/pkg/repository"
)

const analysisColumns = `id, trigger, range_start, range_end, misclassified_only, total_cases, overall_agreement, category_agreement, clusters, patterns, created_at`

func scanAnalysis(s repository.Scanner) (Analysis, error) {
	var a Analysis
	var agreementRaw, clustersRaw, patternsRaw []byte

	err := s.Scan(
		&a.ID,
		&a.Trigger,
		&a.RangeStart,
		&a.RangeEnd,
		&a.MisclassifiedOnly,
		&a.TotalCases,
		&a.OverallAgreement,
		&agreementRaw,
		&clustersRaw,
		&patternsRaw,
		&a.CreatedAt,
	)

	if err != nil {
		return a, err
	}

	if len(agreementRaw) > 0 {
		if err := json.Unmarshal(agreementRaw, &a.CategoryAgreement); err != nil {
			return a, fmt.Errorf("unmarshal category_agreement: %w", err)
		}
	}

	if len(clustersRaw) > 0 {
		if err := json.Unmarshal(clustersRaw, &a.Clusters); err != nil {
			return a, fmt.Errorf("unmarshal clusters: %w", err)
		}
	}

	if len(patternsRaw) > 0 {
		if err := json.Unmarshal(patternsRaw, &a.Patterns); err != nil {
			return a, fmt.Errorf("unmarshal patterns: %w", err)
		}
	}

	return a, nil
}

const suggestionColumns = `id, analysis_id, type, rationale, impact_estimate, payload, status, created_at, reviewed_by, reviewed_at, applied_version`

func scanSuggestion(s repository.Scanner) (Suggestion, error) {
	var sg Suggestion
	var payloadRaw []byte

	err := s.Scan(
		&sg.ID,
		&sg.AnalysisID,
		&sg.Type,
		&sg.Rationale,
		&sg.ImpactEstimate,
		&payloadRaw,
		&sg.Status,
		&sg.CreatedAt,
		&sg.ReviewedBy,
		&sg.ReviewedAt,
		&sg.AppliedVersion,
	)

	if err != nil {
		return sg, err
	}

	sg.Payload = json.RawMessage(payloadRaw)
	return sg, nil
}
