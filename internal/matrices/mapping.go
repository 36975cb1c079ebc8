package matrices

import (
	"encoding/json"
	"fmt"

	"github.com/arbiter-ai/arbiter/internal/decision"
	"github.com/arbiter-ai/arbiter/pkg/repository"
)

const matrixColumns = `version, created_at, created_by, description, attributes, rules, active`

func scanMatrix(s repository.Scanner) (decision.Matrix, error) {
	var m decision.Matrix
	var attributesRaw, rulesRaw []byte

	err := s.Scan(
		&m.Version,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.Description,
		&attributesRaw,
		&rulesRaw,
		&m.Active,
	)

	if err != nil {
		return m, err
	}

	if len(attributesRaw) > 0 {
		if err := json.Unmarshal(attributesRaw, &m.Attributes); err != nil {
			return m, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}

	if len(rulesRaw) > 0 {
		if err := json.Unmarshal(rulesRaw, &m.Rules); err != nil {
			return m, fmt.Errorf("unmarshal rules: %w", err)
		}
	}

	if m.Attributes == nil {
		m.Attributes = []decision.Attribute{}
	}

	if m.Rules == nil {
		m.Rules = []decision.Rule{}
	}

	return m, nil
}

func scanSummary(s repository.Scanner) (VersionSummary, error) {
	var v VersionSummary

	err := s.Scan(
		&v.Version,
		&v.CreatedAt,
		&v.CreatedBy,
		&v.Description,
		&v.Active,
		&v.AttributeCount,
		&v.RuleCount,
	)

	return v, err
}
