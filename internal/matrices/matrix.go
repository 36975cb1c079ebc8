// Package matrices implements the decision matrix store for Arbiter.
// It provides versioned, append-only persistence of matrix versions,
// the lazy AI bootstrap of the first version, and the evaluation endpoint
// over the pure rule evaluator.
package matrices

import (
	"time"

	"github.com/arbiter-ai/arbiter/internal/decision"
)

// VersionSummary is one entry in the matrix version history listing.
type VersionSummary struct {
	Version        string    `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	CreatedBy      string    `json:"created_by"`
	Description    string    `json:"description"`
	Active         bool      `json:"active"`
	AttributeCount int       `json:"attribute_count"`
	RuleCount      int       `json:"rule_count"`
}

// SaveCommand carries a draft to publish as the next matrix version.
// BaseVersion optionally records which version the draft was authored
// against; saving against a stale base still publishes (last writer wins)
// but the mismatch is logged and noted on the new version.
type SaveCommand struct {
	Description string               `json:"description"`
	Attributes  []decision.Attribute `json:"attributes"`
	Rules       []decision.Rule      `json:"rules"`
	CreatedBy   string               `json:"created_by"`
	BaseVersion *string              `json:"base_version,omitempty"`
	BumpMajor   bool                 `json:"bump_major"`
}

// EvaluateCommand carries inputs for a standalone matrix evaluation.
// Version selects a specific matrix version; nil resolves the active one.
type EvaluateCommand struct {
	Version        *string                 `json:"version,omitempty"`
	Attributes     map[string]any          `json:"attributes"`
	Classification decision.Classification `json:"classification"`
}
