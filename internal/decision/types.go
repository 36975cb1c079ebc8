// Package decision implements the decision matrix data contracts and the
// deterministic rule evaluator. It is a pure leaf package: evaluation never
// performs I/O, never calls external services, and always terminates.
package decision

import "time"

// Classification is the result of a single classification attempt.
// Instances are immutable; every attempt produces a new Classification.
type Classification struct {
	Category            Category  `json:"category"`
	Confidence          float64   `json:"confidence"`
	Rationale           string    `json:"rationale"`
	Progression         string    `json:"progression"`
	FutureOpportunities string    `json:"future_opportunities"`
	ModelName           string    `json:"model_name"`
	ProviderName        string    `json:"provider_name"`
	ClassifiedAt        time.Time `json:"classified_at"`
}

// AttributeType constrains how an attribute's extracted value is compared.
type AttributeType string

// Attribute value types.
const (
	AttributeCategorical AttributeType = "categorical"
	AttributeNumeric     AttributeType = "numeric"
	AttributeBoolean     AttributeType = "boolean"
)

// Attribute declares a named, typed case characteristic within a matrix
// version. AllowedValues applies to categorical attributes only.
type Attribute struct {
	Name          string        `json:"name"`
	Type          AttributeType `json:"type"`
	AllowedValues []string      `json:"allowed_values,omitempty"`
	Weight        float64       `json:"weight"`
	Description   string        `json:"description"`
}

// Operator is the comparison applied by a condition.
type Operator string

// Condition operators.
const (
	OpEquals       Operator = "=="
	OpNotEquals    Operator = "!="
	OpGreaterThan  Operator = ">"
	OpLessThan     Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpIn           Operator = "in"
	OpNotIn        Operator = "not_in"
)

// Condition is a pure predicate over one extracted attribute value.
type Condition struct {
	Attribute string   `json:"attribute"`
	Operator  Operator `json:"operator"`
	Value     any      `json:"value"`
}

// ActionType discriminates what a matched rule does to the classification.
type ActionType string

// Rule action types.
const (
	ActionOverride         ActionType = "override"
	ActionAdjustConfidence ActionType = "adjust_confidence"
	ActionFlagReview       ActionType = "flag_review"
)

// RuleAction is the effect applied when all of a rule's conditions match.
// TargetCategory applies to override actions; Delta to adjust_confidence.
// Rationale is always carried for audit.
type RuleAction struct {
	Type           ActionType `json:"type"`
	TargetCategory Category   `json:"target_category,omitempty"`
	Delta          float64    `json:"delta,omitempty"`
	Rationale      string     `json:"rationale"`
}

// Rule combines conditions (implicit AND), an action, and a priority.
// Higher priorities evaluate first; declaration order breaks ties.
type Rule struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Conditions  []Condition `json:"conditions"`
	Action      RuleAction  `json:"action"`
	Priority    int         `json:"priority"`
	Active      bool        `json:"active"`
}

// Matrix is one immutable published version of the decision matrix.
// The JSON field names form the persisted matrix file shape and must
// not change.
type Matrix struct {
	Version     string      `json:"version"`
	CreatedAt   time.Time   `json:"createdAt"`
	CreatedBy   string      `json:"createdBy"`
	Description string      `json:"description"`
	Attributes  []Attribute `json:"attributes"`
	Rules       []Rule      `json:"rules"`
	Active      bool        `json:"active"`
}

// Matrix creator values.
const (
	CreatedByAI    = "ai"
	CreatedByAdmin = "admin"
)

// TriggeredRule records one rule that matched during evaluation and the
// action it contributed, in application order.
type TriggeredRule struct {
	RuleID   string     `json:"rule_id"`
	RuleName string     `json:"rule_name"`
	Priority int        `json:"priority"`
	Action   RuleAction `json:"action"`
}

// Evaluation is the full audit trace of one evaluator run. It is a derived
// record: produced once, never mutated.
type Evaluation struct {
	MatrixVersion  string          `json:"matrix_version"`
	Attributes     map[string]any  `json:"attributes"`
	TriggeredRules []TriggeredRule `json:"triggered_rules"`
	Original       Classification  `json:"original"`
	Final          Classification  `json:"final"`
	Overridden     bool            `json:"overridden"`
	ReviewRequired bool            `json:"review_required"`
	Warnings       []string        `json:"warnings,omitempty"`
}

// UnknownValue is the sentinel recorded when attribute extraction could not
// produce a value. Conditions compare against it like any other value.
const UnknownValue = "unknown"
