package decision_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arbiter-ai/arbiter/internal/decision"
)

func testMatrix(rules ...decision.Rule) decision.Matrix {
	return decision.Matrix{
		Version:   "1.0",
		CreatedBy: decision.CreatedByAdmin,
		Attributes: []decision.Attribute{
			{Name: "data_sensitivity", Type: decision.AttributeCategorical, AllowedValues: []string{"public", "internal", "restricted"}, Weight: 0.8},
			{Name: "monthly_volume", Type: decision.AttributeNumeric, Weight: 0.5},
			{Name: "human_in_loop", Type: decision.AttributeBoolean, Weight: 0.3},
		},
		Rules:  rules,
		Active: true,
	}
}

func incoming(category decision.Category, confidence float64) decision.Classification {
	return decision.Classification{
		Category:   category,
		Confidence: confidence,
		Rationale:  "baseline",
	}
}

func TestEvaluateOverride(t *testing.T) {
	m := testMatrix(decision.Rule{
		ID:   "r1",
		Name: "restricted data stays assisted",
		Conditions: []decision.Condition{
			{Attribute: "data_sensitivity", Operator: decision.OpEquals, Value: "restricted"},
		},
		Action:   decision.RuleAction{Type: decision.ActionOverride, TargetCategory: decision.CategoryAssisted, Rationale: "restricted data"},
		Priority: 50,
		Active:   true,
	})

	values := map[string]any{"data_sensitivity": "restricted"}
	result := decision.Evaluate(m, values, incoming(decision.CategoryAutomated, 0.9))

	if result.Final.Category != decision.CategoryAssisted {
		t.Errorf("category: got %s, want %s", result.Final.Category, decision.CategoryAssisted)
	}
	if result.Final.Confidence != 0.9 {
		t.Errorf("confidence changed on override: got %v", result.Final.Confidence)
	}
	if !result.Overridden {
		t.Error("overridden flag not set")
	}
	if len(result.TriggeredRules) != 1 {
		t.Fatalf("triggered: got %d, want 1", len(result.TriggeredRules))
	}
}

func TestEvaluateHighestPriorityAppliedLast(t *testing.T) {
	low := decision.Rule{
		ID:   "low",
		Name: "low priority override",
		Conditions: []decision.Condition{
			{Attribute: "data_sensitivity", Operator: decision.OpEquals, Value: "restricted"},
		},
		Action:   decision.RuleAction{Type: decision.ActionOverride, TargetCategory: decision.CategoryManual, Rationale: "low"},
		Priority: 10,
		Active:   true,
	}
	high := decision.Rule{
		ID:   "high",
		Name: "high priority override",
		Conditions: []decision.Condition{
			{Attribute: "data_sensitivity", Operator: decision.OpEquals, Value: "restricted"},
		},
		Action:   decision.RuleAction{Type: decision.ActionOverride, TargetCategory: decision.CategoryAutonomous, Rationale: "high"},
		Priority: 90,
		Active:   true,
	}

	m := testMatrix(low, high)
	values := map[string]any{"data_sensitivity": "restricted"}
	result := decision.Evaluate(m, values, incoming(decision.CategoryAugmented, 0.7))

	if result.Final.Category != decision.CategoryAutonomous {
		t.Errorf("category: got %s, want %s (priority 90 wins)", result.Final.Category, decision.CategoryAutonomous)
	}
	if len(result.TriggeredRules) != 2 {
		t.Fatalf("triggered: got %d, want 2", len(result.TriggeredRules))
	}
	if result.TriggeredRules[0].RuleID != "low" || result.TriggeredRules[1].RuleID != "high" {
		t.Errorf("application order: got [%s, %s], want [low, high]",
			result.TriggeredRules[0].RuleID, result.TriggeredRules[1].RuleID)
	}
}

func TestEvaluateConfidenceDeltasAccumulate(t *testing.T) {
	tests := []struct {
		name   string
		deltas []float64
		start  float64
		want   float64
	}{
		{name: "sum within range", deltas: []float64{0.1, -0.05}, start: 0.5, want: 0.55},
		{name: "clamped high", deltas: []float64{0.4, 0.4}, start: 0.5, want: 1.0},
		{name: "clamped low", deltas: []float64{-0.6, -0.3}, start: 0.4, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rules []decision.Rule
			for i, d := range tt.deltas {
				rules = append(rules, decision.Rule{
					ID:   string(rune('a' + i)),
					Name: "adjust",
					Conditions: []decision.Condition{
						{Attribute: "monthly_volume", Operator: decision.OpGreaterThan, Value: 100},
					},
					Action:   decision.RuleAction{Type: decision.ActionAdjustConfidence, Delta: d, Rationale: "volume"},
					Priority: 10 * (i + 1),
					Active:   true,
				})
			}

			m := testMatrix(rules...)
			values := map[string]any{"monthly_volume": 500}
			result := decision.Evaluate(m, values, incoming(decision.CategoryAutomated, tt.start))

			if diff := result.Final.Confidence - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("confidence: got %v, want %v", result.Final.Confidence, tt.want)
			}
			if result.Final.Category != decision.CategoryAutomated {
				t.Errorf("category changed by adjust_confidence: got %s", result.Final.Category)
			}
		})
	}
}

func TestEvaluateFlagReview(t *testing.T) {
	m := testMatrix(decision.Rule{
		ID:   "r1",
		Name: "restricted requires review",
		Conditions: []decision.Condition{
			{Attribute: "data_sensitivity", Operator: decision.OpEquals, Value: "restricted"},
		},
		Action:   decision.RuleAction{Type: decision.ActionFlagReview, Rationale: "sensitive data"},
		Priority: 100,
		Active:   true,
	})

	values := map[string]any{"data_sensitivity": "restricted"}
	result := decision.Evaluate(m, values, incoming(decision.CategoryAutomated, 0.9))

	if !result.ReviewRequired {
		t.Error("review flag not set")
	}
	if result.Overridden {
		t.Error("flag_review must not mark overridden")
	}
	if result.Final.Category != decision.CategoryAutomated || result.Final.Confidence != 0.9 {
		t.Errorf("classification changed by flag_review: %+v", result.Final)
	}
	if len(result.TriggeredRules) != 1 {
		t.Errorf("triggered: got %d, want 1", len(result.TriggeredRules))
	}
}

func TestEvaluateOperators(t *testing.T) {
	tests := []struct {
		name  string
		cond  decision.Condition
		value any
		want  bool
	}{
		{"numeric greater", decision.Condition{Attribute: "monthly_volume", Operator: decision.OpGreaterThan, Value: 100}, 200, true},
		{"numeric greater false", decision.Condition{Attribute: "monthly_volume", Operator: decision.OpGreaterThan, Value: 100}, 50, false},
		{"numeric string coercion", decision.Condition{Attribute: "monthly_volume", Operator: decision.OpGreaterEqual, Value: "100"}, "150", true},
		{"numeric less equal", decision.Condition{Attribute: "monthly_volume", Operator: decision.OpLessEqual, Value: 100}, 100, true},
		{"numeric not equals", decision.Condition{Attribute: "monthly_volume", Operator: decision.OpNotEquals, Value: 5}, 6, true},
		{"numeric in", decision.Condition{Attribute: "monthly_volume", Operator: decision.OpIn, Value: []any{1, 2, 3}}, 2, true},
		{"categorical in", decision.Condition{Attribute: "data_sensitivity", Operator: decision.OpIn, Value: []any{"internal", "restricted"}}, "internal", true},
		{"categorical not_in", decision.Condition{Attribute: "data_sensitivity", Operator: decision.OpNotIn, Value: []any{"public"}}, "restricted", true},
		{"categorical not_in false", decision.Condition{Attribute: "data_sensitivity", Operator: decision.OpNotIn, Value: []any{"public"}}, "public", false},
		{"boolean equals", decision.Condition{Attribute: "human_in_loop", Operator: decision.OpEquals, Value: true}, true, true},
		{"boolean string value", decision.Condition{Attribute: "human_in_loop", Operator: decision.OpEquals, Value: "true"}, true, true},
		{"non-coercible numeric is false", decision.Condition{Attribute: "monthly_volume", Operator: decision.OpGreaterThan, Value: 10}, "lots", false},
		{"ordering on categorical is false", decision.Condition{Attribute: "data_sensitivity", Operator: decision.OpGreaterThan, Value: "public"}, "restricted", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testMatrix(decision.Rule{
				ID:         "r1",
				Name:       "probe",
				Conditions: []decision.Condition{tt.cond},
				Action:     decision.RuleAction{Type: decision.ActionFlagReview, Rationale: "probe"},
				Priority:   1,
				Active:     true,
			})

			values := map[string]any{tt.cond.Attribute: tt.value}
			result := decision.Evaluate(m, values, incoming(decision.CategoryAssisted, 0.5))

			matched := len(result.TriggeredRules) == 1
			if matched != tt.want {
				t.Errorf("matched: got %v, want %v", matched, tt.want)
			}
		})
	}
}

func TestEvaluateUndeclaredAttribute(t *testing.T) {
	m := testMatrix(decision.Rule{
		ID:   "r1",
		Name: "references missing attribute",
		Conditions: []decision.Condition{
			{Attribute: "nonexistent", Operator: decision.OpEquals, Value: "x"},
		},
		Action:   decision.RuleAction{Type: decision.ActionOverride, TargetCategory: decision.CategoryManual, Rationale: "bad rule"},
		Priority: 100,
		Active:   true,
	})

	result := decision.Evaluate(m, map[string]any{"nonexistent": "x"}, incoming(decision.CategoryAutomated, 0.8))

	if len(result.TriggeredRules) != 0 {
		t.Error("rule with undeclared attribute must not match")
	}
	if len(result.Warnings) == 0 {
		t.Error("expected warning for undeclared attribute")
	}
	if result.Final.Category != decision.CategoryAutomated {
		t.Errorf("classification changed: got %s", result.Final.Category)
	}
}

func TestEvaluateMissingValueIsUnknown(t *testing.T) {
	m := testMatrix(decision.Rule{
		ID:   "r1",
		Name: "unknown sensitivity requires review",
		Conditions: []decision.Condition{
			{Attribute: "data_sensitivity", Operator: decision.OpEquals, Value: decision.UnknownValue},
		},
		Action:   decision.RuleAction{Type: decision.ActionFlagReview, Rationale: "extraction failed"},
		Priority: 5,
		Active:   true,
	})

	result := decision.Evaluate(m, map[string]any{}, incoming(decision.CategoryAssisted, 0.7))

	if len(result.TriggeredRules) != 1 {
		t.Fatal("missing value should compare as the unknown sentinel")
	}
	if !result.ReviewRequired {
		t.Error("review flag not set")
	}
}

func TestEvaluateSkipsInactiveRules(t *testing.T) {
	m := testMatrix(decision.Rule{
		ID:   "r1",
		Name: "inactive",
		Conditions: []decision.Condition{
			{Attribute: "data_sensitivity", Operator: decision.OpEquals, Value: "restricted"},
		},
		Action:   decision.RuleAction{Type: decision.ActionFlagReview, Rationale: "inactive"},
		Priority: 100,
		Active:   false,
	})

	result := decision.Evaluate(m, map[string]any{"data_sensitivity": "restricted"}, incoming(decision.CategoryAssisted, 0.7))

	if len(result.TriggeredRules) != 0 {
		t.Error("inactive rule fired")
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	m := testMatrix(
		decision.Rule{
			ID:   "a",
			Name: "volume boost",
			Conditions: []decision.Condition{
				{Attribute: "monthly_volume", Operator: decision.OpGreaterThan, Value: 1000},
			},
			Action:   decision.RuleAction{Type: decision.ActionAdjustConfidence, Delta: 0.1, Rationale: "high volume"},
			Priority: 20,
			Active:   true,
		},
		decision.Rule{
			ID:   "b",
			Name: "restricted review",
			Conditions: []decision.Condition{
				{Attribute: "data_sensitivity", Operator: decision.OpIn, Value: []any{"restricted", "internal"}},
			},
			Action:   decision.RuleAction{Type: decision.ActionFlagReview, Rationale: "sensitive"},
			Priority: 20,
			Active:   true,
		},
	)

	values := map[string]any{
		"data_sensitivity": "restricted",
		"monthly_volume":   2000,
		"human_in_loop":    false,
	}
	in := incoming(decision.CategoryAutomated, 0.75)

	first := decision.Evaluate(m, values, in)
	second := decision.Evaluate(m, values, in)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("evaluations differ (-first +second):\n%s", diff)
	}

	firstJSON, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal first: %v", err)
	}
	secondJSON, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal second: %v", err)
	}
	if string(firstJSON) != string(secondJSON) {
		t.Error("serialized evaluations are not byte-identical")
	}
}

func TestEvaluatePriorityTieFirstDeclaredWins(t *testing.T) {
	first := decision.Rule{
		ID:   "first",
		Name: "declared first",
		Conditions: []decision.Condition{
			{Attribute: "data_sensitivity", Operator: decision.OpEquals, Value: "restricted"},
		},
		Action:   decision.RuleAction{Type: decision.ActionOverride, TargetCategory: decision.CategoryManual, Rationale: "first"},
		Priority: 50,
		Active:   true,
	}
	second := first
	second.ID = "second"
	second.Name = "declared second"
	second.Action.TargetCategory = decision.CategoryAutonomous
	second.Action.Rationale = "second"

	m := testMatrix(first, second)
	result := decision.Evaluate(m, map[string]any{"data_sensitivity": "restricted"}, incoming(decision.CategoryAssisted, 0.6))

	if result.Final.Category != decision.CategoryManual {
		t.Errorf("tie-break: got %s, want %s (first declared wins)", result.Final.Category, decision.CategoryManual)
	}
}
