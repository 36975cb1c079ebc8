package decision

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strconv"
)

// Evaluate applies the active rules of a matrix version to the extracted
// attribute values and an incoming classification, returning the full audit
// trace. Evaluation is deterministic: identical inputs produce identical
// output, including triggered rule order.
//
// Active rules are matched in priority-descending order (declaration order
// breaks ties) and their actions are applied in the reverse of that order,
// so the highest-priority action is applied last and wins any conflict.
// Override actions replace the category and preserve confidence;
// adjust_confidence deltas accumulate with the running confidence clamped
// to [0,1]; flag_review marks the evaluation for manual review. All matched
// rules are recorded in application order; evaluation never short-circuits.
//
// A condition referencing an attribute not declared in the matrix, or a
// value that cannot be coerced to the attribute's declared type, evaluates
// to false and contributes a warning rather than an error, so one bad rule
// can never block classification.
func Evaluate(m Matrix, values map[string]any, in Classification) Evaluation {
	declared := make(map[string]Attribute, len(m.Attributes))
	for _, a := range m.Attributes {
		declared[a.Name] = a
	}

	var active []Rule
	for _, r := range m.Rules {
		if r.Active {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})

	var warnings []string
	var matched []Rule
	for _, r := range active {
		if matchRule(r, declared, values, &warnings) {
			matched = append(matched, r)
		}
	}

	final := in
	overridden := false
	review := false
	triggered := make([]TriggeredRule, 0, len(matched))

	// Apply in reverse match order: lowest priority first, highest last.
	for i := len(matched) - 1; i >= 0; i-- {
		r := matched[i]

		switch r.Action.Type {
		case ActionOverride:
			final.Category = r.Action.TargetCategory
			overridden = true
		case ActionAdjustConfidence:
			final.Confidence = clamp(final.Confidence + r.Action.Delta)
		case ActionFlagReview:
			review = true
		}

		triggered = append(triggered, TriggeredRule{
			RuleID:   r.ID,
			RuleName: r.Name,
			Priority: r.Priority,
			Action:   r.Action,
		})
	}

	snapshot := make(map[string]any, len(values))
	maps.Copy(snapshot, values)

	return Evaluation{
		MatrixVersion:  m.Version,
		Attributes:     snapshot,
		TriggeredRules: triggered,
		Original:       in,
		Final:          final,
		Overridden:     overridden,
		ReviewRequired: review,
		Warnings:       warnings,
	}
}

func matchRule(r Rule, declared map[string]Attribute, values map[string]any, warnings *[]string) bool {
	matched := true
	for _, c := range r.Conditions {
		if !matchCondition(r, c, declared, values, warnings) {
			matched = false
		}
	}
	return matched && len(r.Conditions) > 0
}

func matchCondition(
	r Rule,
	c Condition,
	declared map[string]Attribute,
	values map[string]any,
	warnings *[]string,
) bool {
	attr, ok := declared[c.Attribute]
	if !ok {
		warn(warnings, "rule %q: condition references undeclared attribute %q", r.Name, c.Attribute)
		return false
	}

	value, ok := values[c.Attribute]
	if !ok {
		value = UnknownValue
	}

	switch attr.Type {
	case AttributeNumeric:
		return matchNumeric(r, c, value, warnings)
	default:
		return matchTextual(r, c, value, warnings)
	}
}

func matchNumeric(r Rule, c Condition, value any, warnings *[]string) bool {
	v, ok := toFloat(value)
	if !ok {
		warn(warnings, "rule %q: attribute %q value %v is not numeric", r.Name, c.Attribute, value)
		return false
	}

	switch c.Operator {
	case OpIn, OpNotIn:
		items, ok := toList(c.Value)
		if !ok {
			warn(warnings, "rule %q: %s comparison value is not a list", r.Name, c.Operator)
			return false
		}
		found := false
		for _, item := range items {
			if cv, ok := toFloat(item); ok && v == cv {
				found = true
			}
		}
		if c.Operator == OpIn {
			return found
		}
		return !found
	}

	cv, ok := toFloat(c.Value)
	if !ok {
		warn(warnings, "rule %q: comparison value %v is not numeric", r.Name, c.Value)
		return false
	}

	switch c.Operator {
	case OpEquals:
		return v == cv
	case OpNotEquals:
		return v != cv
	case OpGreaterThan:
		return v > cv
	case OpLessThan:
		return v < cv
	case OpGreaterEqual:
		return v >= cv
	case OpLessEqual:
		return v <= cv
	default:
		warn(warnings, "rule %q: unsupported operator %q", r.Name, c.Operator)
		return false
	}
}

func matchTextual(r Rule, c Condition, value any, warnings *[]string) bool {
	v := toString(value)

	switch c.Operator {
	case OpEquals:
		return v == toString(c.Value)
	case OpNotEquals:
		return v != toString(c.Value)
	case OpIn, OpNotIn:
		items, ok := toList(c.Value)
		if !ok {
			warn(warnings, "rule %q: %s comparison value is not a list", r.Name, c.Operator)
			return false
		}
		found := false
		for _, item := range items {
			if v == toString(item) {
				found = true
			}
		}
		if c.Operator == OpIn {
			return found
		}
		return !found
	default:
		warn(warnings, "rule %q: operator %q is not applicable to attribute %q", r.Name, c.Operator, c.Attribute)
		return false
	}
}

func warn(warnings *[]string, format string, args ...any) {
	*warnings = append(*warnings, fmt.Sprintf(format, args...))
}

func clamp(v float64) float64 {
	return max(0, min(1, v))
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		items := make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
		return items, true
	default:
		return nil, false
	}
}
