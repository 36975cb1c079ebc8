package learning

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/arbiter-ai/arbiter/internal/cases"
	"github.com/arbiter-ai/arbiter/internal/decision"
	"github.com/arbiter-ai/arbiter/internal/llm"
	"github.com/arbiter-ai/arbiter/internal/matrices"
)

// Agreement computes the overall and per-category agreement rates from
// reviewer feedback. With no feedback at all the system is treated as
// fully agreed: every rate is 1.0, so a cold start never trips the
// automatic trigger.
func Agreement(records []cases.FeedbackRecord) (overall float64, perCategory map[string]float64) {
	perCategory = make(map[string]float64, len(decision.Categories()))

	type tally struct{ total, confirmed int }
	counts := make(map[decision.Category]*tally)

	confirmed := 0
	for _, r := range records {
		t := counts[r.FinalCategory]
		if t == nil {
			t = &tally{}
			counts[r.FinalCategory] = t
		}
		t.total++
		if !r.Misclassified() {
			t.confirmed++
			confirmed++
		}
	}

	for _, c := range decision.Categories() {
		if t := counts[c]; t != nil && t.total > 0 {
			perCategory[string(c)] = float64(t.confirmed) / float64(t.total)
		} else {
			perCategory[string(c)] = 1.0
		}
	}

	if len(records) == 0 {
		return 1.0, perCategory
	}
	return float64(confirmed) / float64(len(records)), perCategory
}

// maxClusterExamples caps how many case ids a cluster carries as evidence.
const maxClusterExamples = 5

// BuildClusters groups corrected cases by their misclassification pair.
// Clusters are ordered by descending count, then pair name, so repeated
// analyses over the same feedback produce identical output.
func BuildClusters(records []cases.FeedbackRecord) []llm.Cluster {
	grouped := make(map[string]*llm.Cluster)

	for _, r := range records {
		if !r.Misclassified() || r.CorrectedCategory == nil {
			continue
		}

		key := string(r.FinalCategory) + "→" + string(*r.CorrectedCategory)
		c := grouped[key]
		if c == nil {
			c = &llm.Cluster{From: r.FinalCategory, To: *r.CorrectedCategory}
			grouped[key] = c
		}
		c.Count++
		if len(c.ExampleCases) < maxClusterExamples {
			c.ExampleCases = append(c.ExampleCases, r.CaseID)
		}
	}

	clusters := make([]llm.Cluster, 0, len(grouped))
	for _, c := range grouped {
		clusters = append(clusters, *c)
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Count != clusters[j].Count {
			return clusters[i].Count > clusters[j].Count
		}
		if clusters[i].From != clusters[j].From {
			return clusters[i].From < clusters[j].From
		}
		return clusters[i].To < clusters[j].To
	})

	return clusters
}

// transitions is the complete suggestion workflow. Absent pairs are
// violations; rejected and applied have no outgoing edges.
var transitions = map[SuggestionStatus][]SuggestionStatus{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusApplied},
}

func canTransition(from, to SuggestionStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type modifyRulePayload struct {
	RuleID string        `json:"rule_id"`
	Rule   decision.Rule `json:"rule"`
}

type adjustWeightPayload struct {
	Attribute string  `json:"attribute"`
	Weight    float64 `json:"weight"`
}

// mergeSuggestion folds an approved suggestion's payload into a draft of
// the given matrix. The result is a save command for the next version;
// the input matrix is never mutated.
func mergeSuggestion(m decision.Matrix, s *Suggestion) (matrices.SaveCommand, error) {
	cmd := matrices.SaveCommand{
		Description: fmt.Sprintf("applied suggestion %s (%s)", s.ID, s.Type),
		Attributes:  append([]decision.Attribute(nil), m.Attributes...),
		Rules:       append([]decision.Rule(nil), m.Rules...),
		CreatedBy:   decision.CreatedByAI,
		BaseVersion: &m.Version,
	}

	switch s.Type {
	case ChangeNewRule:
		var rule decision.Rule
		if err := json.Unmarshal(s.Payload, &rule); err != nil {
			return cmd, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		rule.Active = true
		cmd.Rules = append(cmd.Rules, rule)

	case ChangeModifyRule:
		var p modifyRulePayload
		if err := json.Unmarshal(s.Payload, &p); err != nil {
			return cmd, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		replaced := false
		for i := range cmd.Rules {
			if cmd.Rules[i].ID == p.RuleID {
				p.Rule.ID = p.RuleID
				cmd.Rules[i] = p.Rule
				replaced = true
				break
			}
		}
		if !replaced {
			return cmd, fmt.Errorf("%w: rule %q not in matrix %s", ErrInvalidPayload, p.RuleID, m.Version)
		}

	case ChangeAdjustWeight:
		var p adjustWeightPayload
		if err := json.Unmarshal(s.Payload, &p); err != nil {
			return cmd, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		adjusted := false
		for i := range cmd.Attributes {
			if cmd.Attributes[i].Name == p.Attribute {
				cmd.Attributes[i].Weight = p.Weight
				adjusted = true
				break
			}
		}
		if !adjusted {
			return cmd, fmt.Errorf("%w: attribute %q not in matrix %s", ErrInvalidPayload, p.Attribute, m.Version)
		}

	case ChangeNewAttribute:
		var attr decision.Attribute
		if err := json.Unmarshal(s.Payload, &attr); err != nil {
			return cmd, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		if attr.Name == "" {
			return cmd, fmt.Errorf("%w: attribute requires a name", ErrInvalidPayload)
		}
		for _, existing := range cmd.Attributes {
			if existing.Name == attr.Name {
				return cmd, fmt.Errorf("%w: attribute %q already declared", ErrInvalidPayload, attr.Name)
			}
		}
		cmd.Attributes = append(cmd.Attributes, attr)

	default:
		return cmd, fmt.Errorf("%w: unknown change type %q", ErrInvalidPayload, s.Type)
	}

	return cmd, nil
}

// validationOutcome classifies one re-evaluated case: the new final
// category against what the reviewer said was right and what the system
// previously decided.
type validationOutcome int

const (
	outcomeImproved validationOutcome = iota
	outcomeUnchanged
	outcomeWorsened
)

func compareOutcome(previous, corrected, reevaluated decision.Category) validationOutcome {
	switch reevaluated {
	case corrected:
		return outcomeImproved
	case previous:
		return outcomeUnchanged
	default:
		return outcomeWorsened
	}
}
