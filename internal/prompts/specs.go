package prompts

const classifySpec = `Respond with a JSON object matching this exact structure:

{
  "category": "<manual|assisted|augmented|automated|autonomous|transformative>",
  "confidence": 0.0,
  "rationale": "<explanation>",
  "progression": "<path to the next tier>",
  "future_opportunities": "<what the next tier would unlock>"
}

Field constraints:
- category: Exactly one of the six tier identifiers, lowercase.
- confidence: A number between 0 and 1 reflecting how well the evidence
  supports the chosen tier. Use the full range; 0.95 means the evidence
  is essentially conclusive, 0.5 means a neighboring tier is equally
  plausible.
- rationale: The specific evidence from the description and answers that
  places the case in the chosen tier.
- progression: What would have to change for the case to reach the next
  tier up. For transformative cases, describe how to consolidate.
- future_opportunities: Concrete benefits the next tier would unlock.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Never invent evidence that is not in the provided material
- Confidence must reflect the clarification answers when present`

const questionsSpec = `Respond with a JSON array matching this exact structure:

[
  {"question": "<text>", "purpose": "<what the answer resolves>", "critical": false}
]

Field constraints:
- question: A single direct question the user can answer from their own
  knowledge of the process. No compound questions.
- purpose: Which tier boundary the answer helps resolve and why.
- critical: true only when classification is impossible without the answer.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Respect the requested maximum number of questions
- Never repeat or rephrase a previously asked question`

const extractSpec = `Respond with a JSON object mapping attribute names to values:

{
  "<attribute_name>": <value>
}

Field constraints:
- Include every declared attribute exactly once.
- categorical attributes: one of the allowed values, as a string.
- numeric attributes: a plain JSON number.
- boolean attributes: JSON true or false.
- Use the string "unknown" for any attribute the material does not establish.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Never add attributes that were not declared`

const bootstrapSpec = `Respond with a JSON object matching this exact structure:

{
  "description": "<one-line matrix description>",
  "attributes": [
    {"name": "<snake_case>", "type": "<categorical|numeric|boolean>", "allowed_values": ["<v>"], "weight": 0.5, "description": "<text>"}
  ],
  "rules": [
    {
      "id": "<snake_case>",
      "name": "<short name>",
      "description": "<text>",
      "conditions": [{"attribute": "<name>", "operator": "<==|!=|>|<|>=|<=|in|not_in>", "value": <value>}],
      "action": {"type": "<override|adjust_confidence|flag_review>", "target_category": "<tier>", "delta": 0.0, "rationale": "<text>"},
      "priority": 50,
      "active": true
    }
  ]
}

Field constraints:
- attributes: 3 to 8 declarations; allowed_values only for categorical.
- weight: between 0 and 1.
- rules: 2 to 6 conservative baseline rules; every condition must
  reference a declared attribute.
- action: target_category only for override, delta only for
  adjust_confidence (between -1 and 1).

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing`

const patternsSpec = `Respond with a JSON array of pattern descriptions:

["<pattern>", "<pattern>"]

Field constraints:
- Each entry is one observed pattern in a single sentence, naming the
  tiers involved and the direction of the confusion.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Report only patterns supported by the provided clusters`

const suggestionsSpec = `Respond with a JSON array matching this exact structure:

[
  {
    "type": "<new_rule|modify_rule|adjust_weight|new_attribute>",
    "rationale": "<why this change corrects an observed pattern>",
    "impact_estimate": "<expected effect, referencing cluster frequencies>",
    "payload": {}
  }
]

Field constraints:
- payload for new_rule: a complete rule object in the matrix rule shape.
- payload for modify_rule: {"rule_id": "<id>", "rule": <replacement rule>}.
- payload for adjust_weight: {"attribute": "<name>", "weight": <0..1>}.
- payload for new_attribute: a complete attribute declaration.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- At most one suggestion per observed misclassification pattern`

var specs = map[Stage]string{
	StageClassify:    classifySpec,
	StageQuestions:   questionsSpec,
	StageExtract:     extractSpec,
	StageBootstrap:   bootstrapSpec,
	StagePatterns:    patternsSpec,
	StageSuggestions: suggestionsSpec,
}

// Spec returns the hardcoded output specification for an LLM stage.
// Specifications define the expected response format and behavioral
// constraints and are not overridable.
// Returns ErrInvalidStage if the stage is not recognized.
func Spec(stage Stage) (string, error) {
	text, ok := specs[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}
