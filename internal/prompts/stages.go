package prompts

import (
	"encoding/json"
	"slices"
)

// Stage represents an LLM call site that a prompt override targets.
type Stage string

// Valid LLM stages.
const (
	StageClassify    Stage = "classify"
	StageQuestions   Stage = "questions"
	StageExtract     Stage = "extract"
	StageBootstrap   Stage = "bootstrap"
	StagePatterns    Stage = "patterns"
	StageSuggestions Stage = "suggestions"
)

var stages = []Stage{
	StageClassify,
	StageQuestions,
	StageExtract,
	StageBootstrap,
	StagePatterns,
	StageSuggestions,
}

// Stages returns the list of valid LLM stages.
func Stages() []Stage {
	return stages
}

// UnmarshalJSON validates that the decoded string is a known stage value.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v := Stage(raw)
	if !slices.Contains(stages, v) {
		return ErrInvalidStage
	}
	*s = v
	return nil
}

// ParseStage validates a string as a known LLM stage.
// Returns ErrInvalidStage if the value is not recognized.
func ParseStage(s string) (Stage, error) {
	v := Stage(s)
	if !slices.Contains(stages, v) {
		return "", ErrInvalidStage
	}
	return v, nil
}
