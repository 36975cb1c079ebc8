package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/arbiter-ai/arbiter/internal/interview"
)

const (
	EnvDecisionHighConfidence = "ARBITER_DECISION_HIGH_CONFIDENCE"
	EnvDecisionLowConfidence  = "ARBITER_DECISION_LOW_CONFIDENCE"
	EnvDecisionSoftTurnLimit  = "ARBITER_DECISION_SOFT_TURN_LIMIT"
	EnvDecisionHardTurnLimit  = "ARBITER_DECISION_HARD_TURN_LIMIT"
)

// DecisionConfig holds the clarification dialogue thresholds and limits.
type DecisionConfig struct {
	HighConfidence float64 `toml:"high_confidence"`
	LowConfidence  float64 `toml:"low_confidence"`
	SoftTurnLimit  int     `toml:"soft_turn_limit"`
	HardTurnLimit  int     `toml:"hard_turn_limit"`
}

// Interview maps the config to the dialogue controller's settings.
func (c *DecisionConfig) Interview() interview.Config {
	return interview.Config{
		HighConfidence: c.HighConfidence,
		LowConfidence:  c.LowConfidence,
		SoftTurnLimit:  c.SoftTurnLimit,
		HardTurnLimit:  c.HardTurnLimit,
	}
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *DecisionConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *DecisionConfig) Merge(overlay *DecisionConfig) {
	if overlay.HighConfidence != 0 {
		c.HighConfidence = overlay.HighConfidence
	}
	if overlay.LowConfidence != 0 {
		c.LowConfidence = overlay.LowConfidence
	}
	if overlay.SoftTurnLimit != 0 {
		c.SoftTurnLimit = overlay.SoftTurnLimit
	}
	if overlay.HardTurnLimit != 0 {
		c.HardTurnLimit = overlay.HardTurnLimit
	}
}

func (c *DecisionConfig) loadDefaults() {
	if c.HighConfidence == 0 {
		c.HighConfidence = 0.85
	}
	if c.LowConfidence == 0 {
		c.LowConfidence = 0.6
	}
	if c.SoftTurnLimit == 0 {
		c.SoftTurnLimit = 8
	}
	if c.HardTurnLimit == 0 {
		c.HardTurnLimit = 15
	}
}

func (c *DecisionConfig) loadEnv() {
	if v := os.Getenv(EnvDecisionHighConfidence); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.HighConfidence = f
		}
	}
	if v := os.Getenv(EnvDecisionLowConfidence); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.LowConfidence = f
		}
	}
	if v := os.Getenv(EnvDecisionSoftTurnLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SoftTurnLimit = n
		}
	}
	if v := os.Getenv(EnvDecisionHardTurnLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HardTurnLimit = n
		}
	}
}

func (c *DecisionConfig) validate() error {
	if c.LowConfidence <= 0 || c.LowConfidence >= 1 {
		return fmt.Errorf("low_confidence must be in (0, 1): %v", c.LowConfidence)
	}
	if c.HighConfidence <= 0 || c.HighConfidence >= 1 {
		return fmt.Errorf("high_confidence must be in (0, 1): %v", c.HighConfidence)
	}
	if c.LowConfidence >= c.HighConfidence {
		return fmt.Errorf("low_confidence %v must be below high_confidence %v", c.LowConfidence, c.HighConfidence)
	}
	if c.SoftTurnLimit < 1 {
		return fmt.Errorf("soft_turn_limit must be positive: %d", c.SoftTurnLimit)
	}
	if c.HardTurnLimit <= c.SoftTurnLimit {
		return fmt.Errorf("hard_turn_limit %d must exceed soft_turn_limit %d", c.HardTurnLimit, c.SoftTurnLimit)
	}
	return nil
}
