package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/arbiter-ai/arbiter/internal/learning"
)

const (
	EnvLearningAgreementThreshold = "ARBITER_LEARNING_AGREEMENT_THRESHOLD"
	EnvLearningSampleFraction     = "ARBITER_LEARNING_SAMPLE_FRACTION"
	EnvLearningValidateWorkers    = "ARBITER_LEARNING_VALIDATE_WORKERS"
)

// LearningConfig holds the learning engine's trigger and sampling settings.
type LearningConfig struct {
	AgreementThreshold float64 `toml:"agreement_threshold"`
	SampleFraction     float64 `toml:"sample_fraction"`
	ValidateWorkers    int     `toml:"validate_workers"`
}

// Engine maps the config to the learning engine's settings.
func (c *LearningConfig) Engine() learning.Config {
	return learning.Config{
		AgreementThreshold: c.AgreementThreshold,
		SampleFraction:     c.SampleFraction,
		ValidateWorkers:    c.ValidateWorkers,
	}
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *LearningConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *LearningConfig) Merge(overlay *LearningConfig) {
	if overlay.AgreementThreshold != 0 {
		c.AgreementThreshold = overlay.AgreementThreshold
	}
	if overlay.SampleFraction != 0 {
		c.SampleFraction = overlay.SampleFraction
	}
	if overlay.ValidateWorkers != 0 {
		c.ValidateWorkers = overlay.ValidateWorkers
	}
}

func (c *LearningConfig) loadDefaults() {
	if c.AgreementThreshold == 0 {
		c.AgreementThreshold = 0.8
	}
	if c.SampleFraction == 0 {
		c.SampleFraction = 0.1
	}
	if c.ValidateWorkers == 0 {
		c.ValidateWorkers = 4
	}
}

func (c *LearningConfig) loadEnv() {
	if v := os.Getenv(EnvLearningAgreementThreshold); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.AgreementThreshold = f
		}
	}
	if v := os.Getenv(EnvLearningSampleFraction); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.SampleFraction = f
		}
	}
	if v := os.Getenv(EnvLearningValidateWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ValidateWorkers = n
		}
	}
}

func (c *LearningConfig) validate() error {
	if c.AgreementThreshold <= 0 || c.AgreementThreshold > 1 {
		return fmt.Errorf("agreement_threshold must be in (0, 1]: %v", c.AgreementThreshold)
	}
	if c.SampleFraction <= 0 || c.SampleFraction > 1 {
		return fmt.Errorf("sample_fraction must be in (0, 1]: %v", c.SampleFraction)
	}
	if c.ValidateWorkers < 1 {
		return fmt.Errorf("validate_workers must be positive: %d", c.ValidateWorkers)
	}
	return nil
}
