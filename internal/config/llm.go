package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/arbiter-ai/arbiter/internal/llm"
)

const (
	EnvLLMTimeout    = "ARBITER_LLM_TIMEOUT"
	EnvLLMMaxRetries = "ARBITER_LLM_MAX_RETRIES"
)

// LLMConfig holds per-call collaborator settings.
type LLMConfig struct {
	Timeout    string `toml:"timeout"`
	MaxRetries int    `toml:"max_retries"`
}

// Options maps the config to the collaborator client's options.
func (c *LLMConfig) Options() llm.Options {
	d, _ := time.ParseDuration(c.Timeout)
	return llm.Options{
		Timeout:    d,
		MaxRetries: uint64(c.MaxRetries),
	}
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *LLMConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *LLMConfig) Merge(overlay *LLMConfig) {
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.MaxRetries != 0 {
		c.MaxRetries = overlay.MaxRetries
	}
}

func (c *LLMConfig) loadDefaults() {
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

func (c *LLMConfig) loadEnv() {
	if v := os.Getenv(EnvLLMTimeout); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv(EnvLLMMaxRetries); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
}

func (c *LLMConfig) validate() error {
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative: %d", c.MaxRetries)
	}
	return nil
}
