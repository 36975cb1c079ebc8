package config

import (
	"fmt"
	"os"
	"time"

	"github.com/arbiter-ai/arbiter/pkg/database"
	"github.com/arbiter-ai/arbiter/pkg/storage"
	"github.com/pelletier/go-toml/v2"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvArbiterEnv             = "ARBITER_ENV"
	EnvArbiterShutdownTimeout = "ARBITER_SHUTDOWN_TIMEOUT"
	EnvArbiterVersion         = "ARBITER_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "ARBITER_DB_HOST",
	Port:            "ARBITER_DB_PORT",
	Name:            "ARBITER_DB_NAME",
	User:            "ARBITER_DB_USER",
	Password:        "ARBITER_DB_PASSWORD",
	SSLMode:         "ARBITER_DB_SSL_MODE",
	MaxOpenConns:    "ARBITER_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "ARBITER_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "ARBITER_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "ARBITER_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "ARBITER_STORAGE_CONTAINER_NAME",
	ConnectionString: "ARBITER_STORAGE_CONNECTION_STRING",
}

// Config is the root configuration for the Arbiter service.
type Config struct {
	Server          ServerConfig         `toml:"server"`
	Database        database.Config      `toml:"database"`
	Storage         storage.Config       `toml:"storage"`
	API             APIConfig            `toml:"api"`
	Agent           gaconfig.AgentConfig `toml:"agent"`
	Decision        DecisionConfig       `toml:"decision"`
	LLM             LLMConfig            `toml:"llm"`
	Learning        LearningConfig       `toml:"learning"`
	ShutdownTimeout string               `toml:"shutdown_timeout"`
	Version         string               `toml:"version"`
}

// StorageEnabled reports whether blob snapshot archiving is configured.
// Storage is optional; without a connection string the service runs with
// archiving disabled.
func (c *Config) StorageEnabled() bool {
	return c.Storage.ConnectionString != "" || os.Getenv(storageEnv.ConnectionString) != ""
}

// Env returns the ARBITER_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvArbiterEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Agent.Merge(&overlay.Agent)
	c.Decision.Merge(&overlay.Decision)
	c.LLM.Merge(&overlay.LLM)
	c.Learning.Merge(&overlay.Learning)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if c.StorageEnabled() {
		if err := c.Storage.Finalize(storageEnv); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := FinalizeAgent(&c.Agent); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.Decision.Finalize(); err != nil {
		return fmt.Errorf("decision: %w", err)
	}
	if err := c.LLM.Finalize(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Learning.Finalize(); err != nil {
		return fmt.Errorf("learning: %w", err)
	}
	return nil
}
func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvArbiterShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvArbiterVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvArbiterEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
