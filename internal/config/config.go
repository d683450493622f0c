// Package config loads the optional mapchat YAML file and applies
// environment overrides.
//
// PRECEDENCE:
//
//	environment variable  >  YAML file  >  built-in default
//
// Fields that need a default are stored raw and read through accessors, so
// a zero value in the file always means "use the default".
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sakif/mapchat/internal/executor/artifact"
)

// Default values.
const (
	DefaultPath            = "config/config.yaml"
	DefaultPort            = 8080
	DefaultDBPath          = "data/mapchat.db"
	DefaultPromptsPath     = "config/prompts.yaml"
	DefaultModel           = "gemini-2.5-flash"
	DefaultMaxOutputTokens = 8192
	DefaultMaxCodeLength   = 64 * 1024
	DefaultTokenTTL        = 24 * time.Hour
)

// Config holds the parsed configuration. All fields are optional.
type Config struct {
	RawPort     int    `yaml:"port"`
	RawDBPath   string `yaml:"db_path"`
	PromptsPath string `yaml:"prompts_path"`
	LogLevel    string `yaml:"log_level"` // debug, info, warn, error

	Model     ModelConfig     `yaml:"model"`
	Execution ExecutionConfig `yaml:"execution"`
	Auth      AuthConfig      `yaml:"auth"`
	Mirror    MirrorConfig    `yaml:"mirror"`
}

// ModelConfig configures the language model client.
type ModelConfig struct {
	APIKey             string `yaml:"api_key"`
	RawName            string `yaml:"name"`
	RawMaxOutputTokens int    `yaml:"max_output_tokens"`
}

// ExecutionConfig configures the interpreter and the artifact contract.
type ExecutionConfig struct {
	OutputDir        string   `yaml:"output_dir"`
	ArtifactPattern  string   `yaml:"artifact_pattern"`
	PreImports       []string `yaml:"pre_imports"`
	RawMaxCodeLength int      `yaml:"max_code_length"` // bytes
}

// AuthConfig configures API tokens. Auth is disabled when JWTSecret is empty.
type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	PasswordHash string `yaml:"password_hash"` // bcrypt, see `mapchat hash-password`
	RawTokenTTL  string `yaml:"token_ttl"`
}

// MirrorConfig configures the optional S3-compatible artifact mirror.
type MirrorConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	Prefix    string `yaml:"prefix"`
}

// Port returns the HTTP port or the default.
func (c *Config) Port() int {
	if c.RawPort > 0 {
		return c.RawPort
	}
	return DefaultPort
}

// DBPath returns the SQLite path or the default.
func (c *Config) DBPath() string {
	if c.RawDBPath != "" {
		return c.RawDBPath
	}
	return DefaultDBPath
}

// Prompts returns the prompts file path or the default.
func (c *Config) Prompts() string {
	if c.PromptsPath != "" {
		return c.PromptsPath
	}
	return DefaultPromptsPath
}

// Name returns the model name or the default.
func (m ModelConfig) Name() string {
	if m.RawName != "" {
		return m.RawName
	}
	return DefaultModel
}

// MaxOutputTokens returns the reply token limit or the default.
func (m ModelConfig) MaxOutputTokens() int {
	if m.RawMaxOutputTokens > 0 {
		return m.RawMaxOutputTokens
	}
	return DefaultMaxOutputTokens
}

// Artifacts returns the artifact contract with defaults filled in.
func (e ExecutionConfig) Artifacts() artifact.Config {
	cfg := artifact.DefaultConfig()
	if e.OutputDir != "" {
		cfg.Dir = e.OutputDir
	}
	if e.ArtifactPattern != "" {
		cfg.Pattern = e.ArtifactPattern
	}
	return cfg
}

// MaxCodeLength returns the submission size limit or the default.
func (e ExecutionConfig) MaxCodeLength() int {
	if e.RawMaxCodeLength > 0 {
		return e.RawMaxCodeLength
	}
	return DefaultMaxCodeLength
}

// Enabled reports whether API tokens are required.
func (a AuthConfig) Enabled() bool { return a.JWTSecret != "" }

// TokenTTL returns the token lifetime or the default.
func (a AuthConfig) TokenTTL() time.Duration {
	if a.RawTokenTTL != "" {
		d, err := time.ParseDuration(a.RawTokenTTL)
		if err == nil && d > 0 {
			return d
		}
	}
	return DefaultTokenTTL
}

// Enabled reports whether artifacts should be mirrored.
func (m MirrorConfig) Enabled() bool { return m.Endpoint != "" && m.Bucket != "" }

// Load reads the YAML file at path and then applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() error {
	var err error

	if c.RawPort, err = envInt("PORT", c.RawPort); err != nil {
		return err
	}
	c.RawDBPath = envString("DB_PATH", c.RawDBPath)
	c.PromptsPath = envString("MAPCHAT_PROMPTS", c.PromptsPath)
	c.LogLevel = envString("MAPCHAT_LOG_LEVEL", c.LogLevel)

	c.Model.APIKey = envString("GEMINI_API_KEY", c.Model.APIKey)
	c.Model.RawName = envString("MAPCHAT_MODEL", c.Model.RawName)
	if c.Model.RawMaxOutputTokens, err = envInt("MAPCHAT_MAX_OUTPUT_TOKENS", c.Model.RawMaxOutputTokens); err != nil {
		return err
	}

	c.Execution.OutputDir = envString("MAPCHAT_OUTPUT_DIR", c.Execution.OutputDir)
	c.Execution.ArtifactPattern = envString("MAPCHAT_ARTIFACT_PATTERN", c.Execution.ArtifactPattern)

	c.Auth.JWTSecret = envString("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.PasswordHash = envString("MAPCHAT_PASSWORD_HASH", c.Auth.PasswordHash)
	if _, ok := os.LookupEnv("MAPCHAT_TOKEN_TTL"); ok {
		d, err := envDuration("MAPCHAT_TOKEN_TTL", 0)
		if err != nil {
			return err
		}
		c.Auth.RawTokenTTL = d.String()
	}

	c.Mirror.Endpoint = envString("MAPCHAT_MIRROR_ENDPOINT", c.Mirror.Endpoint)
	c.Mirror.Bucket = envString("MAPCHAT_MIRROR_BUCKET", c.Mirror.Bucket)
	c.Mirror.Region = envString("MAPCHAT_MIRROR_REGION", c.Mirror.Region)
	c.Mirror.AccessKey = envString("MAPCHAT_MIRROR_ACCESS_KEY", c.Mirror.AccessKey)
	c.Mirror.SecretKey = envString("MAPCHAT_MIRROR_SECRET_KEY", c.Mirror.SecretKey)
	c.Mirror.Prefix = envString("MAPCHAT_MIRROR_PREFIX", c.Mirror.Prefix)
	if c.Mirror.Secure, err = envBool("MAPCHAT_MIRROR_SECURE", c.Mirror.Secure); err != nil {
		return err
	}

	return nil
}

// Validate checks values that have no safe fallback.
func (c *Config) Validate() error {
	if err := c.Execution.Artifacts().Validate(); err != nil {
		return err
	}
	if c.Auth.Enabled() && len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("config: jwt_secret must be at least 16 characters")
	}
	if c.Mirror.Endpoint != "" && c.Mirror.Bucket == "" {
		return fmt.Errorf("config: mirror.bucket is required when mirror.endpoint is set")
	}
	return nil
}
