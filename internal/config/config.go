package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when the config file leaves a field empty.
const (
	DefaultHTTPAddr      = ":8080"
	DefaultMetricsAddr   = ":9090"
	DefaultDatabasePath  = "jam.db"
	DefaultSyncInterval  = Duration(6 * time.Hour)
	DefaultUserDelay     = Duration(2 * time.Second)
	DefaultLookbackDays  = 90
	DefaultMaxMessages   = 100
	DefaultBodyLimit     = 2000
	DefaultMinConfidence = 0.6
	DefaultOracleModel   = "claude-haiku-4-5-20251001"
)

// Duration is a time.Duration that unmarshals from YAML strings like "6h"
// or "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration for the jam service.
type Config struct {
	Server struct {
		// Addr is the listen address of the API server.
		Addr string `yaml:"addr"`
		// BaseURL is the public base URL used in the OAuth redirect.
		BaseURL string `yaml:"base_url"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Google struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RedirectURL  string `yaml:"redirect_url"`
	} `yaml:"google"`

	Oracle struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
		// MaxTokens bounds the classifier's output size.
		MaxTokens int `yaml:"max_tokens"`
		// RequestsPerMinute smooths oracle call volume; <=0 disables pacing.
		RequestsPerMinute int `yaml:"requests_per_minute"`
	} `yaml:"oracle"`

	Sync struct {
		// Interval is the cadence of the background sync loop.
		Interval Duration `yaml:"interval"`
		// UserDelay is the politeness gap between users within one cadence pass.
		UserDelay Duration `yaml:"user_delay"`
		// LookbackDays bounds the first fetch when no watermark exists.
		LookbackDays int `yaml:"lookback_days"`
		// MaxMessages caps the number of message ids fetched per sync.
		MaxMessages int `yaml:"max_messages"`
		// BodyLimit truncates decoded email bodies before they reach the oracle.
		BodyLimit int `yaml:"body_limit"`
		// MinConfidence discards extracted facts below this confidence.
		MinConfidence float64 `yaml:"min_confidence"`
	} `yaml:"sync"`
}

// envVarPattern matches ${VAR_NAME} placeholders in the raw config file.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads a YAML config file, expands ${VAR} environment references,
// applies defaults and validates the result. An empty path yields a config
// built purely from defaults and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		content := expandEnvVars(string(b))
		if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} references with their environment
// values. Unset variables are left verbatim so validation can point at them.
func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := match[2 : len(match)-1]
		if value := os.Getenv(name); value != "" {
			return value
		}
		return match
	})
}

// applyEnv fills credential fields from the conventional environment
// variables when the config file did not provide them.
func (c *Config) applyEnv() {
	if c.Google.ClientID == "" {
		c.Google.ClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if c.Google.ClientSecret == "" {
		c.Google.ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if c.Google.RedirectURL == "" {
		c.Google.RedirectURL = os.Getenv("GOOGLE_REDIRECT_URI")
	}
	if c.Oracle.APIKey == "" {
		c.Oracle.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.Database.Path == "" {
		c.Database.Path = os.Getenv("JAM_DB_PATH")
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultHTTPAddr
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Oracle.Model == "" {
		c.Oracle.Model = DefaultOracleModel
	}
	if c.Oracle.MaxTokens <= 0 {
		c.Oracle.MaxTokens = 500
	}
	if c.Sync.Interval <= 0 {
		c.Sync.Interval = DefaultSyncInterval
	}
	if c.Sync.UserDelay <= 0 {
		c.Sync.UserDelay = DefaultUserDelay
	}
	if c.Sync.LookbackDays <= 0 {
		c.Sync.LookbackDays = DefaultLookbackDays
	}
	if c.Sync.MaxMessages <= 0 {
		c.Sync.MaxMessages = DefaultMaxMessages
	}
	if c.Sync.BodyLimit <= 0 {
		c.Sync.BodyLimit = DefaultBodyLimit
	}
	if c.Sync.MinConfidence <= 0 {
		c.Sync.MinConfidence = DefaultMinConfidence
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Sync.MinConfidence < 0 || c.Sync.MinConfidence > 1 {
		return fmt.Errorf("sync.min_confidence must be within [0,1], got %v", c.Sync.MinConfidence)
	}
	if c.Sync.MaxMessages > 500 {
		return fmt.Errorf("sync.max_messages must be at most 500, got %d", c.Sync.MaxMessages)
	}
	return nil
}
