// Package config provides configuration loading and validation for the
// autodialer. Values come from an optional JSON or YAML file and are then
// overridden by environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/autodialer/internal/telephony"
)

// ConfigurationError reports a missing or malformed setting
type ConfigurationError = telephony.ConfigurationError

// Environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds every setting the CLI and server need
type Config struct {
	Environment string `json:"environment,omitempty" yaml:"environment,omitempty" validate:"oneof=development production test"`
	Port        int    `json:"port,omitempty" yaml:"port,omitempty" validate:"min=1,max=65535"`
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty" validate:"required"`

	GeminiAPIKey string `json:"gemini_api_key,omitempty" yaml:"gemini_api_key,omitempty"`
	GeminiModel  string `json:"gemini_model,omitempty" yaml:"gemini_model,omitempty"`

	TwilioAccountSID  string `json:"twilio_account_sid,omitempty" yaml:"twilio_account_sid,omitempty"`
	TwilioAuthToken   string `json:"twilio_auth_token,omitempty" yaml:"twilio_auth_token,omitempty"`
	TwilioPhoneNumber string `json:"twilio_phone_number,omitempty" yaml:"twilio_phone_number,omitempty"`

	TestMode       bool     `json:"test_mode" yaml:"test_mode"`
	DefaultMessage string   `json:"default_message,omitempty" yaml:"default_message,omitempty" validate:"max=4000"`
	CallDelay      Duration `json:"call_delay,omitempty" yaml:"call_delay,omitempty" validate:"min=0"`
	MaxRetries     int      `json:"max_retries,omitempty" yaml:"max_retries,omitempty" validate:"min=0,max=10"`
	RetryBaseDelay Duration `json:"retry_base_delay,omitempty" yaml:"retry_base_delay,omitempty" validate:"min=0"`
	RetryMaxDelay  Duration `json:"retry_max_delay,omitempty" yaml:"retry_max_delay,omitempty" validate:"min=0"`

	ProviderTimeout Duration `json:"provider_timeout,omitempty" yaml:"provider_timeout,omitempty" validate:"min=0"`
	AITimeout       Duration `json:"ai_timeout,omitempty" yaml:"ai_timeout,omitempty" validate:"min=0"`
	MaxNumbers      int      `json:"max_numbers,omitempty" yaml:"max_numbers,omitempty" validate:"min=1"`

	RateLimitEnabled   bool     `json:"rate_limit_enabled" yaml:"rate_limit_enabled"`
	RateLimitPerMinute int      `json:"rate_limit_per_minute,omitempty" yaml:"rate_limit_per_minute,omitempty" validate:"min=1"`
	CORSOrigins        []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		Environment:        EnvDevelopment,
		Port:               8080,
		DatabaseURL:        "sqlite://autodialer.db",
		GeminiModel:        "gemini-1.5-flash",
		TestMode:           true,
		DefaultMessage:     "Hello, this is an automated call. Thank you",
		CallDelay:          Duration(2 * time.Second),
		MaxRetries:         2,
		RetryBaseDelay:     Duration(time.Second),
		RetryMaxDelay:      Duration(60 * time.Second),
		ProviderTimeout:    Duration(30 * time.Second),
		AITimeout:          Duration(15 * time.Second),
		MaxNumbers:         1000,
		RateLimitPerMinute: 60,
		CORSOrigins:        []string{"http://localhost:3000", "http://127.0.0.1:3000"},
	}
}

// Load builds the configuration: defaults, then the file at path (if any),
// then environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		fileCfg, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg.MergeWithDefaults(cfg)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}
	return &cfg, nil
}

// MergeWithDefaults returns a new Config with zero fields filled from defaults.
// Bool fields cannot distinguish unset from false and always keep the file value.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	setString := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	setString(&result.Environment, defaults.Environment)
	setString(&result.DatabaseURL, defaults.DatabaseURL)
	setString(&result.GeminiAPIKey, defaults.GeminiAPIKey)
	setString(&result.GeminiModel, defaults.GeminiModel)
	setString(&result.TwilioAccountSID, defaults.TwilioAccountSID)
	setString(&result.TwilioAuthToken, defaults.TwilioAuthToken)
	setString(&result.TwilioPhoneNumber, defaults.TwilioPhoneNumber)
	setString(&result.DefaultMessage, defaults.DefaultMessage)

	setInt := func(dst *int, def int) {
		if *dst == 0 {
			*dst = def
		}
	}
	setInt(&result.Port, defaults.Port)
	setInt(&result.MaxRetries, defaults.MaxRetries)
	setInt(&result.MaxNumbers, defaults.MaxNumbers)
	setInt(&result.RateLimitPerMinute, defaults.RateLimitPerMinute)

	setDuration := func(dst *Duration, def Duration) {
		if *dst == 0 {
			*dst = def
		}
	}
	setDuration(&result.CallDelay, defaults.CallDelay)
	setDuration(&result.RetryBaseDelay, defaults.RetryBaseDelay)
	setDuration(&result.RetryMaxDelay, defaults.RetryMaxDelay)
	setDuration(&result.ProviderTimeout, defaults.ProviderTimeout)
	setDuration(&result.AITimeout, defaults.AITimeout)

	if len(result.CORSOrigins) == 0 {
		result.CORSOrigins = defaults.CORSOrigins
	}
	return result
}

// LookupFunc reads one environment variable; os.LookupEnv satisfies it
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides c with every environment variable that is set
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("ENVIRONMENT", &c.Environment)
	c.Environment = strings.ToLower(c.Environment)
	str("DATABASE_URL", &c.DatabaseURL)
	str("GEMINI_API_KEY", &c.GeminiAPIKey)
	str("GEMINI_MODEL", &c.GeminiModel)
	str("TWILIO_ACCOUNT_SID", &c.TwilioAccountSID)
	str("TWILIO_AUTH_TOKEN", &c.TwilioAuthToken)
	str("TWILIO_PHONE_NUMBER", &c.TwilioPhoneNumber)
	str("DEFAULT_MESSAGE", &c.DefaultMessage)

	if v, ok := lookup("CORS_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		c.CORSOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.CORSOrigins = append(c.CORSOrigins, origin)
			}
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &c.Port},
		{"MAX_RETRIES", &c.MaxRetries},
		{"MAX_NUMBERS", &c.MaxNumbers},
		{"RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute},
	}
	for _, f := range ints {
		v, ok := lookup(f.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &ConfigurationError{Key: f.key, Message: "must be an integer"}
		}
		*f.dst = n
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"TEST_MODE", &c.TestMode},
		{"RATE_LIMIT_ENABLED", &c.RateLimitEnabled},
	}
	for _, f := range bools {
		v, ok := lookup(f.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return &ConfigurationError{Key: f.key, Message: "must be true or false"}
		}
		*f.dst = b
	}

	durations := []struct {
		key string
		dst *Duration
	}{
		{"CALL_DELAY", &c.CallDelay},
		{"RETRY_BASE_DELAY", &c.RetryBaseDelay},
		{"RETRY_MAX_DELAY", &c.RetryMaxDelay},
		{"PROVIDER_TIMEOUT", &c.ProviderTimeout},
		{"AI_TIMEOUT", &c.AITimeout},
	}
	for _, f := range durations {
		v, ok := lookup(f.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		d, err := ParseDuration(v)
		if err != nil {
			return &ConfigurationError{Key: f.key, Message: "must be a duration such as 2s or a number of seconds"}
		}
		*f.dst = d
	}
	return nil
}

// Validate checks field ranges and cross-field rules. Missing telephony or
// language-model credentials are allowed; they only disable those features.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.Environment == EnvProduction && c.TestMode {
		return &ConfigurationError{Key: "TEST_MODE", Message: "must be false in production"}
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		return &ConfigurationError{Key: "RETRY_MAX_DELAY", Message: "must not be below RETRY_BASE_DELAY"}
	}
	if c.TelephonyConfigured() {
		if err := c.Twilio().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TelephonyConfigured reports whether any Twilio credential was supplied
func (c *Config) TelephonyConfigured() bool {
	return c.TwilioAccountSID != "" || c.TwilioAuthToken != "" || c.TwilioPhoneNumber != ""
}

// AIConfigured reports whether a Gemini API key was supplied
func (c *Config) AIConfigured() bool {
	return c.GeminiAPIKey != ""
}

// Twilio returns the provider settings
func (c *Config) Twilio() telephony.TwilioConfig {
	return telephony.TwilioConfig{
		AccountSID:     c.TwilioAccountSID,
		AuthToken:      c.TwilioAuthToken,
		FromNumber:     c.TwilioPhoneNumber,
		RequestTimeout: c.ProviderTimeout.Std(),
	}
}

// Summary describes the configuration without secrets
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"environment":       c.Environment,
		"test_mode":         c.TestMode,
		"max_numbers":       c.MaxNumbers,
		"database_type":     databaseType(c.DatabaseURL),
		"twilio_configured": c.TelephonyConfigured(),
		"gemini_configured": c.AIConfigured(),
		"rate_limiting":     c.RateLimitEnabled,
		"calls_per_minute":  c.RateLimitPerMinute,
	}
}

func databaseType(url string) string {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres"
	default:
		return "sqlite"
	}
}
