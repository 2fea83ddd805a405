// Package config loads and validates tap configuration.
//
// Configuration is a flat JSON document with the following recognized
// keys:
//
//	start_date      ISO-8601 timestamp, required; initial bookmark for
//	                incremental streams
//	api_key         Sailthru API key, required
//	api_secret      Sailthru shared secret, required
//	user_agent      descriptive User-Agent header value, optional
//	request_timeout total per-request timeout in seconds, optional;
//	                absent, empty, or zero resolves to 300
package config

import (
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/singer-go/tap-sailthru/pkg/errors"
)

// DefaultRequestTimeout is applied when request_timeout is absent,
// empty, or resolves to zero.
const DefaultRequestTimeout = 300 * time.Second

// Config holds the tap configuration
type Config struct {
	APIKey         string `mapstructure:"api_key"`
	APISecret      string `mapstructure:"api_secret"`
	StartDate      string `mapstructure:"start_date"`
	UserAgent      string `mapstructure:"user_agent"`
	RequestTimeout string `mapstructure:"request_timeout"`
}

// Load reads a JSON config file and validates required keys
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}

	// request_timeout may arrive as a number or a string; normalize to
	// string here and coerce in Timeout().
	v.Set("request_timeout", cast.ToString(v.Get("request_timeout")))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that all required keys are present
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return errors.New(errors.ErrorTypeConfig, "api_key is required")
	}
	if c.APISecret == "" {
		return errors.New(errors.ErrorTypeConfig, "api_secret is required")
	}
	if c.StartDate == "" {
		return errors.New(errors.ErrorTypeConfig, "start_date is required")
	}
	if _, err := time.Parse(time.RFC3339, c.StartDate); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "start_date must be an ISO-8601 timestamp")
	}
	return nil
}

// StartTime returns the configured start date as a UTC time
func (c *Config) StartTime() time.Time {
	t, _ := time.Parse(time.RFC3339, c.StartDate)
	return t.UTC()
}

// Timeout resolves the configured request timeout. Absent, empty, and
// zero values all fall back to DefaultRequestTimeout; any positive
// numeric or numeric-string value is used verbatim as seconds.
func (c *Config) Timeout() time.Duration {
	return ResolveRequestTimeout(c.RequestTimeout)
}

// ResolveRequestTimeout applies the request_timeout defaulting rule to
// a raw configured value.
func ResolveRequestTimeout(raw interface{}) time.Duration {
	seconds, err := cast.ToFloat64E(raw)
	if err != nil || seconds == 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(seconds * float64(time.Second))
}
