package runbeam

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	// DefaultBaseURL is the hosted collector endpoint.
	DefaultBaseURL = "https://api.runbeam.dev"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the maximum number of retry attempts for
	// retryable failures.
	DefaultMaxRetries = 3

	// MaxMaxRetries is the largest retry count validate accepts.
	MaxMaxRetries = 100

	// DisableRetries is the MaxRetries value that turns retrying off:
	// every request gets exactly one attempt.
	DisableRetries = -1

	// DefaultRetryDelay is the initial delay between retry attempts;
	// subsequent attempts back off exponentially.
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxIdleConns is the connection pool size of the default
	// HTTP client.
	DefaultMaxIdleConns = 10

	// DefaultUserAgent identifies the SDK to the collector.
	DefaultUserAgent = "runbeam-go/" + Version
)

// Version is the SDK version reported in the User-Agent header.
const Version = "0.1.0"

// Config holds client configuration. Zero values are filled in by
// applyDefaults; construct through New, NewWithConfig, or NewFromEnv.
type Config struct {
	// APIKey authenticates requests to the collector. Required.
	APIKey string

	// BaseURL is the collector endpoint. Defaults to DefaultBaseURL.
	BaseURL string

	// SessionName is the default session runs are grouped under when
	// the run itself does not name one.
	SessionName string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts. Zero means
	// DefaultMaxRetries; DisableRetries turns retrying off.
	MaxRetries int

	// RetryDelay is the initial backoff delay between attempts.
	RetryDelay time.Duration

	// Compression enables zstd compression of request bodies.
	Compression bool

	// Debug enables request/response logging at debug level.
	Debug bool

	// UserAgent overrides the User-Agent header.
	UserAgent string

	// HTTPClient overrides the underlying HTTP client.
	HTTPClient *http.Client

	// Logger receives SDK log output. Defaults to a stderr logger.
	Logger StructuredLogger

	// Metrics receives optional SDK telemetry. Nil disables it.
	Metrics Metrics
}

// ConfigOption mutates a Config during construction.
type ConfigOption func(*Config)

// WithBaseURL sets the collector endpoint.
func WithBaseURL(u string) ConfigOption {
	return func(c *Config) { c.BaseURL = u }
}

// WithSessionName sets the default session name for runs created
// through this client.
func WithSessionName(name string) ConfigOption {
	return func(c *Config) { c.SessionName = name }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) { c.Timeout = d }
}

// WithMaxRetries sets the maximum number of retry attempts. Any
// non-positive value disables retrying entirely.
func WithMaxRetries(n int) ConfigOption {
	return func(c *Config) {
		if n <= 0 {
			n = DisableRetries
		}
		c.MaxRetries = n
	}
}

// WithRetryDelay sets the initial backoff delay between attempts.
func WithRetryDelay(d time.Duration) ConfigOption {
	return func(c *Config) { c.RetryDelay = d }
}

// WithCompression enables zstd compression of request bodies.
func WithCompression(enabled bool) ConfigOption {
	return func(c *Config) { c.Compression = enabled }
}

// WithDebug enables debug logging of requests and responses.
func WithDebug(enabled bool) ConfigOption {
	return func(c *Config) { c.Debug = enabled }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ConfigOption {
	return func(c *Config) { c.UserAgent = ua }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ConfigOption {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithStructuredLogger sets the SDK logger.
func WithStructuredLogger(l StructuredLogger) ConfigOption {
	return func(c *Config) { c.Logger = l }
}

// WithLogger sets a printf-style logger, wrapped as a StructuredLogger.
func WithLogger(l Logger) ConfigOption {
	return func(c *Config) { c.Logger = WrapPrintfLogger(l) }
}

// WithMetrics sets the telemetry sink.
func WithMetrics(m Metrics) ConfigOption {
	return func(c *Config) { c.Metrics = m }
}

// applyDefaults fills in zero values.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.SessionName == "" {
		c.SessionName = DefaultSessionName
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{
			Timeout: c.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        DefaultMaxIdleConns,
				MaxIdleConnsPerHost: DefaultMaxIdleConns,
			},
		}
	}
	if c.Logger == nil {
		c.Logger = defaultStderrLogger
	}
}

// validate checks required fields and value ranges.
func (c *Config) validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base URL %q is not a valid URL", ErrInvalidConfig, c.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: base URL scheme must be http or https, got %q", ErrInvalidConfig, u.Scheme)
	}
	if c.MaxRetries < DisableRetries {
		return fmt.Errorf("%w: max retries must be %d (disabled) or a non-negative count, got %d", ErrInvalidConfig, DisableRetries, c.MaxRetries)
	}
	if c.MaxRetries > MaxMaxRetries {
		return fmt.Errorf("%w: max retries must not exceed %d, got %d", ErrInvalidConfig, MaxMaxRetries, c.MaxRetries)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// fileConfig is the on-disk shape of a config file. Durations are
// written as strings ("30s", "500ms") and parsed here.
type fileConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	SessionName string `yaml:"session_name"`
	Timeout     string `yaml:"timeout"`
	MaxRetries  int    `yaml:"max_retries"`
	RetryDelay  string `yaml:"retry_delay"`
	Compression bool   `yaml:"compression"`
	Debug       bool   `yaml:"debug"`
	UserAgent   string `yaml:"user_agent"`
}

// LoadConfig reads a Config from a YAML file. Fields absent from the
// file keep their zero value and are defaulted at client construction.
//
//	cfg, err := runbeam.LoadConfig("runbeam.yaml")
//	if err != nil { ... }
//	client, err := runbeam.NewWithConfig(cfg)
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runbeam: reading config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("runbeam: parsing config file %s: %w", path, err)
	}
	cfg := &Config{
		APIKey:      fc.APIKey,
		BaseURL:     fc.BaseURL,
		SessionName: fc.SessionName,
		MaxRetries:  fc.MaxRetries,
		Compression: fc.Compression,
		Debug:       fc.Debug,
		UserAgent:   fc.UserAgent,
	}
	if fc.Timeout != "" {
		if cfg.Timeout, err = time.ParseDuration(fc.Timeout); err != nil {
			return nil, fmt.Errorf("%w: timeout %q: %v", ErrInvalidConfig, fc.Timeout, err)
		}
	}
	if fc.RetryDelay != "" {
		if cfg.RetryDelay, err = time.ParseDuration(fc.RetryDelay); err != nil {
			return nil, fmt.Errorf("%w: retry delay %q: %v", ErrInvalidConfig, fc.RetryDelay, err)
		}
	}
	// Environment beats file for the secret so config files can be
	// committed without credentials.
	if envKey := strings.TrimSpace(os.Getenv(EnvAPIKey)); envKey != "" {
		cfg.APIKey = envKey
	}
	return cfg, nil
}
