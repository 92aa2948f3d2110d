package runbeam

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Environment variable names for configuration.
const (
	// EnvAPIKey is the environment variable for the Runbeam API key.
	EnvAPIKey = "RUNBEAM_API_KEY"
	// EnvEndpoint is the environment variable for the collector endpoint.
	EnvEndpoint = "RUNBEAM_ENDPOINT"
	// EnvHost is a deprecated alias of EnvEndpoint, honored when
	// EnvEndpoint is unset.
	EnvHost = "RUNBEAM_HOST"
	// EnvSession is the environment variable for the default session name.
	EnvSession = "RUNBEAM_SESSION"
	// EnvDebug is the environment variable to enable debug mode.
	EnvDebug = "RUNBEAM_DEBUG"
	// EnvCompression is the environment variable to enable request
	// body compression.
	EnvCompression = "RUNBEAM_COMPRESSION"
)

// envPrefix marks environment variables that are folded into run
// metadata by envMetadata.
const envPrefix = "RUNBEAM_"

// environment is the env-var view of Config, decoded by envconfig.
type environment struct {
	APIKey      string `env:"RUNBEAM_API_KEY"`
	Endpoint    string `env:"RUNBEAM_ENDPOINT"`
	Host        string `env:"RUNBEAM_HOST"`
	Session     string `env:"RUNBEAM_SESSION"`
	Debug       bool   `env:"RUNBEAM_DEBUG"`
	Compression bool   `env:"RUNBEAM_COMPRESSION"`
}

// NewFromEnv creates a client configured from environment variables:
// RUNBEAM_API_KEY (required), RUNBEAM_ENDPOINT, RUNBEAM_SESSION,
// RUNBEAM_DEBUG, and RUNBEAM_COMPRESSION. Explicit options override
// environment values.
//
//	client, err := runbeam.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewFromEnv(opts ...ConfigOption) (*Client, error) {
	var env environment
	if err := envconfig.Process(context.Background(), &env); err != nil {
		return nil, fmt.Errorf("runbeam: processing environment: %w", err)
	}
	if env.APIKey == "" {
		return nil, fmt.Errorf("runbeam: %s environment variable is required", EnvAPIKey)
	}

	endpoint := env.Endpoint
	if endpoint == "" {
		endpoint = env.Host
	}

	envOpts := make([]ConfigOption, 0, 4)
	if endpoint != "" {
		envOpts = append(envOpts, WithBaseURL(endpoint))
	}
	if env.Session != "" {
		envOpts = append(envOpts, WithSessionName(env.Session))
	}
	if env.Debug {
		envOpts = append(envOpts, WithDebug(true))
	}
	if env.Compression {
		envOpts = append(envOpts, WithCompression(true))
	}

	// Explicit options come last so they win.
	return New(env.APIKey, append(envOpts, opts...)...)
}

// envMetadata collects RUNBEAM_-prefixed environment variables for
// inclusion in run metadata, skipping anything secret-shaped.
func envMetadata() map[string]any {
	var out map[string]any
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, envPrefix) {
			continue
		}
		if isSecretEnvVar(name) {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[name] = value
	}
	return out
}

// isSecretEnvVar reports whether an environment variable name looks
// like a credential and must never travel in run metadata.
func isSecretEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	return strings.Contains(upper, "KEY") ||
		strings.Contains(upper, "SECRET") ||
		strings.Contains(upper, "TOKEN") ||
		strings.Contains(upper, "PASSWORD")
}
