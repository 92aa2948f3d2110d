package runbeam

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigApplyDefaults(t *testing.T) {
	cfg := &Config{APIKey: "k"}
	cfg.applyDefaults()

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.SessionName != DefaultSessionName {
		t.Errorf("SessionName = %q, want %q", cfg.SessionName, DefaultSessionName)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.MaxRetries, DefaultMaxRetries)
	}
	if cfg.RetryDelay != DefaultRetryDelay {
		t.Errorf("RetryDelay = %v, want %v", cfg.RetryDelay, DefaultRetryDelay)
	}
	if cfg.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q, want %q", cfg.UserAgent, DefaultUserAgent)
	}
	if cfg.HTTPClient == nil {
		t.Error("expected a default HTTP client")
	}
	if cfg.Logger == nil {
		t.Error("expected a default logger")
	}
}

func TestConfigDefaultsPreserveOverrides(t *testing.T) {
	cfg := &Config{
		APIKey:      "k",
		BaseURL:     "http://localhost:9999",
		SessionName: "experiments",
		Timeout:     time.Minute,
		MaxRetries:  7,
	}
	cfg.applyDefaults()

	if cfg.BaseURL != "http://localhost:9999" {
		t.Errorf("BaseURL overwritten: %q", cfg.BaseURL)
	}
	if cfg.SessionName != "experiments" {
		t.Errorf("SessionName overwritten: %q", cfg.SessionName)
	}
	if cfg.Timeout != time.Minute {
		t.Errorf("Timeout overwritten: %v", cfg.Timeout)
	}
	if cfg.MaxRetries != 7 {
		t.Errorf("MaxRetries overwritten: %d", cfg.MaxRetries)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name:    "missing api key",
			cfg:     Config{BaseURL: DefaultBaseURL},
			wantErr: ErrMissingAPIKey,
		},
		{
			name:    "missing base url",
			cfg:     Config{APIKey: "k"},
			wantErr: ErrMissingBaseURL,
		},
		{
			name:    "relative base url",
			cfg:     Config{APIKey: "k", BaseURL: "not-a-url"},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "unsupported scheme",
			cfg:     Config{APIKey: "k", BaseURL: "ftp://example.com"},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "retries below disabled sentinel",
			cfg:     Config{APIKey: "k", BaseURL: DefaultBaseURL, MaxRetries: -2},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "retries above cap",
			cfg:     Config{APIKey: "k", BaseURL: DefaultBaseURL, MaxRetries: MaxMaxRetries + 1},
			wantErr: ErrInvalidConfig,
		},
		{
			name: "retries disabled",
			cfg:  Config{APIKey: "k", BaseURL: DefaultBaseURL, MaxRetries: DisableRetries},
		},
		{
			name:    "negative timeout",
			cfg:     Config{APIKey: "k", BaseURL: DefaultBaseURL, Timeout: -time.Second},
			wantErr: ErrInvalidConfig,
		},
		{
			name: "valid",
			cfg:  Config{APIKey: "k", BaseURL: "https://api.example.com"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runbeam.yaml")
	content := `
api_key: file-key
base_url: https://collector.internal:8443
session_name: nightly
timeout: 30s
max_retries: 5
compression: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.APIKey != "file-key" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.BaseURL != "https://collector.internal:8443" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.SessionName != "nightly" {
		t.Errorf("SessionName = %q", cfg.SessionName)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
	if !cfg.Compression {
		t.Error("Compression not set")
	}
}

func TestLoadConfigEnvOverridesFileSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runbeam.yaml")
	if err := os.WriteFile(path, []byte("api_key: committed-by-mistake\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvAPIKey, "env-key")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want environment to win", cfg.APIKey)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("api_key: [unclosed\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestWithMaxRetriesZeroDisables(t *testing.T) {
	cfg := &Config{APIKey: "k"}
	WithMaxRetries(0)(cfg)

	if cfg.MaxRetries != DisableRetries {
		t.Fatalf("MaxRetries = %d, want DisableRetries", cfg.MaxRetries)
	}
	cfg.applyDefaults()
	if cfg.MaxRetries != DisableRetries {
		t.Errorf("defaults overwrote disabled retries: %d", cfg.MaxRetries)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("disabled retries must validate: %v", err)
	}
}
