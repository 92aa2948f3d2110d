package runbeam

import (
	"context"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

// API endpoint paths.
var endpoints = struct {
	Runs     string
	Datasets string
	Examples string
	Feedback string
}{
	Runs:     "/runs",
	Datasets: "/datasets",
	Examples: "/examples",
	Feedback: "/feedback",
}

// Client talks to the Runbeam collector. It implements [Transport] and
// is safe for concurrent use.
type Client struct {
	config *Config
	http   *httpClient
}

var _ Transport = (*Client)(nil)

// New creates a client with the given API key and options.
func New(apiKey string, opts ...ConfigOption) (*Client, error) {
	cfg := &Config{APIKey: apiKey}
	for _, opt := range opts {
		opt(cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a client from a Config struct. The Config is
// copied; later mutation of cfg has no effect on the client.
func NewWithConfig(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	cfgCopy := *cfg
	cfgCopy.applyDefaults()
	if err := cfgCopy.validate(); err != nil {
		return nil, err
	}
	return &Client{
		config: &cfgCopy,
		http:   newHTTPClient(&cfgCopy),
	}, nil
}

// NewRunTree constructs a root run bound to this client, grouped under
// the client's configured session unless overridden.
func (c *Client) NewRunTree(name string, runType RunType, opts ...RunTreeOption) *RunTree {
	base := []RunTreeOption{
		WithClient(c),
		WithSession(c.config.SessionName),
		WithRunLogger(c.config.Logger),
	}
	return NewRunTree(name, runType, append(base, opts...)...)
}

// CreateRun announces a run in "created" state. The payload's extra
// metadata is enriched with RUNBEAM_-prefixed environment variables
// (credentials excluded) so runs record their deployment context.
func (c *Client) CreateRun(ctx context.Context, run *RunPayload) error {
	if run == nil {
		return ErrNilRun
	}
	body := *run
	if meta := envMetadata(); len(meta) > 0 {
		extra := make(map[string]any, len(body.Extra)+1)
		for k, v := range body.Extra {
			extra[k] = v
		}
		existing, _ := extra["metadata"].(map[string]any)
		extra["metadata"] = mergeMaps(meta, existing)
		body.Extra = extra
	}
	if body.SessionName == "" {
		body.SessionName = c.config.SessionName
	}
	return c.http.post(ctx, endpoints.Runs, &body, nil)
}

// UpdateRun announces a run in "updated" state.
func (c *Client) UpdateRun(ctx context.Context, runID uuid.UUID, update *RunUpdate) error {
	if update == nil {
		return ErrNilRun
	}
	return c.http.patch(ctx, endpoints.Runs+"/"+runID.String(), update, nil)
}

// Run is the collector's view of a stored run, as returned by the read
// endpoints.
type Run struct {
	RunPayload
}

// ReadRun fetches a single run by ID.
func (c *Client) ReadRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var out Run
	if err := c.http.get(ctx, endpoints.Runs+"/"+runID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRunsParams filters ListRuns.
type ListRunsParams struct {
	SessionName string
	RunType     RunType
	// ReferenceExampleID restricts results to runs instantiating the
	// given dataset example.
	ReferenceExampleID *uuid.UUID
	Limit              int
	Offset             int
}

// ListRuns fetches runs matching the given filters.
func (c *Client) ListRuns(ctx context.Context, params *ListRunsParams) ([]Run, error) {
	query := url.Values{}
	if params != nil {
		if params.SessionName != "" {
			query.Set("session_name", params.SessionName)
		}
		if params.RunType != "" {
			query.Set("run_type", string(params.RunType))
		}
		if params.ReferenceExampleID != nil {
			query.Set("reference_example_id", params.ReferenceExampleID.String())
		}
		if params.Limit > 0 {
			query.Set("limit", strconv.Itoa(params.Limit))
		}
		if params.Offset > 0 {
			query.Set("offset", strconv.Itoa(params.Offset))
		}
	}
	var out []Run
	if err := c.http.get(ctx, endpoints.Runs, query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Config returns a copy of the client's effective configuration.
func (c *Client) Config() Config {
	return *c.config
}
