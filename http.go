package runbeam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// httpClient is the retrying JSON transport core shared by all client
// endpoints.
type httpClient struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	userAgent   string
	maxRetries  int
	retryDelay  time.Duration
	compression bool
	debug       bool
	logger      StructuredLogger
	metrics     Metrics
}

func newHTTPClient(cfg *Config) *httpClient {
	return &httpClient{
		client:      cfg.HTTPClient,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		userAgent:   cfg.UserAgent,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		compression: cfg.Compression,
		debug:       cfg.Debug,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

// request describes one API call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	result any
}

// do executes a request, retrying retryable failures with exponential
// backoff until maxRetries is exhausted or the context ends.
func (h *httpClient) do(ctx context.Context, req *request) error {
	var lastErr error

	retries := h.maxRetries
	if retries < 0 { // DisableRetries: single attempt
		retries = 0
	}
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := h.retryDelay * time.Duration(1<<uint(attempt-1))
			if ra := RetryAfter(lastErr); ra > delay {
				delay = ra
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			if h.metrics != nil {
				h.metrics.IncrementCounter("runbeam.http.retries", 1)
			}
		}

		err := h.doOnce(ctx, req)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
	}

	return lastErr
}

// doOnce executes a single attempt.
func (h *httpClient) doOnce(ctx context.Context, req *request) error {
	u := h.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var bodyReader io.Reader
	compressed := false
	if req.body != nil {
		bodyBytes, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("runbeam: failed to marshal request body: %w", err)
		}
		if h.compression && len(bodyBytes) >= compressionThreshold {
			bodyBytes = compressBody(bodyBytes)
			compressed = true
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("runbeam: failed to create request: %w", err)
	}

	httpReq.Header.Set("x-api-key", h.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", h.userAgent)
	if compressed {
		httpReq.Header.Set("Content-Encoding", "zstd")
	}

	if h.debug {
		h.logger.Debug("http request", "method", req.method, "url", u)
	}

	start := time.Now()
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("runbeam: request failed: %w", err)
	}
	defer resp.Body.Close()

	if h.metrics != nil {
		h.metrics.RecordDuration("runbeam.http.request", time.Since(start))
		h.metrics.IncrementCounter("runbeam.http.requests", 1)
	}
	if h.debug {
		h.logger.Debug("http response",
			"method", req.method, "url", u,
			"status", resp.StatusCode, "duration", time.Since(start))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return h.responseError(resp)
	}

	if req.result != nil {
		if err := json.NewDecoder(resp.Body).Decode(req.result); err != nil && err != io.EOF {
			return fmt.Errorf("runbeam: failed to decode response: %w", err)
		}
	} else {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
	}

	return nil
}

// responseError builds an *APIError from a non-2xx response.
func (h *httpClient) responseError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("x-request-id"),
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(body) > 0 {
		var parsed struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
		}
		if json.Unmarshal(body, &parsed) == nil {
			apiErr.Message = parsed.Message
			if apiErr.Message == "" {
				apiErr.Message = parsed.Detail
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
	}

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	return apiErr
}

func (h *httpClient) get(ctx context.Context, path string, query url.Values, result any) error {
	return h.do(ctx, &request{method: http.MethodGet, path: path, query: query, result: result})
}

func (h *httpClient) post(ctx context.Context, path string, body, result any) error {
	return h.do(ctx, &request{method: http.MethodPost, path: path, body: body, result: result})
}

func (h *httpClient) patch(ctx context.Context, path string, body, result any) error {
	return h.do(ctx, &request{method: http.MethodPatch, path: path, body: body, result: result})
}
