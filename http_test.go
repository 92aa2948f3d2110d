package runbeam

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), WithMaxRetries(3), WithRetryDelay(time.Millisecond))

	run := NewRunTree("retry", RunTypeChain)
	if err := client.CreateRun(context.Background(), run.payload()); err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestHTTPDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"message": "malformed run"}`)
	}), WithMaxRetries(3), WithRetryDelay(time.Millisecond))

	run := NewRunTree("bad", RunTypeChain)
	err := client.CreateRun(context.Background(), run.payload())
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls.Load() != 1 {
		t.Errorf("client errors must not be retried; got %d attempts", calls.Load())
	}

	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "malformed run" {
		t.Errorf("expected parsed message, got %q", apiErr.Message)
	}
}

func TestHTTPRetriesExhaustReturnLastError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}), WithMaxRetries(2), WithRetryDelay(time.Millisecond))

	run := NewRunTree("down", RunTypeChain)
	err := client.CreateRun(context.Background(), run.payload())
	if !errors.Is(err, &APIError{StatusCode: http.StatusServiceUnavailable}) {
		t.Errorf("expected 503 APIError, got %v", err)
	}
}

func TestHTTPHonorsRetryAfterHeader(t *testing.T) {
	var calls atomic.Int32
	var firstAttempt, secondAttempt time.Time
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			firstAttempt = time.Now()
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			secondAttempt = time.Now()
			w.WriteHeader(http.StatusOK)
		}
	}), WithMaxRetries(1), WithRetryDelay(time.Millisecond))

	run := NewRunTree("limited", RunTypeChain)
	if err := client.CreateRun(context.Background(), run.payload()); err != nil {
		t.Fatalf("expected success after rate limit, got %v", err)
	}
	if wait := secondAttempt.Sub(firstAttempt); wait < time.Second {
		t.Errorf("expected Retry-After to be honored, waited only %v", wait)
	}
}

func TestHTTPContextCancellationStopsRetries(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}), WithMaxRetries(10), WithRetryDelay(50*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	run := NewRunTree("cancelled", RunTypeChain)
	err := client.CreateRun(ctx, run.payload())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline error, got %v", err)
	}
}

func TestHTTPCompressedBody(t *testing.T) {
	var encoding string
	var decoded map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encoding = r.Header.Get("Content-Encoding")
		body, _ := io.ReadAll(r.Body)
		if encoding == "zstd" {
			body, _ = decompressBody(body)
		}
		json.Unmarshal(body, &decoded)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(server.Close)

	client, err := New("test-api-key",
		WithBaseURL(server.URL),
		WithCompression(true),
		WithStructuredLogger(NopLogger()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Inputs large enough to clear the compression threshold.
	big := make(map[string]any)
	for i := 0; i < 200; i++ {
		big[time.Duration(i).String()] = "padding padding padding"
	}
	run := NewRunTree("compressed", RunTypeChain, WithInputs(big))
	if err := client.CreateRun(context.Background(), run.payload()); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	if encoding != "zstd" {
		t.Fatalf("expected zstd content encoding, got %q", encoding)
	}
	if decoded["name"] != "compressed" {
		t.Errorf("round trip through compression mangled the body: %v", decoded["name"])
	}
}

type captureMetrics struct {
	mu        sync.Mutex
	counters  map[string]int64
	durations map[string]int
}

func (m *captureMetrics) IncrementCounter(name string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]int64{}
	}
	m.counters[name] += delta
}

func (m *captureMetrics) RecordDuration(name string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.durations == nil {
		m.durations = map[string]int{}
	}
	m.durations[name]++
}

func (m *captureMetrics) SetGauge(string, float64) {}

func TestHTTPReportsMetrics(t *testing.T) {
	var calls atomic.Int32
	metrics := &captureMetrics{}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), WithMetrics(metrics), WithMaxRetries(2), WithRetryDelay(time.Millisecond))

	run := NewRunTree("measured", RunTypeChain)
	if err := client.CreateRun(context.Background(), run.payload()); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.counters["runbeam.http.requests"] != 2 {
		t.Errorf("requests counter = %d, want 2", metrics.counters["runbeam.http.requests"])
	}
	if metrics.counters["runbeam.http.retries"] != 1 {
		t.Errorf("retries counter = %d, want 1", metrics.counters["runbeam.http.retries"])
	}
	if metrics.durations["runbeam.http.request"] != 2 {
		t.Errorf("duration samples = %d, want 2", metrics.durations["runbeam.http.request"])
	}
}

func TestHTTPDisabledRetriesSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}), WithMaxRetries(0))

	run := NewRunTree("once", RunTypeChain)
	err := client.CreateRun(context.Background(), run.payload())
	if err == nil {
		t.Fatal("expected the server error to surface")
	}
	if !errors.Is(err, &APIError{StatusCode: http.StatusInternalServerError}) {
		t.Errorf("expected 500 APIError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("disabled retries must mean exactly one attempt, got %d", calls.Load())
	}
}
