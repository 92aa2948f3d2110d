package runbeam

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transport delivers run announcements to the collector. The production
// implementation is [Client]; tests substitute fakes. Implementations
// must be safe for concurrent use.
//
// Neither call is guaranteed idempotent by the collector; the submission
// worker treats failures as loggable and non-fatal.
type Transport interface {
	// CreateRun announces a run in "created" state.
	CreateRun(ctx context.Context, run *RunPayload) error
	// UpdateRun announces a run in "updated" state.
	UpdateRun(ctx context.Context, runID uuid.UUID, update *RunUpdate) error
}

// RunPayload is the wire form of a "run created" announcement. Child
// runs are deliberately absent: each child announces itself.
type RunPayload struct {
	ID                 uuid.UUID      `json:"id"`
	Name               string         `json:"name"`
	RunType            RunType        `json:"run_type"`
	Serialized         map[string]any `json:"serialized,omitempty"`
	Inputs             map[string]any `json:"inputs,omitempty"`
	Outputs            map[string]any `json:"outputs,omitempty"`
	Error              string         `json:"error,omitempty"`
	StartTime          time.Time      `json:"start_time"`
	EndTime            *time.Time     `json:"end_time,omitempty"`
	ExecutionOrder     int            `json:"execution_order"`
	Extra              map[string]any `json:"extra,omitempty"`
	SessionName        string         `json:"session_name,omitempty"`
	SessionID          *uuid.UUID     `json:"session_id,omitempty"`
	ParentRunID        *uuid.UUID     `json:"parent_run_id,omitempty"`
	ReferenceExampleID *uuid.UUID     `json:"reference_example_id,omitempty"`
}

// RunUpdate is the wire form of a "run updated" announcement: only the
// fields that change after creation.
type RunUpdate struct {
	EndTime            *time.Time     `json:"end_time,omitempty"`
	Outputs            map[string]any `json:"outputs,omitempty"`
	Error              string         `json:"error,omitempty"`
	ParentRunID        *uuid.UUID     `json:"parent_run_id,omitempty"`
	ReferenceExampleID *uuid.UUID     `json:"reference_example_id,omitempty"`
}

// Process-default transport, created lazily from the environment for
// runs that were never bound to a client. Configuration errors are
// deferred into the transport calls themselves so that construction
// sites stay non-blocking and infallible.
var (
	defaultTransportOnce sync.Once
	defaultTransportVal  Transport
)

func defaultTransport() Transport {
	defaultTransportOnce.Do(func() {
		c, err := NewFromEnv()
		if err != nil {
			defaultTransportVal = errTransport{err: err}
			return
		}
		defaultTransportVal = c
	})
	return defaultTransportVal
}

// errTransport fails every call with the configuration error that
// prevented building a real client. The submission worker logs it.
type errTransport struct{ err error }

func (t errTransport) CreateRun(context.Context, *RunPayload) error { return t.err }
func (t errTransport) UpdateRun(context.Context, uuid.UUID, *RunUpdate) error {
	return t.err
}
