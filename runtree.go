package runbeam

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionName is the session runs are grouped under when no
// session is configured.
const DefaultSessionName = "default"

// RunTree is a single traced unit of work and the root of its own
// subtree: identity, timing, inputs/outputs, error, and the ordering
// counters that keep sibling runs monotonic while the tree grows
// asynchronously.
//
// A RunTree is expected to be mutated only from the logical thread
// executing the traced call stack. Post and Patch are safe to call from
// that thread at any point in the lifecycle.
type RunTree struct {
	// ID is the unique identifier of the run. Immutable after creation.
	ID uuid.UUID

	// Name is the human-readable label of the run.
	Name string

	// RunType classifies the run ("chain", "llm", "tool", ...).
	RunType RunType

	// Serialized is an immutable snapshot descriptor of what is being
	// executed. Defaults to {"name": Name}.
	Serialized map[string]any

	// Inputs and Outputs are JSON-safe mappings, mutable until End.
	Inputs  map[string]any
	Outputs map[string]any

	// Error holds the failure description for runs that errored. A run
	// that errored may still carry partial outputs.
	Error string

	StartTime time.Time
	// EndTime is nil until the run is finalized via End.
	EndTime *time.Time

	// ExecutionOrder is this run's rank among its siblings, assigned
	// once at creation as parent.ChildExecutionOrder + 1.
	ExecutionOrder int

	// ChildExecutionOrder is the high-water mark of ordering seen among
	// this run's descendants. It only increases. Ending a child lifts
	// the parent's mark one level; callers end runs root-ward so the
	// lift reaches the root.
	ChildExecutionOrder int

	// Extra is free-form metadata, merged from wrap-level and
	// call-level sources (call-level wins).
	Extra map[string]any

	// SessionName and SessionID group runs logically. Children inherit
	// them from the root unless overridden.
	SessionName string
	SessionID   *uuid.UUID

	// ReferenceExampleID links the run to the dataset example it
	// instantiates, when driven by an experiment.
	ReferenceExampleID *uuid.UUID

	// ParentRun is a non-owning back-reference used only for ordering
	// propagation. It is never serialized; ownership flows strictly
	// parent to child.
	ParentRun *RunTree

	// ChildRuns holds this run's children in insertion order.
	ChildRuns []*RunTree

	client Transport
	logger StructuredLogger
}

// RunTreeOption configures a run at creation time.
type RunTreeOption func(*RunTree)

// WithRunID sets an explicit run ID instead of generating one.
func WithRunID(id uuid.UUID) RunTreeOption {
	return func(r *RunTree) { r.ID = id }
}

// WithInputs sets the run's inputs.
func WithInputs(inputs map[string]any) RunTreeOption {
	return func(r *RunTree) { r.Inputs = inputs }
}

// WithOutputsAt sets outputs already known at creation time. Most callers
// set outputs when the run ends instead; see WithOutputs.
func WithOutputsAt(outputs map[string]any) RunTreeOption {
	return func(r *RunTree) { r.Outputs = outputs }
}

// WithSerialized sets the snapshot descriptor of the executed component.
func WithSerialized(serialized map[string]any) RunTreeOption {
	return func(r *RunTree) { r.Serialized = serialized }
}

// WithExtra sets free-form metadata on the run.
func WithExtra(extra map[string]any) RunTreeOption {
	return func(r *RunTree) { r.Extra = extra }
}

// WithMetadata attaches user metadata under the "metadata" key of the
// run's extra mapping, where environment-derived entries also live.
func WithMetadata(md Metadata) RunTreeOption {
	return func(r *RunTree) {
		if len(md) == 0 {
			return
		}
		if r.Extra == nil {
			r.Extra = map[string]any{}
		}
		existing, _ := r.Extra["metadata"].(map[string]any)
		r.Extra["metadata"] = mergeMaps(existing, md)
	}
}

// WithStartTime overrides the run's start time.
func WithStartTime(t time.Time) RunTreeOption {
	return func(r *RunTree) { r.StartTime = t }
}

// WithSession sets the session name the run is grouped under.
func WithSession(name string) RunTreeOption {
	return func(r *RunTree) { r.SessionName = name }
}

// WithSessionID sets the session ID the run is grouped under.
func WithSessionID(id uuid.UUID) RunTreeOption {
	return func(r *RunTree) { r.SessionID = &id }
}

// WithReferenceExample links the run to a dataset example.
func WithReferenceExample(id uuid.UUID) RunTreeOption {
	return func(r *RunTree) { r.ReferenceExampleID = &id }
}

// WithClient binds the run (and all children derived from it) to a
// specific client. Without it, runs use the process-default client
// configured from the environment.
func WithClient(t Transport) RunTreeOption {
	return func(r *RunTree) { r.client = t }
}

// WithRunLogger sets the logger used for background submission failures
// of this run.
func WithRunLogger(l StructuredLogger) RunTreeOption {
	return func(r *RunTree) { r.logger = l }
}

// NewRunTree constructs a root run. It never blocks; announcing the run
// to the collector is a separate, explicit Post.
func NewRunTree(name string, runType RunType, opts ...RunTreeOption) *RunTree {
	r := &RunTree{
		Name:                name,
		RunType:             runType,
		StartTime:           time.Now().UTC(),
		ExecutionOrder:      1,
		ChildExecutionOrder: 1,
		SessionName:         DefaultSessionName,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Serialized == nil {
		r.Serialized = map[string]any{"name": name}
	}
	if r.Inputs == nil {
		r.Inputs = map[string]any{}
	}
	return r
}

// CreateChild adds a child run beneath r. The child's ExecutionOrder is
// assigned as r.ChildExecutionOrder + 1, and the child inherits the
// session and client binding of its parent.
func (r *RunTree) CreateChild(name string, runType RunType, opts ...RunTreeOption) *RunTree {
	order := r.ChildExecutionOrder + 1
	child := &RunTree{
		Name:                name,
		RunType:             runType,
		StartTime:           time.Now().UTC(),
		ExecutionOrder:      order,
		ChildExecutionOrder: order,
		SessionName:         r.SessionName,
		SessionID:           r.SessionID,
		ParentRun:           r,
		client:              r.client,
		logger:              r.logger,
	}
	for _, opt := range opts {
		opt(child)
	}
	if child.ID == uuid.Nil {
		child.ID = uuid.New()
	}
	if child.Serialized == nil {
		child.Serialized = map[string]any{"name": name}
	}
	if child.Inputs == nil {
		child.Inputs = map[string]any{}
	}
	r.ChildRuns = append(r.ChildRuns, child)
	return child
}

// EndOption configures how a run is finalized.
type EndOption func(*endConfig)

type endConfig struct {
	outputs map[string]any
	err     string
	hasErr  bool
	endTime *time.Time
}

// WithOutputs sets the run's outputs at end time.
func WithOutputs(outputs map[string]any) EndOption {
	return func(c *endConfig) { c.outputs = outputs }
}

// WithError records the run as failed with the given description.
func WithError(err string) EndOption {
	return func(c *endConfig) { c.err = err; c.hasErr = true }
}

// WithEndTime overrides the run's end time.
func WithEndTime(t time.Time) EndOption {
	return func(c *endConfig) { c.endTime = &t }
}

// End finalizes the run: sets its end time (default: now), records
// outputs and/or error if provided, then lifts the parent's
// ChildExecutionOrder to the max of itself and this run's. The lift is
// exactly one level per call; ending runs root-ward carries it to the
// top. Callers must not End a run twice.
func (r *RunTree) End(opts ...EndOption) {
	var cfg endConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.endTime != nil {
		r.EndTime = cfg.endTime
	} else {
		now := time.Now().UTC()
		r.EndTime = &now
	}
	if cfg.outputs != nil {
		r.Outputs = cfg.outputs
	}
	if cfg.hasErr {
		r.Error = cfg.err
	}

	if r.ParentRun != nil && r.ChildExecutionOrder > r.ParentRun.ChildExecutionOrder {
		r.ParentRun.ChildExecutionOrder = r.ChildExecutionOrder
	}
}

// ParentRunID returns the ID of the parent run, or nil for roots.
func (r *RunTree) ParentRunID() *uuid.UUID {
	if r.ParentRun == nil {
		return nil
	}
	id := r.ParentRun.ID
	return &id
}

// Post announces the run to the collector in "created" state. The
// announcement carries every field except child runs (children announce
// themselves) and is dispatched on the background submission worker:
// Post never blocks and never surfaces transport errors; the returned
// handle reports eventual completion to callers that choose to wait.
func (r *RunTree) Post() *Submission {
	payload := r.payload()
	client := r.transport()
	logger := r.submitLogger()
	return submit(func(ctx context.Context) error {
		return client.CreateRun(ctx, payload)
	}, logger, "create run", r.ID)
}

// Patch announces the run to the collector in "updated" state, carrying
// only the fields that change after creation: outputs, error, end time,
// and parent/reference linkage. Same non-blocking contract as Post.
func (r *RunTree) Patch() *Submission {
	update := &RunUpdate{
		EndTime:            r.EndTime,
		Outputs:            serializeMap(r.Outputs),
		Error:              r.Error,
		ParentRunID:        r.ParentRunID(),
		ReferenceExampleID: r.ReferenceExampleID,
	}
	runID := r.ID
	client := r.transport()
	logger := r.submitLogger()
	return submit(func(ctx context.Context) error {
		return client.UpdateRun(ctx, runID, update)
	}, logger, "update run", r.ID)
}

// payload builds the "run created" announcement. Child runs are
// excluded so already-flushed children are not transmitted twice; the
// parent link travels as an ID, never as the back-reference itself.
func (r *RunTree) payload() *RunPayload {
	return &RunPayload{
		ID:                 r.ID,
		Name:               r.Name,
		RunType:            r.RunType,
		Serialized:         serializeMap(r.Serialized),
		Inputs:             serializeMap(r.Inputs),
		Outputs:            serializeMap(r.Outputs),
		Error:              r.Error,
		StartTime:          r.StartTime,
		EndTime:            r.EndTime,
		ExecutionOrder:     r.ExecutionOrder,
		Extra:              serializeMap(r.Extra),
		SessionName:        r.SessionName,
		SessionID:          r.SessionID,
		ParentRunID:        r.ParentRunID(),
		ReferenceExampleID: r.ReferenceExampleID,
	}
}

func (r *RunTree) transport() Transport {
	if r.client != nil {
		return r.client
	}
	return defaultTransport()
}

func (r *RunTree) submitLogger() StructuredLogger {
	if r.logger != nil {
		return r.logger
	}
	if c, ok := r.client.(*Client); ok && c.config.Logger != nil {
		return c.config.Logger
	}
	return defaultStderrLogger
}
