package runbeam

import (
	"context"
	"fmt"
)

// RunFunc is the context-aware callable shape accepted by Wrap: it
// receives the caller's context (carrying the parent run, if any) and a
// JSON-safe input mapping, and returns an output mapping.
type RunFunc func(ctx context.Context, inputs map[string]any) (map[string]any, error)

// CallFunc is the direct-call shape accepted by WrapCall, for code that
// does not thread a context.
type CallFunc func(inputs map[string]any) (map[string]any, error)

type ctxKey int

const runCtxKey ctxKey = 0

// ContextWithRun returns a context carrying run as the current parent.
// Traced functions invoked with this context attach their runs beneath
// it instead of starting new roots.
func ContextWithRun(ctx context.Context, run *RunTree) context.Context {
	return context.WithValue(ctx, runCtxKey, run)
}

// RunFromContext returns the current parent run, if the context carries
// one.
func RunFromContext(ctx context.Context) (*RunTree, bool) {
	run, ok := ctx.Value(runCtxKey).(*RunTree)
	return run, ok
}

// wrapConfig carries wrap-time settings shared by both wrapper shapes.
type wrapConfig struct {
	serialized map[string]any
	extra      map[string]any
	session    string
	client     Transport
	parent     *RunTree
}

// WrapOption configures Wrap and WrapCall.
type WrapOption func(*wrapConfig)

// WithWrapSerialized sets the snapshot descriptor recorded on every run
// the wrapper creates.
func WithWrapSerialized(serialized map[string]any) WrapOption {
	return func(c *wrapConfig) { c.serialized = serialized }
}

// WithWrapExtra sets wrap-level metadata. Call-level metadata supplied
// through ContextWithExtra wins on key collision.
func WithWrapExtra(extra map[string]any) WrapOption {
	return func(c *wrapConfig) { c.extra = extra }
}

// WithWrapSession sets the session name for root runs the wrapper
// creates.
func WithWrapSession(name string) WrapOption {
	return func(c *wrapConfig) { c.session = name }
}

// WithWrapClient binds runs the wrapper creates to a specific client.
func WithWrapClient(t Transport) WrapOption {
	return func(c *wrapConfig) { c.client = t }
}

// WithWrapParent fixes the parent run at wrap time. Used with WrapCall,
// which has no context to carry a parent.
func WithWrapParent(parent *RunTree) WrapOption {
	return func(c *wrapConfig) { c.parent = parent }
}

type extraCtxKey int

const callExtraKey extraCtxKey = 0

// ContextWithExtra attaches call-level run metadata to the context.
// It is merged over wrap-level metadata, call-level winning.
func ContextWithExtra(ctx context.Context, extra map[string]any) context.Context {
	return context.WithValue(ctx, callExtraKey, extra)
}

func extraFromContext(ctx context.Context) map[string]any {
	extra, _ := ctx.Value(callExtraKey).(map[string]any)
	return extra
}

// Wrap returns an instrumented version of fn. Each invocation creates a
// run (a child of the run in ctx, when present, otherwise a new root),
// posts it, invokes fn with the run riding on the context, then ends
// and patches the run with fn's outputs or error.
//
// Tracing is transparent: the wrapped function's outputs and error are
// returned unchanged, and a failure to record the run never alters
// control flow.
func Wrap(name string, runType RunType, fn RunFunc, opts ...WrapOption) RunFunc {
	cfg := applyWrapOptions(opts)

	return func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		parent, _ := RunFromContext(ctx)
		if parent == nil {
			parent = cfg.parent
		}
		run := cfg.newRun(name, runType, parent, inputs, extraFromContext(ctx))
		run.Post()

		defer recordPanic(run)
		outputs, err := fn(ContextWithRun(ctx, run), inputs)
		finishRun(run, outputs, err)
		return outputs, err
	}
}

// WrapCall is the direct-call counterpart of Wrap for functions that do
// not take a context. The parent run, if any, is fixed at wrap time via
// WithWrapParent.
func WrapCall(name string, runType RunType, fn CallFunc, opts ...WrapOption) CallFunc {
	cfg := applyWrapOptions(opts)

	return func(inputs map[string]any) (map[string]any, error) {
		run := cfg.newRun(name, runType, cfg.parent, inputs, nil)
		run.Post()

		defer recordPanic(run)
		outputs, err := fn(inputs)
		finishRun(run, outputs, err)
		return outputs, err
	}
}

func applyWrapOptions(opts []WrapOption) *wrapConfig {
	cfg := &wrapConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// newRun creates the run for one wrapped invocation, as a child when a
// parent is available and a root otherwise.
func (c *wrapConfig) newRun(name string, runType RunType, parent *RunTree, inputs, callExtra map[string]any) *RunTree {
	runOpts := []RunTreeOption{
		WithInputs(inputs),
	}
	if c.serialized != nil {
		runOpts = append(runOpts, WithSerialized(c.serialized))
	}
	if extra := mergeMaps(c.extra, callExtra); extra != nil {
		runOpts = append(runOpts, WithExtra(extra))
	}

	if parent != nil {
		return parent.CreateChild(name, runType, runOpts...)
	}

	if c.client != nil {
		runOpts = append(runOpts, WithClient(c.client))
	}
	if c.session != "" {
		runOpts = append(runOpts, WithSession(c.session))
	}
	return NewRunTree(name, runType, runOpts...)
}

// finishRun ends and patches the run for an invocation outcome. An
// errored invocation may still have produced partial outputs; both are
// recorded.
func finishRun(run *RunTree, outputs map[string]any, err error) {
	endOpts := []EndOption{}
	if outputs != nil {
		endOpts = append(endOpts, WithOutputs(outputs))
	}
	if err != nil {
		endOpts = append(endOpts, WithError(err.Error()))
	}
	run.End(endOpts...)
	run.Patch()
}

// recordPanic finalizes the run when user code panics, then re-raises
// the panic unchanged. Tracing must not swallow failures.
func recordPanic(run *RunTree) {
	if r := recover(); r != nil {
		run.End(WithError(fmt.Sprint(r)))
		run.Patch()
		panic(r)
	}
}
