// Package runbeam provides a Go SDK for the Runbeam execution-tracing
// platform.
//
// Runbeam records hierarchical "runs" (function calls, nested sub-calls,
// their inputs, outputs, timing, and errors) and ships them asynchronously
// to a remote collector. This SDK provides the run-tree data structure,
// a background submission channel, and helpers for wrapping plain functions
// into traced calls.
//
// # Quick Start
//
// Create a run tree and record nested work:
//
//	client, err := runbeam.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer runbeam.AwaitAll()
//
//	root := runbeam.NewRunTree("my-pipeline", runbeam.RunTypeChain,
//	    runbeam.WithClient(client),
//	    runbeam.WithInputs(map[string]any{"query": "what is go?"}),
//	)
//	root.Post()
//
//	child := root.CreateChild("retrieve", runbeam.RunTypeRetriever)
//	child.Post()
//	// ... do the work ...
//	child.End(runbeam.WithOutputs(map[string]any{"docs": 3}))
//	child.Patch()
//
//	root.End(runbeam.WithOutputs(map[string]any{"answer": "a language"}))
//	root.Patch()
//
// Or wrap a function so every invocation is traced:
//
//	traced := runbeam.Wrap("summarize", runbeam.RunTypeChain, summarize)
//	out, err := traced(ctx, map[string]any{"text": doc})
//
// # Delivery Semantics
//
// Post and Patch never block and never return transport errors to the
// caller. Announcements are handed to a single background worker and
// dispatched to the collector in FIFO order per enqueueing goroutine.
// Delivery is best effort: failed announcements are logged and dropped,
// not retried from a local queue. Call [AwaitAll] before process exit to
// flush everything still pending.
//
// # Thread Safety
//
// The Client is safe for concurrent use. A RunTree is expected to be
// mutated from the single logical thread executing the traced call stack;
// distinct trees may be used from distinct goroutines freely.
package runbeam
