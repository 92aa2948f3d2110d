package runbeam

// RunType classifies a traced unit of work. The set is open: the collector
// accepts arbitrary strings, these constants cover the common cases.
type RunType string

const (
	RunTypeChain     RunType = "chain"
	RunTypeLLM       RunType = "llm"
	RunTypeTool      RunType = "tool"
	RunTypeRetriever RunType = "retriever"
	RunTypeEmbedding RunType = "embedding"
	RunTypePrompt    RunType = "prompt"
	RunTypeParser    RunType = "parser"
)

// String returns the string representation of the run type.
func (t RunType) String() string { return string(t) }

// Metadata is free-form key-value metadata attached to runs and sessions.
type Metadata map[string]any

// Set sets a key-value pair and returns the Metadata for chaining.
func (m Metadata) Set(key string, value any) Metadata {
	m[key] = value
	return m
}

// Get retrieves a value. Returns the value and true if present.
func (m Metadata) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// Merge returns a new Metadata combining m with other; keys in other win.
func (m Metadata) Merge(other Metadata) Metadata {
	if len(other) == 0 && len(m) == 0 {
		return nil
	}
	out := make(Metadata, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// mergeMaps merges call-level values over base-level values. Call-level
// wins on key collision. Returns nil when both inputs are empty.
func mergeMaps(base, call map[string]any) map[string]any {
	if len(base) == 0 && len(call) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(call))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range call {
		out[k] = v
	}
	return out
}
