package pipeline

// Stage names one pipeline stage in the execution trace.
type Stage string

const (
	StageParsing      Stage = "parsing"
	StageMemoryLookup Stage = "memory_lookup"
	StageRetrieval    Stage = "retrieval"
	StageRouting      Stage = "routing"
	StageSolving      Stage = "solving"
	StageVerifying    Stage = "verifying"
	StageExplaining   Stage = "explaining"
	StageStored       Stage = "stored"
)

// Status is the outcome recorded for a trace entry.
type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusWarning   Status = "warning"
	StatusError     Status = "error"
)

// TraceEntry is one observation in the execution trace. The trace is
// append-only and returned with every solve result so callers can show
// what the pipeline did, including on failure.
type TraceEntry struct {
	Stage   Stage          `json:"stage"`
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// trace accumulates entries for one solve call.
type trace struct {
	entries []TraceEntry
}

func (t *trace) add(stage Stage, status Status) {
	t.entries = append(t.entries, TraceEntry{Stage: stage, Status: status})
}

func (t *trace) addMessage(stage Stage, status Status, message string) {
	t.entries = append(t.entries, TraceEntry{Stage: stage, Status: status, Message: message})
}

func (t *trace) addFields(stage Stage, status Status, fields map[string]any) {
	t.entries = append(t.entries, TraceEntry{Stage: stage, Status: status, Fields: fields})
}
