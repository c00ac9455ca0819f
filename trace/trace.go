package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/agentrelay/core"
)

// ModeOrchestrate is the trace mode emitted by the multi-hop planning loop.
const ModeOrchestrate = "orchestrate"

// maxOutputSummary bounds the per-step output excerpt stored in the artifact.
const maxOutputSummary = 2000

// Edge is one delegate transition in the session graph.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is the session graph of a run: nodes are the agents touched, edges
// the delegate transitions between them, in step order.
type Graph struct {
	Nodes []string `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

// StepRecord is the persisted summary of one orchestration step.
type StepRecord struct {
	Seq              int                   `json:"seq"`
	AgentID          string                `json:"agentId"`
	Decision         core.PlanningDecision `json:"plannerDecision"`
	ExitCode         int                   `json:"exitCode"`
	Output           string                `json:"output,omitempty"`
	BackendSessionID string                `json:"backendSessionId,omitempty"`
}

// Trace is the artifact persisted for one run.
type Trace struct {
	RunID        string         `json:"runId"`
	Mode         string         `json:"mode"`
	Status       core.RunStatus `json:"status"`
	EntryAgentID string         `json:"entryAgentId"`
	Steps        []StepRecord   `json:"steps"`
	SessionGraph Graph          `json:"sessionGraph"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// FromSteps builds the persisted step records and session graph from the
// engine's in-memory step sequence.
func FromSteps(steps []core.OrchestrationStep) ([]StepRecord, Graph) {
	records := make([]StepRecord, 0, len(steps))
	graph := Graph{Nodes: []string{}, Edges: []Edge{}}
	seen := make(map[string]struct{})

	addNode := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		graph.Nodes = append(graph.Nodes, id)
	}

	for _, s := range steps {
		out := s.Result.Stdout
		if len(out) > maxOutputSummary {
			out = out[:maxOutputSummary]
		}
		records = append(records, StepRecord{
			Seq:              s.Seq,
			AgentID:          s.AgentID,
			Decision:         s.Decision,
			ExitCode:         s.Result.ExitCode,
			Output:           out,
			BackendSessionID: s.Result.BackendSessionID,
		})
		addNode(s.AgentID)
		if s.Decision.IsDelegate() {
			addNode(s.Decision.TargetAgentID)
			graph.Edges = append(graph.Edges, Edge{From: s.AgentID, To: s.Decision.TargetAgentID})
		}
	}
	return records, graph
}

// Writer persists trace artifacts as one JSON file per run.
type Writer struct {
	dir string
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string) *Writer { return &Writer{dir: dir} }

// Write persists the trace and returns the artifact path. Writes go through
// a temp file + rename so readers never observe a partial artifact.
func (w *Writer) Write(t Trace) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create traces dir: %w", err)
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal trace: %w", err)
	}

	path := filepath.Join(w.dir, t.RunID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write trace: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("finalize trace: %w", err)
	}
	return path, nil
}

// Read loads a trace artifact from disk.
func Read(path string) (Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Trace{}, fmt.Errorf("read trace: %w", err)
	}
	var t Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return Trace{}, fmt.Errorf("parse trace: %w", err)
	}
	return t, nil
}
