package output

// Shared JSON shapes for command and server output. Commands map domain
// types onto these so the CLI JSON mode and the HTTP API stay in sync.

// IterationInfo records one widening step of the expansion loop.
type IterationInfo struct {
	Depth          int    `json:"depth"`
	CandidateCount int    `json:"candidate_count"`
	Verdict        string `json:"verdict"`
	Reasoning      string `json:"reasoning,omitempty"`
}

// LineageOutput is the JSON envelope for the lineage surface.
type LineageOutput struct {
	Relations []LineageNode `json:"relations"`
	Stats     LineageStats  `json:"stats"`
}

// LineageNode describes one physical relation in the dependency graph.
type LineageNode struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Depth   int      `json:"depth"`
	Cyclic  bool     `json:"cyclic,omitempty"`
	Parents []string `json:"parents,omitempty"`
}

// LineageStats summarizes graph shape.
type LineageStats struct {
	Relations int `json:"relations"`
	Edges     int `json:"edges"`
	MaxDepth  int `json:"max_depth"`
	Cycles    int `json:"cycles"`
}

// RunInfo is the JSON shape for a recorded expansion run.
type RunInfo struct {
	ID          string          `json:"id"`
	Question    string          `json:"question"`
	Status      string          `json:"status"`
	StartedAt   string          `json:"started_at"`
	CompletedAt string          `json:"completed_at,omitempty"`
	Approved    []string        `json:"approved_relations,omitempty"`
	SQL         string          `json:"sql,omitempty"`
	Iterations  []IterationInfo `json:"iterations,omitempty"`
}

// ToolInfo is the JSON shape for one registry tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
