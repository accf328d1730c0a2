package models

// ExecutionContext accumulates node outputs during a single run, keyed by
// node id. Entries are append-only: once a node's output is recorded it is
// never mutated, and the context is never shared across runs.
type ExecutionContext struct {
	RunID      string
	WorkflowID string
	OwnerID    string

	outputs map[string]map[string]any
}

// NewExecutionContext creates an empty context scoped to one run.
func NewExecutionContext(runID, workflowID, ownerID string) *ExecutionContext {
	return &ExecutionContext{
		RunID:      runID,
		WorkflowID: workflowID,
		OwnerID:    ownerID,
		outputs:    make(map[string]map[string]any),
	}
}

// Record stores a node's output. The first write wins; a node executes at
// most once per run, so a second write indicates a bug in the caller and is
// ignored.
func (c *ExecutionContext) Record(nodeID string, output map[string]any) {
	if _, exists := c.outputs[nodeID]; exists {
		return
	}

	c.outputs[nodeID] = output
}

// Output returns the recorded output of a node, if present.
func (c *ExecutionContext) Output(nodeID string) (map[string]any, bool) {
	output, ok := c.outputs[nodeID]

	return output, ok
}

// Outputs exposes the accumulated node outputs for reference resolution.
func (c *ExecutionContext) Outputs() map[string]map[string]any {
	return c.outputs
}
