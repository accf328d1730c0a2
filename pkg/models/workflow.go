// Package models defines the core domain models for node-based workflow automation
package models

import "time"

// Workflow represents a user-assembled directed graph of typed nodes.
// Nodes and Edges together form the DAG the execution engine runs; the
// engine treats a loaded workflow as read-only.
type Workflow struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"          validate:"required,min=3"`
	OwnerID      string    `json:"owner_id"      validate:"required"`
	Nodes        []*Node   `json:"nodes"`
	Edges        []*Edge   `json:"edges"`
	IsActive     bool      `json:"is_active"`
	ScheduleCron string    `json:"schedule_cron,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Node is one step in a workflow. Type names a manifest; Values carries the
// user-configured fields, which may be literal scalars or template strings
// holding cross-node references.
type Node struct {
	ID     string         `json:"id"   validate:"required"`
	Type   string         `json:"type" validate:"required"`
	Values map[string]any `json:"values"`
}

// Edge declares that Target depends on Source.
type Edge struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// NodeTypeScheduler is the built-in trigger node type. Scheduler nodes carry
// the recurrence configuration and are skipped by the execution engine.
const NodeTypeScheduler = "Scheduler"

// NodeTypeIf is the built-in conditional node type handled locally by the
// dispatcher without a manifest action.
const NodeTypeIf = "IfNode"

// IsTriggerNode reports whether the node is a pure trigger node with no
// dispatch action of its own.
func (n *Node) IsTriggerNode() bool {
	return n.Type == NodeTypeScheduler
}

// SchedulerNode returns the workflow's Scheduler node, if any.
func (w *Workflow) SchedulerNode() (*Node, bool) {
	for _, node := range w.Nodes {
		if node.Type == NodeTypeScheduler {
			return node, true
		}
	}

	return nil, false
}
