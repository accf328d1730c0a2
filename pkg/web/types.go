// Package web provides the HTTP handlers for the workflow management API.
package web

import "github.com/coreza/coreza/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name    string         `json:"name"     validate:"required,min=3"`
	OwnerID string         `json:"owner_id" validate:"required"`
	Nodes   []*models.Node `json:"nodes"    validate:"required,min=1,dive,required"`
	Edges   []*models.Edge `json:"edges"`
}

// UpdateWorkflowRequest represents the request body for updating a workflow.
// All fields are optional to support partial updates. Activation state is not
// part of the update surface; it changes through the activate and deactivate
// endpoints.
type UpdateWorkflowRequest struct {
	Name  *string        `json:"name,omitempty" validate:"omitempty,min=3"`
	Nodes []*models.Node `json:"nodes,omitempty"`
	Edges []*models.Edge `json:"edges,omitempty"`
}

// SchedulePreviewRequest represents the request body for translating a
// declarative schedule into its cron expression without touching a workflow.
type SchedulePreviewRequest struct {
	Interval string `json:"interval" validate:"required"`
	Count    int    `json:"count"`
	Hour     int    `json:"hour"     validate:"min=0,max=23"`
	Minute   int    `json:"minute"   validate:"min=0,max=59"`
}

// SchedulePreviewResponse carries the derived cron expression.
type SchedulePreviewResponse struct {
	Cron string `json:"cron"`
}
