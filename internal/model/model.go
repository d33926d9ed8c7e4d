// Package model defines the shared domain types of the catalog search
// indexer: resource change events, search document writes, reindex jobs,
// and index settings payloads.
package model

import (
	"encoding/json"
	"time"
)

// EventType classifies a resource change event.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ResourceEvent is a single change notification for a catalog resource.
// New and Old carry the resource state after and before the change; both
// are nil for id-only events.
type ResourceEvent struct {
	ID       string         `json:"id"`
	Resource string         `json:"resourceName"`
	Tenant   string         `json:"tenant"`
	Type     EventType      `json:"type"`
	New      map[string]any `json:"new,omitempty"`
	Old      map[string]any `json:"old,omitempty"`
}

// BodyJSON returns the serialized New payload, or nil when the event
// carries no body.
func (e ResourceEvent) BodyJSON() []byte {
	if e.New == nil {
		return nil
	}
	body, err := json.Marshal(e.New)
	if err != nil {
		return nil
	}
	return body
}

// WriteAction is the kind of operation a DocumentWrite performs.
type WriteAction string

const (
	ActionIndex  WriteAction = "index"
	ActionDelete WriteAction = "delete"
)

// DocumentWrite is a single document operation against a physical index.
// Body is nil for deletes.
type DocumentWrite struct {
	ID       string
	Resource string
	Index    string
	Action   WriteAction
	Body     []byte
}

// OperationStatus is the outcome of a bulk operation.
type OperationStatus string

const (
	StatusSuccess OperationStatus = "success"
	StatusError   OperationStatus = "error"
)

// OperationResult reports the outcome of an index or bulk-write operation.
// Engine failures are carried in Message rather than raised as errors.
type OperationResult struct {
	Status  OperationStatus `json:"status"`
	Message string          `json:"errorMessage,omitempty"`
}

// IsError reports whether the operation failed.
func (r OperationResult) IsError() bool {
	return r.Status == StatusError
}

// SuccessResult returns a successful OperationResult.
func SuccessResult() OperationResult {
	return OperationResult{Status: StatusSuccess}
}

// ErrorResult returns a failed OperationResult carrying the engine's message.
func ErrorResult(message string) OperationResult {
	return OperationResult{Status: StatusError, Message: message}
}

// JobStatus is the lifecycle state of a reindex or streaming job.
// Transitions are monotonic: InProgress to exactly one terminal state.
type JobStatus string

const (
	JobInProgress JobStatus = "In progress"
	JobCompleted  JobStatus = "Completed"
	JobError      JobStatus = "Error"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobError
}

// ReindexJob is the handle returned for an orchestrated reindex call.
type ReindexJob struct {
	ID            string    `json:"id"`
	JobStatus     JobStatus `json:"jobStatus"`
	SubmittedDate time.Time `json:"submittedDate"`
}

// ReindexRequest asks for a full reindex of one primary resource, or of
// every primary resource when ResourceName is empty.
type ReindexRequest struct {
	ResourceName  string `json:"resourceName,omitempty"`
	RecreateIndex bool   `json:"recreateIndex,omitempty"`
}

// IndexSettings overrides the static index settings at creation time.
// Nil fields fall back to the configured defaults.
type IndexSettings struct {
	NumberOfShards   *int `json:"numberOfShards,omitempty"`
	NumberOfReplicas *int `json:"numberOfReplicas,omitempty"`
	RefreshInterval  *int `json:"refreshInterval,omitempty"`
}

// DynamicSettings are the only settings mutable after index creation.
type DynamicSettings struct {
	NumberOfReplicas *int `json:"numberOfReplicas,omitempty"`
	RefreshInterval  *int `json:"refreshInterval,omitempty"`
}

// TenantRole describes how a tenant participates in consortium sharing.
type TenantRole int

const (
	RoleStandalone TenantRole = iota
	RoleCentral
	RoleMember
)

func (r TenantRole) String() string {
	switch r {
	case RoleCentral:
		return "central"
	case RoleMember:
		return "member"
	default:
		return "standalone"
	}
}
