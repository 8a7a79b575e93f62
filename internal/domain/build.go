package domain

import "time"

// BuildStatus represents the execution state of a build on the agent service.
type BuildStatus string

const (
	StatusQueued              BuildStatus = "queued"
	StatusRunning             BuildStatus = "running"
	StatusNeedsInput          BuildStatus = "needs_input"
	StatusCompleted           BuildStatus = "completed"
	StatusFailed              BuildStatus = "failed"
	StatusFailedResourceLimit BuildStatus = "failed_resource_limit"
	StatusCancelled           BuildStatus = "cancelled"
)

// IsTerminal reports whether the status can no longer change.
func (s BuildStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusFailedResourceLimit, StatusCancelled:
		return true
	}
	return false
}

// IsFailure reports whether the status is a terminal state other than completed.
func (s BuildStatus) IsFailure() bool {
	return s.IsTerminal() && s != StatusCompleted
}

// BuildID identifies a build on the agent service. It is opaque to the client.
type BuildID string

// BuildEvent is a single progress message emitted by the service for a build.
type BuildEvent struct {
	Time    time.Time
	Message string
}

// Build mirrors the server-reported state of one build. The client never
// constructs one locally; every value comes from a status response.
type Build struct {
	ID        BuildID
	UserID    string
	AgentID   string
	Status    BuildStatus
	Error     string
	Events    []BuildEvent
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Artifact identifies one generated file within a build's output tree.
type Artifact struct {
	Title        string
	Type         string
	Version      int
	RelativePath string
}
