package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies what happened.
type Type string

const (
	// TypeUpdateRequestCreated is sent when an update waits for approval.
	TypeUpdateRequestCreated Type = "UpdateRequestCreated"

	// TypeUpdateCompleted is sent after an update was applied.
	TypeUpdateCompleted Type = "UpdateCompleted"

	// TypeUpdateFailed is sent when applying an approved update failed.
	TypeUpdateFailed Type = "UpdateFailed"
)

// DeploymentInfo describes the workload an event is about. Despite the
// name it covers every supported kind; ResourceKind tells them apart.
type DeploymentInfo struct {
	Name         string `json:"name"`
	Namespace    string `json:"namespace"`
	CurrentImage string `json:"currentImage"`
	NewImage     string `json:"newImage"`
	Container    string `json:"container,omitempty"`
	ResourceKind string `json:"resourceKind"`
}

// Event is a notification payload.
type Event struct {
	ID                string         `json:"id"`
	Type              Type           `json:"event"`
	Timestamp         time.Time      `json:"timestamp"`
	Deployment        DeploymentInfo `json:"deployment"`
	Policy            string         `json:"policy,omitempty"`
	RequiresApproval  bool           `json:"requiresApproval"`
	UpdateRequestName string         `json:"updateRequestName,omitempty"`
	Message           string         `json:"message,omitempty"`

	// Error is the failure reason of an UpdateFailed event.
	Error string `json:"error,omitempty"`
}

// NewEvent creates an event with a fresh ID, stamped with the current time.
func NewEvent(t Type, info DeploymentInfo) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		Timestamp:  time.Now().UTC(),
		Deployment: info,
	}
}

// Warning reports whether the event signals a problem.
func (e Event) Warning() bool {
	return e.Type == TypeUpdateFailed
}
