package reconciler

import (
	"context"
	"time"

	"github.com/headwind-sh/headwind/internal/metrics"
	"github.com/headwind-sh/headwind/internal/workload"
)

// ResourceType represents the type of resource being reconciled.
type ResourceType string

const (
	ResourceTypeDeployment                 = ResourceType(workload.KindDeployment)
	ResourceTypeStatefulSet                = ResourceType(workload.KindStatefulSet)
	ResourceTypeDaemonSet                  = ResourceType(workload.KindDaemonSet)
	ResourceTypeHelmRelease                = ResourceType(workload.KindHelmRelease)
	ResourceTypeUpdateRequest ResourceType = "UpdateRequest"
)

// ChangeEvent represents a detected change in a resource.
type ChangeEvent struct {
	Type      ResourceType
	Name      string
	Namespace string
	Operation ChangeOperation
	Timestamp time.Time
	Source    ChangeSource
}

// ChangeOperation represents the type of change detected.
type ChangeOperation string

const (
	OperationCreate ChangeOperation = "Create"
	OperationUpdate ChangeOperation = "Update"
	OperationDelete ChangeOperation = "Delete"
)

// ChangeSource indicates where a change originated.
type ChangeSource string

const (
	// SourceKubernetes indicates the change came from a watch stream.
	SourceKubernetes ChangeSource = "Kubernetes"

	// SourceRegistry indicates a registry webhook or the poller announced a
	// new version for the resource.
	SourceRegistry ChangeSource = "Registry"

	// SourceManual indicates the change was triggered manually.
	SourceManual ChangeSource = "Manual"
)

// ReconcileResult represents the outcome of a reconciliation attempt.
type ReconcileResult struct {
	// RequeueAfter schedules the next reconciliation. Zero means the
	// resource is only reconciled again on its next change.
	RequeueAfter time.Duration

	// Error is any error that occurred during reconciliation. Errors are
	// retried after the manager's error backoff.
	Error error

	// Outcome overrides the result label recorded for a reconciliation
	// without error, for example metrics.ResultSkipped.
	Outcome string
}

// ReconcileRequest represents a request to reconcile a specific resource.
type ReconcileRequest struct {
	Type      ResourceType
	Name      string
	Namespace string

	// Attempt counts consecutive failed attempts plus one.
	Attempt int

	LastError error
}

// Reconciler is implemented by the per-kind reconcilers.
type Reconciler interface {
	// Reconcile processes a single reconciliation request. It must be
	// idempotent.
	Reconcile(ctx context.Context, req ReconcileRequest) ReconcileResult

	// GetResourceType returns the type of resource this reconciler handles.
	GetResourceType() ResourceType
}

// ChangeDetector turns a resource watch stream into change events.
type ChangeDetector interface {
	// Run watches until ctx is cancelled, sending events to changes. It
	// returns nil after cancellation and an error when the stream ends for
	// any other reason.
	Run(ctx context.Context, changes chan<- ChangeEvent) error

	// GetSource returns the source type this detector monitors.
	GetSource() ChangeSource
}

// ReconcileQueue represents a queue of resources awaiting reconciliation.
type ReconcileQueue interface {
	// Add adds a request to the queue. If the same resource is already
	// queued, the existing entry is updated.
	Add(req ReconcileRequest)

	// Get retrieves the next request from the queue. Blocks until a request
	// is available, the queue shuts down or the context is cancelled.
	Get(ctx context.Context) (ReconcileRequest, bool)

	// Done marks a request as processed.
	Done(req ReconcileRequest)

	Len() int
	Shutdown()
}

// ManagerConfig holds configuration for a Manager.
type ManagerConfig struct {
	// WorkerCount is the number of concurrent reconciliation workers.
	// Defaults to 2.
	WorkerCount int

	// ErrorBackoff is the fixed delay before a failed reconciliation is
	// retried. Defaults to 30 seconds. Failed resources are retried
	// indefinitely.
	ErrorBackoff time.Duration

	// ReconcileTimeout bounds a single reconciliation. Defaults to 30 seconds.
	ReconcileTimeout time.Duration

	// Stream configures restarts of the watch stream.
	Stream StreamConfig

	Metrics *metrics.Recorder
}

// ReconcileStatus represents the current status of reconciliation for a resource.
type ReconcileStatus struct {
	ResourceType      ResourceType
	Name              string
	Namespace         string
	LastReconcileTime *time.Time
	LastError         string
	RetryCount        int
	State             ReconcileState
}

// ReconcileState represents the state of a resource's reconciliation.
type ReconcileState string

const (
	StatePending     ReconcileState = "Pending"
	StateReconciling ReconcileState = "Reconciling"
	StateSynced      ReconcileState = "Synced"
	StateError       ReconcileState = "Error"
)
