// Package reconciler runs the control loops of headwind.
//
// # Architecture
//
// One Manager runs per resource kind. Each manager owns:
//
//   - a ChangeDetector turning the kind's watch stream into change events,
//     restarted with exponential backoff when the stream ends
//   - a deduplicating work queue with delayed requeues
//   - a pool of workers calling the kind's Reconciler
//
// Kinds share no mutable state besides the CandidateStore, which the
// Router fills from registry webhooks and the poller and the
// WorkloadReconcilers drain.
//
// # Reconcilers
//
// WorkloadReconciler is instantiated once per workload kind (Deployment,
// StatefulSet, DaemonSet, HelmRelease) through a workload.Adapter. For
// every drift it consults the policy engine and either creates an
// UpdateRequest or applies the update directly, subject to the workload's
// minimum update interval.
//
// UpdateRequestReconciler initializes, expires and applies UpdateRequests.
//
// # Usage
//
//	m := reconciler.NewManager(r, detector, reconciler.ManagerConfig{Metrics: rec})
//	go m.Run(ctx)
//	m.TriggerReconcile("web", "default", reconciler.SourceManual)
package reconciler
