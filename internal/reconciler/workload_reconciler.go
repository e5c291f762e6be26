package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	hwclient "github.com/headwind-sh/headwind/internal/client"
	"github.com/headwind-sh/headwind/internal/events"
	"github.com/headwind-sh/headwind/internal/metrics"
	"github.com/headwind-sh/headwind/internal/policy"
	"github.com/headwind-sh/headwind/internal/updaterequest"
	"github.com/headwind-sh/headwind/internal/workload"
	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
	"github.com/headwind-sh/headwind/pkg/logging"
)

// WorkloadReconciler evaluates announced versions for one workload kind and
// either proposes them as UpdateRequests or applies them directly.
type WorkloadReconciler struct {
	adapter    workload.Adapter
	client     client.Client
	engine     *policy.Engine
	lifecycle  *updaterequest.Lifecycle
	candidates *CandidateStore
	notifier   events.Notifier
	metrics    *metrics.Recorder
}

// WorkloadOption configures a WorkloadReconciler.
type WorkloadOption func(*WorkloadReconciler)

// WithNotifier sets where UpdateRequestCreated and UpdateCompleted events go.
func WithNotifier(n events.Notifier) WorkloadOption {
	return func(r *WorkloadReconciler) { r.notifier = n }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) WorkloadOption {
	return func(r *WorkloadReconciler) { r.metrics = m }
}

// NewWorkloadReconciler creates the reconciler of adapter's kind.
func NewWorkloadReconciler(adapter workload.Adapter, c client.Client, engine *policy.Engine, lifecycle *updaterequest.Lifecycle, candidates *CandidateStore, opts ...WorkloadOption) *WorkloadReconciler {
	r := &WorkloadReconciler{
		adapter:    adapter,
		client:     c,
		engine:     engine,
		lifecycle:  lifecycle,
		candidates: candidates,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetResourceType returns the adapter's kind.
func (r *WorkloadReconciler) GetResourceType() ResourceType {
	return ResourceType(r.adapter.Kind())
}

// Reconcile evaluates every drift of the workload named by req.
func (r *WorkloadReconciler) Reconcile(ctx context.Context, req ReconcileRequest) ReconcileResult {
	key := types.NamespacedName{Namespace: req.Namespace, Name: req.Name}
	kind := string(r.adapter.Kind())
	requeue := r.adapter.DefaultRequeue()

	obj := r.adapter.NewObject()
	if err := r.client.Get(ctx, key, obj); err != nil {
		err = hwclient.WrapStoreError("get", kind, key, err)
		if hwclient.IsNotFound(err) {
			logging.Debug("WorkloadReconciler", "%s %s is gone", kind, key)
			r.candidates.Forget(key)
			return ReconcileResult{Outcome: metrics.ResultSkipped}
		}
		return ReconcileResult{Error: err}
	}

	annotations := obj.GetAnnotations()
	if !policy.HasPolicy(annotations) {
		r.candidates.Forget(key)
		return ReconcileResult{RequeueAfter: requeue, Outcome: metrics.ResultSkipped}
	}

	p, err := policy.ParseResourcePolicy(annotations)
	if err != nil {
		return ReconcileResult{Error: fmt.Errorf("%s %s: %w", kind, key, err)}
	}
	if p.Policy == policy.PolicyNone {
		r.candidates.Forget(key)
		return ReconcileResult{RequeueAfter: requeue, Outcome: metrics.ResultSkipped}
	}

	drifts, err := r.adapter.Resolve(obj, p, r.candidates.Pending(key))
	if err != nil {
		return ReconcileResult{Error: fmt.Errorf("%s %s: %w", kind, key, err)}
	}

	var (
		errs     []error
		throttle time.Duration
	)
	for _, d := range drifts {
		wait, err := r.handleDrift(ctx, obj, key, p, d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if wait > 0 && (throttle == 0 || wait < throttle) {
			throttle = wait
		}
	}

	switch {
	case len(errs) > 0:
		return ReconcileResult{Error: errors.Join(errs...)}
	case throttle > 0:
		return ReconcileResult{RequeueAfter: throttle, Outcome: metrics.ResultThrottled}
	default:
		return ReconcileResult{RequeueAfter: requeue}
	}
}

// handleDrift acts on a single drift. A positive duration means the update
// was held back by the minimum update interval for that long.
func (r *WorkloadReconciler) handleDrift(ctx context.Context, obj client.Object, key types.NamespacedName, p policy.ResourcePolicy, d workload.Drift) (time.Duration, error) {
	kind := string(r.adapter.Kind())

	// Chart drift persists until the release is deployed again.
	chart := r.adapter.UpdateType() == headwindv1alpha1.UpdateTypeHelmChart
	if chart && r.candidates.Handled(key, d.Repository, d.Candidate) {
		return 0, nil
	}
	done := func() {
		if chart {
			r.candidates.MarkHandled(key, d.Repository, d.Candidate)
		} else {
			r.candidates.Consume(key, d.Repository, d.Candidate)
		}
	}

	if d.Current == d.Candidate && p.Policy != policy.PolicyForce {
		logging.Debug("WorkloadReconciler", "%s %s already runs %s", kind, key, d.CandidateRef)
		done()
		return 0, nil
	}

	ok, err := r.engine.ShouldUpdate(p, d.Current, d.Candidate)
	if err != nil {
		// Retrying cannot change the verdict for this candidate.
		done()
		return 0, fmt.Errorf("%s %s: %w", kind, key, err)
	}
	if !ok {
		logging.Debug("WorkloadReconciler", "Policy %s rejects %s -> %s for %s %s", p.Policy, d.Current, d.Candidate, kind, key)
		r.metrics.Update(kind, metrics.OutcomeRejected)
		done()
		return 0, nil
	}

	target := workload.TargetRefFor(r.adapter, key.Namespace, key.Name)

	if p.RequireApproval {
		ur, created, err := r.lifecycle.UpsertPending(ctx, updaterequest.Proposal{
			Target:       target,
			UpdateType:   r.adapter.UpdateType(),
			Container:    d.Container,
			Repository:   d.Repository,
			Version:      d.Candidate,
			CurrentRef:   d.CurrentRef,
			CandidateRef: d.CandidateRef,
			Policy:       p,
		})
		if err != nil {
			return 0, err
		}
		done()
		if created {
			r.metrics.Update(kind, metrics.OutcomeProposed)
			r.metrics.UpdateRequestCreated(kind)
			r.notify(events.TypeUpdateRequestCreated, key, d, p, ur.Name)
		}
		return 0, nil
	}

	if wait := r.throttled(obj, p); wait > 0 {
		logging.Info("WorkloadReconciler", "Holding back %s for %s %s for another %v", d.CandidateRef, kind, key, wait.Round(time.Second))
		return wait, nil
	}

	err = r.adapter.Apply(ctx, r.client, key, workload.Change{
		Container:  d.Container,
		Repository: d.Repository,
		NewRef:     d.CandidateRef,
		Time:       r.lifecycle.Now(),
	})
	if err != nil {
		r.metrics.Update(kind, metrics.OutcomeFailed)
		return 0, err
	}

	logging.Info("WorkloadReconciler", "Updated %s %s: %s -> %s", kind, key, d.CurrentRef, d.CandidateRef)
	done()
	r.metrics.Update(kind, metrics.OutcomeApplied)
	r.notify(events.TypeUpdateCompleted, key, d, p, "")
	return 0, nil
}

// throttled returns how much longer the minimum update interval holds
// back a direct update of obj.
func (r *WorkloadReconciler) throttled(obj client.Object, p policy.ResourcePolicy) time.Duration {
	if p.MinUpdateInterval <= 0 {
		return 0
	}
	last, ok := workload.ParseLastUpdate(obj.GetAnnotations()[policy.LastUpdateAnnotation])
	if !ok {
		return 0
	}
	elapsed := r.lifecycle.Now().Sub(last)
	switch {
	case elapsed >= p.MinUpdateInterval:
		return 0
	case elapsed < 0:
		// Stamped in the future; wait one full interval.
		return p.MinUpdateInterval
	default:
		return p.MinUpdateInterval - elapsed
	}
}

func (r *WorkloadReconciler) notify(t events.Type, key types.NamespacedName, d workload.Drift, p policy.ResourcePolicy, urName string) {
	if r.notifier == nil {
		return
	}
	ev := events.NewEvent(t, events.DeploymentInfo{
		Name:         key.Name,
		Namespace:    key.Namespace,
		CurrentImage: d.CurrentRef,
		NewImage:     d.CandidateRef,
		Container:    d.Container,
		ResourceKind: string(r.adapter.Kind()),
	})
	ev.Policy = string(p.Policy)
	ev.RequiresApproval = p.RequireApproval
	ev.UpdateRequestName = urName
	r.notifier.Notify(ev)
}
