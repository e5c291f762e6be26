package reconciler

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	hwclient "github.com/headwind-sh/headwind/internal/client"
	"github.com/headwind-sh/headwind/internal/events"
	"github.com/headwind-sh/headwind/internal/metrics"
	"github.com/headwind-sh/headwind/internal/updaterequest"
	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
	"github.com/headwind-sh/headwind/pkg/logging"
)

// UpdateRequestReconciler drives UpdateRequests through their lifecycle:
// it initializes new requests, expires stale Pending ones and applies
// Approved ones.
type UpdateRequestReconciler struct {
	client    client.Client
	lifecycle *updaterequest.Lifecycle
	notifier  events.Notifier
	metrics   *metrics.Recorder
}

// NewUpdateRequestReconciler creates the UpdateRequest reconciler. notifier
// and rec may be nil.
func NewUpdateRequestReconciler(c client.Client, lifecycle *updaterequest.Lifecycle, notifier events.Notifier, rec *metrics.Recorder) *UpdateRequestReconciler {
	return &UpdateRequestReconciler{
		client:    c,
		lifecycle: lifecycle,
		notifier:  notifier,
		metrics:   rec,
	}
}

func (r *UpdateRequestReconciler) GetResourceType() ResourceType {
	return ResourceTypeUpdateRequest
}

func (r *UpdateRequestReconciler) Reconcile(ctx context.Context, req ReconcileRequest) ReconcileResult {
	key := types.NamespacedName{Namespace: req.Namespace, Name: req.Name}

	ur := &headwindv1alpha1.UpdateRequest{}
	if err := r.client.Get(ctx, key, ur); err != nil {
		err = hwclient.WrapStoreError("get", string(ResourceTypeUpdateRequest), key, err)
		if hwclient.IsNotFound(err) {
			return ReconcileResult{Outcome: metrics.ResultSkipped}
		}
		return ReconcileResult{Error: err}
	}

	if ur.Status.Phase == "" {
		updated, err := r.lifecycle.Transition(ctx, key, updaterequest.InitialPhase(ur.Spec.RequireApproval))
		if err != nil {
			return ReconcileResult{Error: err}
		}
		ur = updated
	}

	switch ur.Status.Phase {
	case headwindv1alpha1.PhasePending:
		return r.reconcilePending(ctx, ur)
	case headwindv1alpha1.PhaseApproved:
		return r.execute(ctx, ur)
	default:
		return ReconcileResult{Outcome: metrics.ResultSkipped}
	}
}

func (r *UpdateRequestReconciler) reconcilePending(ctx context.Context, ur *headwindv1alpha1.UpdateRequest) ReconcileResult {
	if !r.lifecycle.Expired(ur) {
		if ur.Spec.ExpiresAt == nil {
			return ReconcileResult{}
		}
		// Come back when the deadline passes.
		return ReconcileResult{RequeueAfter: ur.Spec.ExpiresAt.Sub(r.lifecycle.Now()) + time.Second}
	}

	updated, err := r.lifecycle.Transition(ctx, client.ObjectKeyFromObject(ur), headwindv1alpha1.PhaseFailed,
		updaterequest.WithMessage("expired"))
	if err != nil {
		return ReconcileResult{Error: err}
	}

	logging.Info("UpdateRequestReconciler", "%s/%s expired without a decision", ur.Namespace, ur.Name)
	r.metrics.Update(ur.Spec.TargetRef.Kind, metrics.OutcomeFailed)
	r.notify(events.TypeUpdateFailed, updated)
	return ReconcileResult{}
}

func (r *UpdateRequestReconciler) execute(ctx context.Context, ur *headwindv1alpha1.UpdateRequest) ReconcileResult {
	kind := ur.Spec.TargetRef.Kind

	updated, err := r.lifecycle.Execute(ctx, ur)
	if err != nil {
		if updated != nil && updated.Status.Phase == headwindv1alpha1.PhaseFailed {
			// The failure is recorded on the request; nothing to retry.
			logging.Warn("UpdateRequestReconciler", "Applying %s/%s failed: %v", ur.Namespace, ur.Name, err)
			r.metrics.Update(kind, metrics.OutcomeFailed)
			r.notify(events.TypeUpdateFailed, updated)
			return ReconcileResult{}
		}
		return ReconcileResult{Error: err}
	}

	r.metrics.Update(kind, metrics.OutcomeApplied)
	r.notify(events.TypeUpdateCompleted, updated)
	return ReconcileResult{}
}

func (r *UpdateRequestReconciler) notify(t events.Type, ur *headwindv1alpha1.UpdateRequest) {
	if r.notifier == nil {
		return
	}
	ev := events.NewEvent(t, events.DeploymentInfo{
		Name:         ur.Spec.TargetRef.Name,
		Namespace:    ur.Spec.TargetRef.Namespace,
		CurrentImage: ur.Spec.CurrentImage,
		NewImage:     ur.Spec.NewImage,
		Container:    ur.Spec.ContainerName,
		ResourceKind: ur.Spec.TargetRef.Kind,
	})
	ev.Policy = ur.Spec.Policy
	ev.RequiresApproval = ur.Spec.RequireApproval
	ev.UpdateRequestName = ur.Name
	if t == events.TypeUpdateFailed {
		ev.Error = ur.Status.Message
	}
	r.notifier.Notify(ev)
}
