package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/types"

	hwclient "github.com/headwind-sh/headwind/internal/client"
	"github.com/headwind-sh/headwind/internal/events"
	"github.com/headwind-sh/headwind/internal/metrics"
	"github.com/headwind-sh/headwind/internal/policy"
	"github.com/headwind-sh/headwind/internal/registry"
	"github.com/headwind-sh/headwind/internal/updaterequest"
	"github.com/headwind-sh/headwind/internal/workload"
	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
)

var webKey = types.NamespacedName{Namespace: "default", Name: "web"}

func webRequest() ReconcileRequest {
	return ReconcileRequest{Type: ResourceTypeDeployment, Name: "web", Namespace: "default", Attempt: 1}
}

func offer(e *env, repo, tag string) {
	e.candidates.Add(webKey, workload.Candidate{Repository: repo, Tag: tag, Source: registry.SourceWebhook})
}

func getDeployment(t *testing.T, e *env) *appsv1.Deployment {
	t.Helper()
	d := &appsv1.Deployment{}
	require.NoError(t, e.client.Get(context.Background(), webKey, d))
	return d
}

func TestWorkloadReconciler_ProposesUpdateForApproval(t *testing.T) {
	e := newEnv(deployment("web", map[string]string{policy.PolicyAnnotation: "minor"}, "nginx:1.25.0"))
	r := e.workloadReconciler(workload.KindDeployment)
	offer(e, "nginx", "1.26.0")

	result := r.Reconcile(context.Background(), webRequest())
	require.NoError(t, result.Error)
	assert.Equal(t, workload.DefaultPodTemplateRequeue, result.RequeueAfter)

	target := headwindv1alpha1.TargetRef{APIVersion: "apps/v1", Kind: "Deployment", Name: "web", Namespace: "default"}
	ur, err := e.lifecycle.FindActive(context.Background(), target, "nginx", "1.26.0")
	require.NoError(t, err)
	require.NotNil(t, ur, "expected an UpdateRequest")
	assert.Equal(t, headwindv1alpha1.PhasePending, ur.Status.Phase)
	assert.Equal(t, "nginx:1.25.0", ur.Spec.CurrentImage)
	assert.Equal(t, "nginx:1.26.0", ur.Spec.NewImage)
	assert.Equal(t, "app", ur.Spec.ContainerName)

	sent := e.notifier.received()
	require.Len(t, sent, 1)
	assert.Equal(t, events.TypeUpdateRequestCreated, sent[0].Type)
	assert.Equal(t, ur.Name, sent[0].UpdateRequestName)
	assert.True(t, sent[0].RequiresApproval)
	assert.Equal(t, "Deployment", sent[0].Deployment.ResourceKind)

	// Nothing is applied before approval.
	assert.Equal(t, "nginx:1.25.0", getDeployment(t, e).Spec.Template.Spec.Containers[0].Image)
	assert.Empty(t, e.candidates.Pending(webKey))

	// The same announcement again does not create a second request.
	offer(e, "nginx", "1.26.0")
	require.NoError(t, r.Reconcile(context.Background(), webRequest()).Error)
	assert.Len(t, e.notifier.received(), 1)
}

func TestWorkloadReconciler_ForceReappliesSameVersion(t *testing.T) {
	e := newEnv(deployment("web", map[string]string{
		policy.PolicyAnnotation:          "force",
		policy.RequireApprovalAnnotation: "false",
	}, "nginx:1.25.0"))
	r := e.workloadReconciler(workload.KindDeployment)
	offer(e, "nginx", "1.25.0")

	result := r.Reconcile(context.Background(), webRequest())
	require.NoError(t, result.Error)

	d := getDeployment(t, e)
	assert.Equal(t, "nginx:1.25.0", d.Spec.Template.Spec.Containers[0].Image)
	assert.Equal(t, "2026-04-01T09:00:00Z", d.Annotations[policy.LastUpdateAnnotation])

	sent := e.notifier.received()
	require.Len(t, sent, 1)
	assert.Equal(t, events.TypeUpdateCompleted, sent[0].Type)
	assert.False(t, sent[0].RequiresApproval)
	assert.Empty(t, e.candidates.Pending(webKey))
}

func TestWorkloadReconciler_AppliesDirectly(t *testing.T) {
	e := newEnv(deployment("web", map[string]string{
		policy.PolicyAnnotation:          "major",
		policy.RequireApprovalAnnotation: "false",
	}, "nginx:1.25.0", "envoy:1.30.0"))
	r := e.workloadReconciler(workload.KindDeployment)
	offer(e, "nginx", "2.0.0")

	require.NoError(t, r.Reconcile(context.Background(), webRequest()).Error)

	containers := getDeployment(t, e).Spec.Template.Spec.Containers
	assert.Equal(t, "nginx:2.0.0", containers[0].Image)
	assert.Equal(t, "envoy:1.30.0", containers[1].Image)

	list := &headwindv1alpha1.UpdateRequestList{}
	require.NoError(t, e.client.List(context.Background(), list))
	assert.Empty(t, list.Items, "direct updates create no UpdateRequest")
}

func TestWorkloadReconciler_MinUpdateIntervalHoldsBack(t *testing.T) {
	last := workload.FormatLastUpdate(testNow.Add(-4*time.Minute), "")
	e := newEnv(deployment("web", map[string]string{
		policy.PolicyAnnotation:            "major",
		policy.RequireApprovalAnnotation:   "false",
		policy.MinUpdateIntervalAnnotation: "600",
		policy.LastUpdateAnnotation:        last,
	}, "nginx:1.25.0"))
	r := e.workloadReconciler(workload.KindDeployment)
	offer(e, "nginx", "2.0.0")

	result := r.Reconcile(context.Background(), webRequest())
	require.NoError(t, result.Error)
	assert.Equal(t, 6*time.Minute, result.RequeueAfter)
	assert.Equal(t, metrics.ResultThrottled, result.Outcome)
	assert.Equal(t, "nginx:1.25.0", getDeployment(t, e).Spec.Template.Spec.Containers[0].Image)
	assert.Len(t, e.candidates.Pending(webKey), 1, "throttled candidate is kept")
	assert.Empty(t, e.notifier.received())

	e.clock.Advance(6 * time.Minute)

	result = r.Reconcile(context.Background(), webRequest())
	require.NoError(t, result.Error)
	assert.Equal(t, workload.DefaultPodTemplateRequeue, result.RequeueAfter)
	assert.Equal(t, "nginx:2.0.0", getDeployment(t, e).Spec.Template.Spec.Containers[0].Image)
}

func TestWorkloadReconciler_MinUpdateIntervalDoesNotGateProposals(t *testing.T) {
	e := newEnv(deployment("web", map[string]string{
		policy.PolicyAnnotation:            "major",
		policy.MinUpdateIntervalAnnotation: "3600",
		policy.LastUpdateAnnotation:        workload.FormatLastUpdate(testNow.Add(-time.Minute), "bob"),
	}, "nginx:1.25.0"))
	r := e.workloadReconciler(workload.KindDeployment)
	offer(e, "nginx", "2.0.0")

	result := r.Reconcile(context.Background(), webRequest())
	require.NoError(t, result.Error)
	assert.Empty(t, result.Outcome)
	require.Len(t, e.notifier.received(), 1)
	assert.Equal(t, events.TypeUpdateRequestCreated, e.notifier.received()[0].Type)
}

func TestWorkloadReconciler_SkipsWithoutPolicy(t *testing.T) {
	tests := []struct {
		name        string
		annotations map[string]string
	}{
		{name: "missing", annotations: nil},
		{name: "none", annotations: map[string]string{policy.PolicyAnnotation: "None"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(deployment("web", tt.annotations, "nginx:1.25.0"))
			r := e.workloadReconciler(workload.KindDeployment)
			offer(e, "nginx", "1.26.0")

			result := r.Reconcile(context.Background(), webRequest())
			require.NoError(t, result.Error)
			assert.Equal(t, workload.DefaultPodTemplateRequeue, result.RequeueAfter)
			assert.Equal(t, metrics.ResultSkipped, result.Outcome)
			assert.Empty(t, e.candidates.Pending(webKey))
			assert.Empty(t, e.notifier.received())
		})
	}
}

func TestWorkloadReconciler_UnknownPolicyIsConfigurationError(t *testing.T) {
	e := newEnv(deployment("web", map[string]string{policy.PolicyAnnotation: "sometimes"}, "nginx:1.25.0"))
	r := e.workloadReconciler(workload.KindDeployment)

	result := r.Reconcile(context.Background(), webRequest())
	require.Error(t, result.Error)

	var cfgErr *policy.ConfigurationError
	assert.True(t, errors.As(result.Error, &cfgErr))
	assert.Equal(t, policy.PolicyAnnotation, cfgErr.Annotation)
}

func TestWorkloadReconciler_AlreadySatisfied(t *testing.T) {
	e := newEnv(deployment("web", map[string]string{
		policy.PolicyAnnotation:          "all",
		policy.RequireApprovalAnnotation: "false",
	}, "nginx:1.26.0"))
	r := e.workloadReconciler(workload.KindDeployment)
	offer(e, "nginx", "1.26.0")

	require.NoError(t, r.Reconcile(context.Background(), webRequest()).Error)

	assert.Empty(t, getDeployment(t, e).Annotations[policy.LastUpdateAnnotation], "no patch for a satisfied version")
	assert.Empty(t, e.notifier.received())
	assert.Empty(t, e.candidates.Pending(webKey))
}

func TestWorkloadReconciler_PolicyRejection(t *testing.T) {
	e := newEnv(deployment("web", map[string]string{policy.PolicyAnnotation: "patch"}, "nginx:1.25.0"))
	rec := metrics.NewRecorder()
	adapter, _ := e.adapters.Get(workload.KindDeployment)
	r := NewWorkloadReconciler(adapter, e.client, policy.NewEngine(), e.lifecycle, e.candidates, WithMetrics(rec))
	offer(e, "nginx", "1.26.0")

	require.NoError(t, r.Reconcile(context.Background(), webRequest()).Error)

	list := &headwindv1alpha1.UpdateRequestList{}
	require.NoError(t, e.client.List(context.Background(), list))
	assert.Empty(t, list.Items)
	assert.Empty(t, e.candidates.Pending(webKey))
}

func TestWorkloadReconciler_StrictEngineReportsUnparseableVersion(t *testing.T) {
	e := newEnv(deployment("web", map[string]string{policy.PolicyAnnotation: "minor"}, "nginx:latest"))
	r := e.workloadReconciler(workload.KindDeployment, policy.WithStrictVersions())
	offer(e, "nginx", "1.26.0")

	result := r.Reconcile(context.Background(), webRequest())
	require.Error(t, result.Error)

	var policyErr *policy.PolicyError
	require.True(t, errors.As(result.Error, &policyErr))
	assert.Equal(t, policy.UnparseableVersion, policyErr.Kind)
	assert.Empty(t, e.candidates.Pending(webKey), "the verdict cannot change on retry")
}

func TestWorkloadReconciler_MissingWorkloadForgetsCandidates(t *testing.T) {
	e := newEnv()
	r := e.workloadReconciler(workload.KindDeployment)
	offer(e, "nginx", "1.26.0")

	result := r.Reconcile(context.Background(), webRequest())
	require.NoError(t, result.Error)
	assert.Zero(t, result.RequeueAfter)
	assert.Equal(t, 0, e.candidates.Len())
}

func TestWorkloadReconciler_HelmReleaseDirectUpdate(t *testing.T) {
	e := newEnv(helmRelease("podinfo", map[string]string{
		policy.PolicyAnnotation:          "minor",
		policy.RequireApprovalAnnotation: "false",
	}, "6.1.0", "6.0.0"))
	r := e.workloadReconciler(workload.KindHelmRelease)
	req := ReconcileRequest{Type: ResourceTypeHelmRelease, Name: "podinfo", Namespace: "default", Attempt: 1}

	result := r.Reconcile(context.Background(), req)
	require.NoError(t, result.Error)
	assert.Equal(t, workload.DefaultHelmReleaseRequeue, result.RequeueAfter)

	hr := hwclient.NewHelmRelease()
	require.NoError(t, e.client.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: "podinfo"}, hr))
	assert.Equal(t, "2026-04-01T09:00:00Z", hr.GetAnnotations()[policy.LastUpdateAnnotation])

	sent := e.notifier.received()
	require.Len(t, sent, 1)
	assert.Equal(t, events.TypeUpdateCompleted, sent[0].Type)
	assert.Equal(t, "6.0.0", sent[0].Deployment.CurrentImage)
	assert.Equal(t, "6.1.0", sent[0].Deployment.NewImage)
	assert.Equal(t, "HelmRelease", sent[0].Deployment.ResourceKind)

	// The drift stays until Flux deploys; it is not applied again.
	require.NoError(t, r.Reconcile(context.Background(), req).Error)
	assert.Len(t, e.notifier.received(), 1)
}

func TestWorkloadReconciler_HelmReleaseProposal(t *testing.T) {
	e := newEnv(helmRelease("podinfo", map[string]string{policy.PolicyAnnotation: "major"}, "7.0.0", "6.0.0"))
	r := e.workloadReconciler(workload.KindHelmRelease)
	req := ReconcileRequest{Type: ResourceTypeHelmRelease, Name: "podinfo", Namespace: "default", Attempt: 1}

	require.NoError(t, r.Reconcile(context.Background(), req).Error)

	list := &headwindv1alpha1.UpdateRequestList{}
	require.NoError(t, e.client.List(context.Background(), list))
	require.Len(t, list.Items, 1)
	ur := list.Items[0]
	assert.Equal(t, headwindv1alpha1.UpdateTypeHelmChart, ur.Spec.UpdateType)
	assert.Equal(t, "HelmRelease", ur.Spec.TargetRef.Kind)
	assert.Equal(t, "helm.toolkit.fluxcd.io/v2", ur.Spec.TargetRef.APIVersion)
	assert.Equal(t, "7.0.0", ur.Spec.NewImage)
	assert.Empty(t, ur.Spec.ContainerName)
}

func TestWorkloadReconciler_FullFlowThroughApproval(t *testing.T) {
	e := newEnv(deployment("web", map[string]string{policy.PolicyAnnotation: "minor"}, "nginx:1.25.0"))
	wr := e.workloadReconciler(workload.KindDeployment)
	urr := NewUpdateRequestReconciler(e.client, e.lifecycle, e.notifier, nil)
	offer(e, "nginx", "1.26.0")

	require.NoError(t, wr.Reconcile(context.Background(), webRequest()).Error)

	target := workload.TargetRefFor(mustAdapter(t, e, workload.KindDeployment), "default", "web")
	urKey := types.NamespacedName{Namespace: "default", Name: updaterequest.Name(target, "nginx", "1.26.0")}

	_, err := e.lifecycle.Approve(context.Background(), urKey, "alice")
	require.NoError(t, err)

	result := urr.Reconcile(context.Background(), ReconcileRequest{Type: ResourceTypeUpdateRequest, Name: urKey.Name, Namespace: urKey.Namespace})
	require.NoError(t, result.Error)

	d := getDeployment(t, e)
	assert.Equal(t, "nginx:1.26.0", d.Spec.Template.Spec.Containers[0].Image)
	assert.Equal(t, "2026-04-01T09:00:00Z (approved by alice)", d.Annotations[policy.LastUpdateAnnotation])

	ur := &headwindv1alpha1.UpdateRequest{}
	require.NoError(t, e.client.Get(context.Background(), urKey, ur))
	assert.Equal(t, headwindv1alpha1.PhaseCompleted, ur.Status.Phase)

	sent := e.notifier.received()
	require.Len(t, sent, 2)
	assert.Equal(t, events.TypeUpdateCompleted, sent[1].Type)
}

func mustAdapter(t *testing.T, e *env, kind workload.Kind) workload.Adapter {
	t.Helper()
	a, err := e.adapters.Get(kind)
	require.NoError(t, err)
	return a
}
