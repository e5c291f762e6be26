package reconciler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/types"

	"github.com/headwind-sh/headwind/internal/policy"
	"github.com/headwind-sh/headwind/internal/registry"
	"github.com/headwind-sh/headwind/internal/workload"
)

func newTestRouter(e *env) (*Router, *recordingTrigger) {
	trigger := &recordingTrigger{}
	r := NewRouter(e.client, e.adapters, e.candidates, "")
	for _, kind := range []workload.Kind{workload.KindDeployment, workload.KindStatefulSet, workload.KindDaemonSet} {
		r.Register(kind, trigger)
	}
	return r, trigger
}

func push(repo, tag string, source registry.Source) registry.PushEvent {
	return registry.PushEvent{Registry: registry.DefaultRegistry, Repository: repo, Tag: tag, Source: source}
}

func TestRouter_HandlePush(t *testing.T) {
	e := newEnv(
		deployment("web", map[string]string{policy.PolicyAnnotation: "minor"}, "nginx:1.25.0", "envoy:1.30.0"),
		deployment("api", map[string]string{policy.PolicyAnnotation: "patch"}, "docker.io/library/nginx:1.24.0"),
		deployment("cache", map[string]string{policy.PolicyAnnotation: "minor"}, "redis:7.2.0"),
		deployment("legacy", nil, "nginx:1.20.0"),
	)
	router, trigger := newTestRouter(e)

	matched, err := router.HandlePush(context.Background(), push("nginx", "1.26.0", registry.SourceWebhook))
	require.NoError(t, err)
	assert.Equal(t, 2, matched)
	assert.ElementsMatch(t, []string{"default/web", "default/api"}, trigger.triggered)

	pending := e.candidates.Pending(types.NamespacedName{Namespace: "default", Name: "web"})
	require.Len(t, pending, 1)
	assert.Equal(t, workload.Candidate{Repository: "nginx", Tag: "1.26.0", Source: registry.SourceWebhook}, pending[0])

	pending = e.candidates.Pending(types.NamespacedName{Namespace: "default", Name: "api"})
	require.Len(t, pending, 1)
	assert.Equal(t, "docker.io/library/nginx", pending[0].Repository)

	assert.Empty(t, e.candidates.Pending(types.NamespacedName{Namespace: "default", Name: "legacy"}))
}

func TestRouter_SourceGating(t *testing.T) {
	tests := []struct {
		eventSource string
		webhook     bool
		polling     bool
	}{
		{eventSource: "webhook", webhook: true, polling: false},
		{eventSource: "polling", webhook: false, polling: true},
		{eventSource: "both", webhook: true, polling: true},
		{eventSource: "none", webhook: false, polling: false},
	}

	for _, tt := range tests {
		t.Run(tt.eventSource, func(t *testing.T) {
			e := newEnv(deployment("web", map[string]string{
				policy.PolicyAnnotation:      "minor",
				policy.EventSourceAnnotation: tt.eventSource,
			}, "nginx:1.25.0"))
			router, _ := newTestRouter(e)

			matched, err := router.HandlePush(context.Background(), push("nginx", "1.26.0", registry.SourceWebhook))
			require.NoError(t, err)
			assert.Equal(t, tt.webhook, matched == 1, "webhook")

			matched, err = router.HandlePush(context.Background(), push("nginx", "1.26.0", registry.SourcePolling))
			require.NoError(t, err)
			assert.Equal(t, tt.polling, matched == 1, "polling")
		})
	}
}

func TestRouter_ImagesFilter(t *testing.T) {
	e := newEnv(deployment("web", map[string]string{
		policy.PolicyAnnotation: "minor",
		policy.ImagesAnnotation: "envoy",
	}, "nginx:1.25.0", "envoy:1.30.0"))
	router, trigger := newTestRouter(e)

	matched, err := router.HandlePush(context.Background(), push("nginx", "1.26.0", registry.SourceWebhook))
	require.NoError(t, err)
	assert.Zero(t, matched)

	matched, err = router.HandlePush(context.Background(), push("envoy", "1.31.0", registry.SourceWebhook))
	require.NoError(t, err)
	assert.Equal(t, 1, matched)
	assert.Equal(t, []string{"default/web"}, trigger.triggered)
}

func TestRouter_SkipsMalformedPolicyAndUnregisteredKinds(t *testing.T) {
	e := newEnv(deployment("web", map[string]string{policy.PolicyAnnotation: "sometimes"}, "nginx:1.25.0"))
	router, _ := newTestRouter(e)

	matched, err := router.HandlePush(context.Background(), push("nginx", "1.26.0", registry.SourceWebhook))
	require.NoError(t, err)
	assert.Zero(t, matched)

	e = newEnv(deployment("web", map[string]string{policy.PolicyAnnotation: "minor"}, "nginx:1.25.0"))
	unwired := NewRouter(e.client, e.adapters, e.candidates, "")
	matched, err = unwired.HandlePush(context.Background(), push("nginx", "1.26.0", registry.SourceWebhook))
	require.NoError(t, err)
	assert.Zero(t, matched)
}

func TestRouter_ThenReconcile(t *testing.T) {
	e := newEnv(deployment("web", map[string]string{
		policy.PolicyAnnotation:          "minor",
		policy.RequireApprovalAnnotation: "false",
	}, "nginx:1.25.0"))
	router, _ := newTestRouter(e)

	_, err := router.HandlePush(context.Background(), push("nginx", "1.25.4", registry.SourceWebhook))
	require.NoError(t, err)

	r := e.workloadReconciler(workload.KindDeployment)
	require.NoError(t, r.Reconcile(context.Background(), webRequest()).Error)

	assert.Equal(t, "nginx:1.25.4", getDeployment(t, e).Spec.Template.Spec.Containers[0].Image)
}
