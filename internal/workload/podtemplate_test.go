package workload

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"

	hwclient "github.com/headwind-sh/headwind/internal/client"
	"github.com/headwind-sh/headwind/internal/policy"
	"github.com/headwind-sh/headwind/internal/registry"
	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
)

func TestPodTemplateAdapter_Resolve(t *testing.T) {
	adapter := NewDeploymentAdapter()
	deploy := newDeployment("web", nil,
		corev1.Container{Name: "app", Image: "app:1.4.0"},
		corev1.Container{Name: "proxy", Image: "envoyproxy/envoy:v1.30.1"},
	)

	drifts, err := adapter.Resolve(deploy, policy.ResourcePolicy{}, []Candidate{
		{Repository: "app", Tag: "1.5.2", Source: registry.SourceWebhook},
		{Repository: "redis", Tag: "7.2.0", Source: registry.SourceWebhook},
	})
	require.NoError(t, err)
	require.Len(t, drifts, 1)

	d := drifts[0]
	assert.Equal(t, "app", d.Container)
	assert.Equal(t, "app", d.Repository)
	assert.Equal(t, "1.4.0", d.Current)
	assert.Equal(t, "1.5.2", d.Candidate)
	assert.Equal(t, "app:1.4.0", d.CurrentRef)
	assert.Equal(t, "app:1.5.2", d.CandidateRef)
	assert.Equal(t, registry.SourceWebhook, d.Source)
}

func TestPodTemplateAdapter_ResolveSkipsDigestPinnedContainer(t *testing.T) {
	adapter := NewDeploymentAdapter()
	deploy := newDeployment("web", nil,
		corev1.Container{Name: "app", Image: "app:1.4.0"},
		corev1.Container{Name: "sidecar", Image: "app@sha256:0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"},
	)

	drifts, err := adapter.Resolve(deploy, policy.ResourcePolicy{}, []Candidate{
		{Repository: "app", Tag: "1.5.2", Source: registry.SourcePolling},
	})
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, "app", drifts[0].Container)
	assert.Equal(t, "app:1.5.2", drifts[0].CandidateRef)
}

func TestPodTemplateAdapter_ApplyLeavesDigestPinnedContainer(t *testing.T) {
	pinned := "app@sha256:0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	c := newFakeClient(newDeployment("web", nil,
		corev1.Container{Name: "sidecar", Image: pinned},
		corev1.Container{Name: "app", Image: "app:1.4.0"},
	))
	key := types.NamespacedName{Namespace: "default", Name: "web"}

	err := NewDeploymentAdapter().Apply(context.Background(), c, key, Change{Repository: "app", NewRef: "app:1.5.2"})
	require.NoError(t, err)

	got := &appsv1.Deployment{}
	require.NoError(t, c.Get(context.Background(), key, got))
	assert.Equal(t, pinned, got.Spec.Template.Spec.Containers[0].Image)
	assert.Equal(t, "app:1.5.2", got.Spec.Template.Spec.Containers[1].Image)
}

func TestPodTemplateAdapter_ResolveHonoursImageFilter(t *testing.T) {
	adapter := NewStatefulSetAdapter()
	sts := &appsv1.StatefulSet{}
	sts.Spec.Template.Spec.Containers = []corev1.Container{{Name: "db", Image: "postgres:16.1"}}

	drifts, err := adapter.Resolve(sts, policy.ResourcePolicy{Images: []string{"redis"}}, []Candidate{{Repository: "postgres", Tag: "16.2"}})
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestPodTemplateAdapter_ResolveRejectsUntaggedImage(t *testing.T) {
	adapter := NewDaemonSetAdapter()
	ds := &appsv1.DaemonSet{}
	ds.Spec.Template.Spec.Containers = []corev1.Container{{Name: "agent", Image: "agent"}}

	_, err := adapter.Resolve(ds, policy.ResourcePolicy{}, []Candidate{{Repository: "agent", Tag: "2.0.0"}})
	assert.Error(t, err)
}

func TestPodTemplateAdapter_ResolveWithoutCandidates(t *testing.T) {
	adapter := NewDeploymentAdapter()
	drifts, err := adapter.Resolve(newDeployment("web", nil, corev1.Container{Name: "app", Image: "app"}), policy.ResourcePolicy{}, nil)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestPodTemplateAdapter_Apply(t *testing.T) {
	deploy := newDeployment("web", map[string]string{"keep": "me"},
		corev1.Container{Name: "app", Image: "app:1.4.0"},
		corev1.Container{Name: "sidecar", Image: "app-sidecar:1.4.0"},
	)
	c := newFakeClient(deploy)
	adapter := NewDeploymentAdapter()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := adapter.Apply(context.Background(), c, types.NamespacedName{Namespace: "default", Name: "web"}, Change{
		Repository: "app",
		NewRef:     "app:1.5.2",
		ApprovedBy: "alice",
		Time:       now,
	})
	require.NoError(t, err)

	got := &appsv1.Deployment{}
	require.NoError(t, c.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: "web"}, got))

	containers := got.Spec.Template.Spec.Containers
	require.Len(t, containers, 2)
	assert.Equal(t, "app:1.5.2", containers[0].Image)
	assert.Equal(t, "app-sidecar:1.4.0", containers[1].Image)
	assert.Equal(t, "2026-03-01T12:00:00Z (approved by alice)", got.Annotations[policy.LastUpdateAnnotation])
	assert.Equal(t, "me", got.Annotations["keep"])
}

func TestPodTemplateAdapter_ApplyErrors(t *testing.T) {
	adapter := NewDeploymentAdapter()
	c := newFakeClient(newDeployment("web", nil, corev1.Container{Name: "app", Image: "app:1.4.0"}))

	err := adapter.Apply(context.Background(), c, types.NamespacedName{Namespace: "default", Name: "missing"}, Change{NewRef: "app:1.5.0"})
	require.Error(t, err)
	assert.True(t, hwclient.IsNotFound(err))

	err = adapter.Apply(context.Background(), c, types.NamespacedName{Namespace: "default", Name: "web"}, Change{NewRef: "other:1.0.0"})
	require.Error(t, err)
	assert.False(t, hwclient.IsNotFound(err))
}

func TestPodTemplateAdapter_ListAndImages(t *testing.T) {
	adapter := NewDeploymentAdapter()
	c := newFakeClient(
		newDeployment("a", nil, corev1.Container{Name: "app", Image: "app:1.0.0"}),
		newDeployment("b", nil, corev1.Container{Name: "web", Image: "nginx:1.25"}, corev1.Container{Name: "log", Image: "fluentbit:3.0"}),
	)

	objs, err := adapter.List(context.Background(), c, "default")
	require.NoError(t, err)
	require.Len(t, objs, 2)

	var images []string
	for _, obj := range objs {
		for _, ci := range adapter.Images(obj) {
			images = append(images, ci.Image)
		}
	}
	assert.ElementsMatch(t, []string{"app:1.0.0", "nginx:1.25", "fluentbit:3.0"}, images)
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()

	assert.Len(t, reg.All(), 4)
	assert.Len(t, reg.ImageAdapters(), 3)

	a, err := reg.Get(KindHelmRelease)
	require.NoError(t, err)
	assert.Equal(t, headwindv1alpha1.UpdateTypeHelmChart, a.UpdateType())
	assert.Equal(t, DefaultHelmReleaseRequeue, a.DefaultRequeue())

	_, err = reg.Get("CronJob")
	assert.Error(t, err)

	ref := TargetRefFor(NewDeploymentAdapter(WithRequeue(time.Minute)), "prod", "web")
	assert.Equal(t, headwindv1alpha1.TargetRef{APIVersion: "apps/v1", Kind: "Deployment", Name: "web", Namespace: "prod"}, ref)
}

func TestWithRequeue(t *testing.T) {
	assert.Equal(t, time.Minute, NewDeploymentAdapter(WithRequeue(time.Minute)).DefaultRequeue())
	assert.Equal(t, DefaultPodTemplateRequeue, NewDeploymentAdapter(WithRequeue(0)).DefaultRequeue())
}
