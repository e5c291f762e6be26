package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
)

func newFakeClient(objs ...headwindv1alpha1.UpdateRequest) *KubernetesClient {
	builder := fake.NewClientBuilder().WithScheme(NewScheme())
	for i := range objs {
		builder = builder.WithObjects(&objs[i])
	}
	return NewFromClient(builder.Build())
}

func TestListUpdateRequests_Sorted(t *testing.T) {
	c := newFakeClient(
		headwindv1alpha1.UpdateRequest{ObjectMeta: metav1.ObjectMeta{Name: "b", Namespace: "prod"}},
		headwindv1alpha1.UpdateRequest{ObjectMeta: metav1.ObjectMeta{Name: "a", Namespace: "prod"}},
		headwindv1alpha1.UpdateRequest{ObjectMeta: metav1.ObjectMeta{Name: "z", Namespace: "dev"}},
	)

	items, err := c.ListUpdateRequests(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "dev/z", items[0].Namespace+"/"+items[0].Name)
	assert.Equal(t, "prod/a", items[1].Namespace+"/"+items[1].Name)
	assert.Equal(t, "prod/b", items[2].Namespace+"/"+items[2].Name)

	items, err = c.ListUpdateRequests(context.Background(), "dev")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestGetUpdateRequest_NotFound(t *testing.T) {
	c := newFakeClient()

	_, err := c.GetUpdateRequest(context.Background(), "missing", "default")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))

	var storeErr *ResourceStoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "get", storeErr.Op)
	assert.Equal(t, ReasonNotFound, storeErr.Reason)
}

func TestCreateEvent(t *testing.T) {
	c := newFakeClient()
	deploy := &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default", UID: "uid-1"}}

	err := c.CreateEvent(context.Background(), deploy, "UpdateCompleted", "updated app to 1.5.2", corev1.EventTypeNormal)
	require.NoError(t, err)

	events := &corev1.EventList{}
	require.NoError(t, c.List(context.Background(), events))
	require.Len(t, events.Items, 1)

	ev := events.Items[0]
	assert.Equal(t, "Deployment", ev.InvolvedObject.Kind)
	assert.Equal(t, "apps/v1", ev.InvolvedObject.APIVersion)
	assert.Equal(t, "UpdateCompleted", ev.Reason)
	assert.Equal(t, EventComponent, ev.Source.Component)
}

func TestWrapStoreError(t *testing.T) {
	key := types.NamespacedName{Namespace: "default", Name: "web"}
	gr := schema.GroupResource{Group: "apps", Resource: "deployments"}

	assert.NoError(t, WrapStoreError("get", "Deployment", key, nil))

	conflict := WrapStoreError("patch", "Deployment", key, apierrors.NewConflict(gr, "web", errors.New("stale")))
	assert.True(t, IsConflict(conflict))
	assert.False(t, IsNotFound(conflict))

	exists := WrapStoreError("create", "Deployment", key, apierrors.NewAlreadyExists(gr, "web"))
	assert.True(t, IsAlreadyExists(exists))

	other := WrapStoreError("list", "Deployment", key, errors.New("connection refused"))
	var storeErr *ResourceStoreError
	require.True(t, errors.As(other, &storeErr))
	assert.Equal(t, ReasonOther, storeErr.Reason)
	assert.Contains(t, other.Error(), "connection refused")

	// Wrapping twice keeps the original classification.
	assert.Same(t, conflict, WrapStoreError("update", "Deployment", key, conflict))
}

func TestIsRetryable(t *testing.T) {
	key := types.NamespacedName{Namespace: "default", Name: "web"}
	gr := schema.GroupResource{Group: "apps", Resource: "deployments"}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unavailable", WrapStoreError("patch", "Deployment", key, apierrors.NewServiceUnavailable("apiserver down")), true},
		{"timeout", WrapStoreError("patch", "Deployment", key, apierrors.NewTimeoutError("slow", 1)), true},
		{"conflict", WrapStoreError("patch", "Deployment", key, apierrors.NewConflict(gr, "web", errors.New("stale"))), true},
		{"not found", WrapStoreError("get", "Deployment", key, apierrors.NewNotFound(gr, "web")), false},
		{"plain error", errors.New("no container runs an image of app"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
