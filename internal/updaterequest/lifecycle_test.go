package updaterequest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	hwclient "github.com/headwind-sh/headwind/internal/client"
	"github.com/headwind-sh/headwind/internal/policy"
	"github.com/headwind-sh/headwind/internal/testing/mock"
	"github.com/headwind-sh/headwind/internal/workload"
	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
)

var webTarget = headwindv1alpha1.TargetRef{APIVersion: "apps/v1", Kind: "Deployment", Name: "web", Namespace: "default"}

func newTestLifecycle(t *testing.T, objs ...client.Object) (*Lifecycle, client.Client, *mock.MockClock) {
	t.Helper()
	c := fake.NewClientBuilder().
		WithScheme(hwclient.NewScheme()).
		WithStatusSubresource(&headwindv1alpha1.UpdateRequest{}).
		WithObjects(objs...).
		Build()
	clock := mock.NewMockClock(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	return NewLifecycle(c, workload.DefaultRegistry(), WithClock(clock)), c, clock
}

func webProposal(version string, requireApproval bool) Proposal {
	return Proposal{
		Target:       webTarget,
		UpdateType:   headwindv1alpha1.UpdateTypeImage,
		Container:    "app",
		Repository:   "app",
		Version:      version,
		CurrentRef:   "app:1.4.0",
		CandidateRef: "app:" + version,
		Policy: policy.ResourcePolicy{
			Policy:          policy.PolicyMinor,
			RequireApproval: requireApproval,
			RollbackTimeout: 5 * time.Minute,
		},
	}
}

func webDeployment() *appsv1.Deployment {
	d := &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"}}
	d.Spec.Template.Spec.Containers = []corev1.Container{{Name: "app", Image: "app:1.4.0"}}
	return d
}

func TestUpsertPending_Creates(t *testing.T) {
	lc, _, clock := newTestLifecycle(t)

	ur, created, err := lc.UpsertPending(context.Background(), webProposal("1.5.0", true))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, Name(webTarget, "app", "1.5.0"), ur.Name)
	assert.Equal(t, headwindv1alpha1.PhasePending, ur.Status.Phase)
	assert.Equal(t, "app:1.5.0", ur.Spec.NewImage)
	assert.Equal(t, "app:1.4.0", ur.Spec.CurrentImage)
	assert.Equal(t, "minor", ur.Spec.Policy)
	assert.Equal(t, int64(300), ur.Spec.RollbackTimeoutSeconds)
	assert.Equal(t, "Update from app:1.4.0 to app:1.5.0", ur.Spec.Reason)
	require.NotNil(t, ur.Spec.ExpiresAt)
	assert.True(t, ur.Spec.ExpiresAt.Time.Equal(clock.Now().Add(DefaultExpiry)))

	found, err := lc.FindActive(context.Background(), webTarget, "app", "1.5.0")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, headwindv1alpha1.PhasePending, found.Status.Phase)
}

func TestUpsertPending_WithoutApprovalStartsApproved(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)

	ur, _, err := lc.UpsertPending(context.Background(), webProposal("1.5.0", false))
	require.NoError(t, err)
	assert.Equal(t, headwindv1alpha1.PhaseApproved, ur.Status.Phase)
}

func TestUpsertPending_Idempotent(t *testing.T) {
	lc, c, _ := newTestLifecycle(t)
	ctx := context.Background()

	first, created, err := lc.UpsertPending(ctx, webProposal("1.5.0", true))
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := lc.UpsertPending(ctx, webProposal("1.5.0", true))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.UID, second.UID)

	list := &headwindv1alpha1.UpdateRequestList{}
	require.NoError(t, c.List(ctx, list))
	assert.Len(t, list.Items, 1)
}

func TestUpsertPending_Supersession(t *testing.T) {
	tests := []struct {
		name        string
		phase       headwindv1alpha1.UpdatePhase
		wantCreated bool
		wantPhase   headwindv1alpha1.UpdatePhase
	}{
		{"completed is replaced", headwindv1alpha1.PhaseCompleted, true, headwindv1alpha1.PhasePending},
		{"failed is replaced", headwindv1alpha1.PhaseFailed, true, headwindv1alpha1.PhasePending},
		{"rejected stays", headwindv1alpha1.PhaseRejected, false, headwindv1alpha1.PhaseRejected},
		{"approved stays", headwindv1alpha1.PhaseApproved, false, headwindv1alpha1.PhaseApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := &headwindv1alpha1.UpdateRequest{
				ObjectMeta: metav1.ObjectMeta{Name: Name(webTarget, "app", "1.5.0"), Namespace: "default"},
				Spec:       headwindv1alpha1.UpdateRequestSpec{TargetRef: webTarget, NewImage: "app:1.5.0"},
				Status:     headwindv1alpha1.UpdateRequestStatus{Phase: tt.phase},
			}
			lc, _, _ := newTestLifecycle(t, existing)

			ur, created, err := lc.UpsertPending(context.Background(), webProposal("1.5.0", true))
			require.NoError(t, err)
			assert.Equal(t, tt.wantCreated, created)
			assert.Equal(t, tt.wantPhase, ur.Status.Phase)
		})
	}
}

func TestUpsertPending_RejectedDoesNotBlockOtherVersions(t *testing.T) {
	rejected := &headwindv1alpha1.UpdateRequest{
		ObjectMeta: metav1.ObjectMeta{Name: Name(webTarget, "app", "1.5.0"), Namespace: "default"},
		Status:     headwindv1alpha1.UpdateRequestStatus{Phase: headwindv1alpha1.PhaseRejected},
	}
	lc, _, _ := newTestLifecycle(t, rejected)

	ur, created, err := lc.UpsertPending(context.Background(), webProposal("1.6.0", true))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, headwindv1alpha1.PhasePending, ur.Status.Phase)

	active, err := lc.FindActive(context.Background(), webTarget, "app", "1.5.0")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestTransition_TerminalIsImmutable(t *testing.T) {
	ctx := context.Background()
	for _, terminal := range []headwindv1alpha1.UpdatePhase{
		headwindv1alpha1.PhaseRejected,
		headwindv1alpha1.PhaseCompleted,
		headwindv1alpha1.PhaseFailed,
	} {
		t.Run(string(terminal), func(t *testing.T) {
			ur := &headwindv1alpha1.UpdateRequest{
				ObjectMeta: metav1.ObjectMeta{Name: "web-1-5-0-00000000", Namespace: "default"},
				Status:     headwindv1alpha1.UpdateRequestStatus{Phase: terminal},
			}
			lc, c, _ := newTestLifecycle(t, ur)
			key := client.ObjectKeyFromObject(ur)

			for _, to := range []headwindv1alpha1.UpdatePhase{
				headwindv1alpha1.PhasePending,
				headwindv1alpha1.PhaseApproved,
				headwindv1alpha1.PhaseRejected,
				headwindv1alpha1.PhaseCompleted,
				headwindv1alpha1.PhaseFailed,
			} {
				if to == terminal {
					continue
				}
				_, err := lc.Transition(ctx, key, to)
				var conflict *StateConflictError
				require.True(t, errors.As(err, &conflict), "%s -> %s", terminal, to)
				assert.Equal(t, terminal, conflict.From)
				assert.Equal(t, to, conflict.To)
			}

			stored := &headwindv1alpha1.UpdateRequest{}
			require.NoError(t, c.Get(ctx, key, stored))
			assert.Equal(t, terminal, stored.Status.Phase)
		})
	}
}

func TestApproveAndReject(t *testing.T) {
	ctx := context.Background()
	lc, _, clock := newTestLifecycle(t)

	pending, _, err := lc.UpsertPending(ctx, webProposal("1.5.0", true))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	approved, err := lc.Approve(ctx, client.ObjectKeyFromObject(pending), "alice")
	require.NoError(t, err)
	assert.Equal(t, headwindv1alpha1.PhaseApproved, approved.Status.Phase)
	assert.Equal(t, "alice", approved.Status.ApprovedBy)
	require.NotNil(t, approved.Status.ApprovedAt)
	assert.True(t, approved.Status.ApprovedAt.Time.Equal(clock.Now()))

	// Approving twice is a no-op.
	again, err := lc.Approve(ctx, client.ObjectKeyFromObject(pending), "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Status.ApprovedBy)

	_, err = lc.Reject(ctx, client.ObjectKeyFromObject(pending), "bob", "too late")
	var conflict *StateConflictError
	assert.True(t, errors.As(err, &conflict))

	other, _, err := lc.UpsertPending(ctx, webProposal("1.6.0", true))
	require.NoError(t, err)
	rejected, err := lc.Reject(ctx, client.ObjectKeyFromObject(other), "bob", "not this one")
	require.NoError(t, err)
	assert.Equal(t, headwindv1alpha1.PhaseRejected, rejected.Status.Phase)
	assert.Equal(t, "bob", rejected.Status.RejectedBy)
	assert.Equal(t, "not this one", rejected.Status.Message)
}

func TestTransition_NotFound(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)
	_, err := lc.Transition(context.Background(), types.NamespacedName{Namespace: "default", Name: "missing"}, headwindv1alpha1.PhaseApproved)
	assert.True(t, hwclient.IsNotFound(err))
}

func TestExpired(t *testing.T) {
	ctx := context.Background()
	lc, _, clock := newTestLifecycle(t)

	ur, _, err := lc.UpsertPending(ctx, webProposal("1.5.0", true))
	require.NoError(t, err)
	assert.False(t, lc.Expired(ur))

	clock.Advance(DefaultExpiry)
	assert.True(t, lc.Expired(ur))

	ur.Status.Phase = headwindv1alpha1.PhaseApproved
	assert.False(t, lc.Expired(ur))
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	lc, c, _ := newTestLifecycle(t, webDeployment())

	ur, _, err := lc.UpsertPending(ctx, webProposal("1.5.0", true))
	require.NoError(t, err)
	ur, err = lc.Approve(ctx, client.ObjectKeyFromObject(ur), "alice")
	require.NoError(t, err)

	done, err := lc.Execute(ctx, ur)
	require.NoError(t, err)
	assert.Equal(t, headwindv1alpha1.PhaseCompleted, done.Status.Phase)

	deploy := &appsv1.Deployment{}
	require.NoError(t, c.Get(ctx, types.NamespacedName{Namespace: "default", Name: "web"}, deploy))
	assert.Equal(t, "app:1.5.0", deploy.Spec.Template.Spec.Containers[0].Image)
	assert.Contains(t, deploy.Annotations[policy.LastUpdateAnnotation], "(approved by alice)")
}

func TestExecute_MissingTargetFails(t *testing.T) {
	ctx := context.Background()
	lc, c, _ := newTestLifecycle(t)

	ur, _, err := lc.UpsertPending(ctx, webProposal("1.5.0", false))
	require.NoError(t, err)

	failed, err := lc.Execute(ctx, ur)
	require.Error(t, err)
	assert.Equal(t, headwindv1alpha1.PhaseFailed, failed.Status.Phase)
	assert.Contains(t, failed.Status.Message, "not found")

	stored := &headwindv1alpha1.UpdateRequest{}
	require.NoError(t, c.Get(ctx, client.ObjectKeyFromObject(ur), stored))
	assert.Equal(t, headwindv1alpha1.PhaseFailed, stored.Status.Phase)
}

func TestExecute_TransientPatchFailureStaysApproved(t *testing.T) {
	ctx := context.Background()
	unavailable := true
	c := fake.NewClientBuilder().
		WithScheme(hwclient.NewScheme()).
		WithStatusSubresource(&headwindv1alpha1.UpdateRequest{}).
		WithObjects(webDeployment()).
		WithInterceptorFuncs(interceptor.Funcs{
			Patch: func(ctx context.Context, c client.WithWatch, obj client.Object, patch client.Patch, opts ...client.PatchOption) error {
				if _, ok := obj.(*appsv1.Deployment); ok && unavailable {
					return apierrors.NewServiceUnavailable("apiserver down")
				}
				return c.Patch(ctx, obj, patch, opts...)
			},
		}).
		Build()
	lc := NewLifecycle(c, workload.DefaultRegistry())

	ur, _, err := lc.UpsertPending(ctx, webProposal("1.5.0", false))
	require.NoError(t, err)

	kept, err := lc.Execute(ctx, ur)
	require.Error(t, err)
	assert.True(t, hwclient.IsRetryable(err))
	assert.Equal(t, headwindv1alpha1.PhaseApproved, kept.Status.Phase)

	stored := &headwindv1alpha1.UpdateRequest{}
	require.NoError(t, c.Get(ctx, client.ObjectKeyFromObject(ur), stored))
	assert.Equal(t, headwindv1alpha1.PhaseApproved, stored.Status.Phase)
	assert.Empty(t, stored.Status.Message)

	// The next attempt succeeds once the API server is back.
	unavailable = false
	done, err := lc.Execute(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, headwindv1alpha1.PhaseCompleted, done.Status.Phase)
}

func TestExecute_NoMatchingContainerFails(t *testing.T) {
	ctx := context.Background()
	lc, _, _ := newTestLifecycle(t, webDeployment())

	proposal := webProposal("2.0.0", false)
	proposal.Repository = "other"
	proposal.CandidateRef = "other:2.0.0"
	ur, _, err := lc.UpsertPending(ctx, proposal)
	require.NoError(t, err)

	failed, err := lc.Execute(ctx, ur)
	require.Error(t, err)
	assert.False(t, hwclient.IsRetryable(err))
	assert.Equal(t, headwindv1alpha1.PhaseFailed, failed.Status.Phase)
	assert.Contains(t, failed.Status.Message, "no container runs an image of other")
}

func TestExecute_RequiresApproved(t *testing.T) {
	ctx := context.Background()
	lc, _, _ := newTestLifecycle(t, webDeployment())

	ur, _, err := lc.UpsertPending(ctx, webProposal("1.5.0", true))
	require.NoError(t, err)

	_, err = lc.Execute(ctx, ur)
	var conflict *StateConflictError
	assert.True(t, errors.As(err, &conflict))
}
