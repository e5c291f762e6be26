package updaterequest

import (
	"context"
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	hwclient "github.com/headwind-sh/headwind/internal/client"
	"github.com/headwind-sh/headwind/internal/policy"
	"github.com/headwind-sh/headwind/internal/workload"
	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
	"github.com/headwind-sh/headwind/pkg/logging"
)

// DefaultExpiry is how long a Pending request waits for a decision.
const DefaultExpiry = 24 * time.Hour

const kindUpdateRequest = "UpdateRequest"

// Proposal describes an update for which a request should exist.
type Proposal struct {
	Target     headwindv1alpha1.TargetRef
	UpdateType headwindv1alpha1.UpdateType
	Container  string

	// Repository is the image repository or chart name.
	Repository string

	// Version is the candidate version; it takes part in the request name.
	Version string

	CurrentRef   string
	CandidateRef string

	Policy policy.ResourcePolicy
	Reason string
}

// Lifecycle creates, transitions and applies UpdateRequests.
type Lifecycle struct {
	client   client.Client
	adapters *workload.Registry
	clock    Clock
	expiry   time.Duration
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(l *Lifecycle) { l.clock = c }
}

// WithExpiry sets how long Pending requests live. Zero disables expiry.
func WithExpiry(d time.Duration) Option {
	return func(l *Lifecycle) { l.expiry = d }
}

// NewLifecycle creates a Lifecycle backed by c. Approved requests are
// applied through adapters.
func NewLifecycle(c client.Client, adapters *workload.Registry, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		client:   c,
		adapters: adapters,
		clock:    RealClock{},
		expiry:   DefaultExpiry,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now returns the lifecycle's notion of the current time.
func (l *Lifecycle) Now() time.Time {
	return l.clock.Now()
}

// FindActive returns the non-terminal request for (target, repository,
// version), or nil when there is none.
func (l *Lifecycle) FindActive(ctx context.Context, target headwindv1alpha1.TargetRef, repository, version string) (*headwindv1alpha1.UpdateRequest, error) {
	ur, err := l.get(ctx, types.NamespacedName{Namespace: target.Namespace, Name: Name(target, repository, version)})
	if err != nil {
		if hwclient.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if ur.Status.Phase.IsTerminal() {
		return nil, nil
	}
	return ur, nil
}

// UpsertPending makes sure a request exists for the proposal. It returns
// the request and whether it was created by this call.
//
// A non-terminal request is returned unchanged. A Completed or Failed one is
// replaced by a fresh request. A Rejected one is returned unchanged, so a
// rejected version is not proposed again.
func (l *Lifecycle) UpsertPending(ctx context.Context, p Proposal) (*headwindv1alpha1.UpdateRequest, bool, error) {
	key := types.NamespacedName{Namespace: p.Target.Namespace, Name: Name(p.Target, p.Repository, p.Version)}

	existing, err := l.get(ctx, key)
	switch {
	case err == nil:
		switch existing.Status.Phase {
		case headwindv1alpha1.PhaseCompleted, headwindv1alpha1.PhaseFailed:
			logging.Info("UpdateRequest", "Replacing %s request %s", existing.Status.Phase, key)
			if err := l.client.Delete(ctx, existing); err != nil && !hwclient.IsNotFound(err) {
				return nil, false, hwclient.WrapStoreError("delete", kindUpdateRequest, key, err)
			}
		default:
			logging.Debug("UpdateRequest", "Request %s already exists in phase %q", key, existing.Status.Phase)
			return existing, false, nil
		}
	case hwclient.IsNotFound(err):
	default:
		return nil, false, err
	}

	ur := l.build(key, p)
	if err := l.client.Create(ctx, ur); err != nil {
		if hwclient.IsAlreadyExists(err) {
			// Lost a race with another writer; theirs wins.
			existing, getErr := l.get(ctx, key)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, hwclient.WrapStoreError("create", kindUpdateRequest, key, err)
	}

	now := metav1.NewTime(l.clock.Now())
	ur.Status = headwindv1alpha1.UpdateRequestStatus{
		Phase:       InitialPhase(p.Policy.RequireApproval),
		LastUpdated: &now,
	}
	if err := l.client.Status().Update(ctx, ur); err != nil {
		return nil, false, hwclient.WrapStoreError("update status of", kindUpdateRequest, key, err)
	}

	logging.Info("UpdateRequest", "Created %s for %s %s/%s: %s -> %s",
		key.Name, p.Target.Kind, p.Target.Namespace, p.Target.Name, p.CurrentRef, p.CandidateRef)
	return ur, true, nil
}

func (l *Lifecycle) build(key types.NamespacedName, p Proposal) *headwindv1alpha1.UpdateRequest {
	spec := headwindv1alpha1.UpdateRequestSpec{
		TargetRef:              p.Target,
		UpdateType:             p.UpdateType,
		ContainerName:          p.Container,
		CurrentImage:           p.CurrentRef,
		NewImage:               p.CandidateRef,
		Policy:                 string(p.Policy.Policy),
		Pattern:                p.Policy.Pattern,
		Reason:                 p.Reason,
		RequireApproval:        p.Policy.RequireApproval,
		AutoRollback:           p.Policy.AutoRollback,
		RollbackTimeoutSeconds: int64(p.Policy.RollbackTimeout / time.Second),
		HealthCheckRetries:     int32(p.Policy.HealthCheckRetries),
	}
	if spec.Reason == "" {
		spec.Reason = fmt.Sprintf("Update from %s to %s", p.CurrentRef, p.CandidateRef)
	}
	if l.expiry > 0 {
		expires := metav1.NewTime(l.clock.Now().Add(l.expiry))
		spec.ExpiresAt = &expires
	}

	return &headwindv1alpha1.UpdateRequest{
		ObjectMeta: metav1.ObjectMeta{
			Name:      key.Name,
			Namespace: key.Namespace,
			Labels: map[string]string{
				LabelTargetKind: p.Target.Kind,
				LabelTargetName: truncateLabel(p.Target.Name),
			},
		},
		Spec: spec,
	}
}

// Labels set on every request for selection by target.
const (
	LabelTargetKind = "headwind.sh/target-kind"
	LabelTargetName = "headwind.sh/target-name"
)

func truncateLabel(v string) string {
	if len(v) > 63 {
		return v[:63]
	}
	return v
}

// TransitionOption records extra status detail with a transition.
type TransitionOption func(*headwindv1alpha1.UpdateRequestStatus, time.Time)

// WithMessage sets the status message.
func WithMessage(msg string) TransitionOption {
	return func(s *headwindv1alpha1.UpdateRequestStatus, _ time.Time) { s.Message = msg }
}

// ApprovedBy records who approved the request.
func ApprovedBy(actor string) TransitionOption {
	return func(s *headwindv1alpha1.UpdateRequestStatus, now time.Time) {
		t := metav1.NewTime(now)
		s.ApprovedBy = actor
		s.ApprovedAt = &t
	}
}

// RejectedBy records who rejected the request.
func RejectedBy(actor string) TransitionOption {
	return func(s *headwindv1alpha1.UpdateRequestStatus, _ time.Time) { s.RejectedBy = actor }
}

// Transition moves the request named by key to phase to. Moving to the
// current phase is a no-op. Illegal moves return a *StateConflictError and
// leave the stored request untouched. A concurrent status change makes the
// write fail with a conflict.
func (l *Lifecycle) Transition(ctx context.Context, key types.NamespacedName, to headwindv1alpha1.UpdatePhase, opts ...TransitionOption) (*headwindv1alpha1.UpdateRequest, error) {
	ur, err := l.get(ctx, key)
	if err != nil {
		return nil, err
	}
	return l.transition(ctx, ur, to, opts...)
}

func (l *Lifecycle) transition(ctx context.Context, ur *headwindv1alpha1.UpdateRequest, to headwindv1alpha1.UpdatePhase, opts ...TransitionOption) (*headwindv1alpha1.UpdateRequest, error) {
	from := ur.Status.Phase
	if from == to {
		return ur, nil
	}
	if !CanTransition(from, to) {
		return ur, &StateConflictError{Name: ur.Namespace + "/" + ur.Name, From: from, To: to}
	}

	original := ur.DeepCopy()
	now := l.clock.Now()
	ts := metav1.NewTime(now)
	ur.Status.Phase = to
	ur.Status.LastUpdated = &ts
	for _, opt := range opts {
		opt(&ur.Status, now)
	}

	patch := client.MergeFromWithOptions(original, client.MergeFromWithOptimisticLock{})
	if err := l.client.Status().Patch(ctx, ur, patch); err != nil {
		return original, hwclient.WrapStoreError("patch status of", kindUpdateRequest, client.ObjectKeyFromObject(ur), err)
	}

	logging.Info("UpdateRequest", "%s/%s moved from %q to %s", ur.Namespace, ur.Name, from, to)
	return ur, nil
}

// Approve moves a Pending request to Approved.
func (l *Lifecycle) Approve(ctx context.Context, key types.NamespacedName, actor string) (*headwindv1alpha1.UpdateRequest, error) {
	return l.Transition(ctx, key, headwindv1alpha1.PhaseApproved, ApprovedBy(actor))
}

// Reject moves a Pending request to Rejected.
func (l *Lifecycle) Reject(ctx context.Context, key types.NamespacedName, actor, reason string) (*headwindv1alpha1.UpdateRequest, error) {
	opts := []TransitionOption{RejectedBy(actor)}
	if reason != "" {
		opts = append(opts, WithMessage(reason))
	}
	return l.Transition(ctx, key, headwindv1alpha1.PhaseRejected, opts...)
}

// Expired reports whether ur is Pending past its deadline.
func (l *Lifecycle) Expired(ur *headwindv1alpha1.UpdateRequest) bool {
	return ur.Status.Phase == headwindv1alpha1.PhasePending &&
		ur.Spec.ExpiresAt != nil &&
		!l.clock.Now().Before(ur.Spec.ExpiresAt.Time)
}

// Apply patches the target of ur to its new version. It does not change
// the request's phase.
func (l *Lifecycle) Apply(ctx context.Context, ur *headwindv1alpha1.UpdateRequest) error {
	adapter, err := l.adapters.Get(workload.Kind(ur.Spec.TargetRef.Kind))
	if err != nil {
		return err
	}

	target := types.NamespacedName{Namespace: ur.Spec.TargetRef.Namespace, Name: ur.Spec.TargetRef.Name}
	if target.Namespace == "" {
		target.Namespace = ur.Namespace
	}

	return adapter.Apply(ctx, l.client, target, workload.Change{
		Container:  ur.Spec.ContainerName,
		NewRef:     ur.Spec.NewImage,
		ApprovedBy: ur.Status.ApprovedBy,
		Time:       l.clock.Now(),
	})
}

// Execute applies an Approved request and records the outcome: Completed
// on success, Failed with the error message when the target is gone or the
// change cannot be applied. Retryable store errors leave the request
// Approved so the caller can try again. The returned error is the apply
// error, if any.
func (l *Lifecycle) Execute(ctx context.Context, ur *headwindv1alpha1.UpdateRequest) (*headwindv1alpha1.UpdateRequest, error) {
	if ur.Status.Phase != headwindv1alpha1.PhaseApproved {
		return ur, &StateConflictError{Name: ur.Namespace + "/" + ur.Name, From: ur.Status.Phase, To: headwindv1alpha1.PhaseCompleted}
	}

	applyErr := l.Apply(ctx, ur)
	if applyErr != nil && hwclient.IsRetryable(applyErr) {
		logging.Warn("UpdateRequest", "Applying %s/%s failed, will retry: %v", ur.Namespace, ur.Name, applyErr)
		return ur, applyErr
	}
	if applyErr != nil {
		msg := applyErr.Error()
		if hwclient.IsNotFound(applyErr) {
			msg = fmt.Sprintf("target %s %s/%s not found", ur.Spec.TargetRef.Kind, ur.Spec.TargetRef.Namespace, ur.Spec.TargetRef.Name)
		}
		updated, err := l.transition(ctx, ur, headwindv1alpha1.PhaseFailed, WithMessage(msg))
		if err != nil {
			return updated, err
		}
		return updated, applyErr
	}

	return l.transition(ctx, ur, headwindv1alpha1.PhaseCompleted, WithMessage("Applied "+ur.Spec.NewImage))
}

func (l *Lifecycle) get(ctx context.Context, key types.NamespacedName) (*headwindv1alpha1.UpdateRequest, error) {
	ur := &headwindv1alpha1.UpdateRequest{}
	if err := l.client.Get(ctx, key, ur); err != nil {
		return nil, hwclient.WrapStoreError("get", kindUpdateRequest, key, err)
	}
	return ur, nil
}
