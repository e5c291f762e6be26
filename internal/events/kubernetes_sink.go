package events

import (
	"context"

	corev1 "k8s.io/api/core/v1"

	"github.com/headwind-sh/headwind/internal/client"
)

// EventCreator creates core/v1 Events. *client.KubernetesClient implements it.
type EventCreator interface {
	CreateEventForRef(ctx context.Context, ref corev1.ObjectReference, reason, message, eventType string) error
}

var _ EventCreator = (*client.KubernetesClient)(nil)

// KubernetesEventSink records events on the workload they concern.
type KubernetesEventSink struct {
	creator EventCreator
}

// NewKubernetesEventSink creates a sink writing through creator.
func NewKubernetesEventSink(creator EventCreator) *KubernetesEventSink {
	return &KubernetesEventSink{creator: creator}
}

func (s *KubernetesEventSink) Name() string { return "kubernetes" }

func (s *KubernetesEventSink) Send(ctx context.Context, ev Event) error {
	eventType := corev1.EventTypeNormal
	if ev.Warning() {
		eventType = corev1.EventTypeWarning
	}
	return s.creator.CreateEventForRef(ctx, objectReference(ev.Deployment), string(ev.Type), ev.Message, eventType)
}

func objectReference(info DeploymentInfo) corev1.ObjectReference {
	apiVersion := "apps/v1"
	if info.ResourceKind == "HelmRelease" {
		apiVersion = client.HelmReleaseGVK.GroupVersion().String()
	}
	return corev1.ObjectReference{
		APIVersion: apiVersion,
		Kind:       info.ResourceKind,
		Name:       info.Name,
		Namespace:  info.Namespace,
	}
}
