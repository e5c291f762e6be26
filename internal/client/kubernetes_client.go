package client

import (
	"context"
	"fmt"
	"sort"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
)

// EventComponent is the source component recorded on Kubernetes Events.
const EventComponent = "headwind"

// NewScheme returns a scheme with the built-in Kubernetes types, the
// headwind CRDs and the unstructured HelmRelease kind registered.
func NewScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(headwindv1alpha1.AddToScheme(scheme))
	AddHelmReleaseToScheme(scheme)
	return scheme
}

// KubernetesClient wraps a controller-runtime client with the typed helpers
// used by the controllers and the CLI.
type KubernetesClient struct {
	client.Client
	scheme *runtime.Scheme
}

// NewKubernetesClient creates a client for the given REST configuration.
func NewKubernetesClient(config *rest.Config) (*KubernetesClient, error) {
	scheme := NewScheme()

	k8sClient, err := client.New(config, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	return &KubernetesClient{Client: k8sClient, scheme: scheme}, nil
}

// NewFromClient wraps an existing client, for example a fake client in tests.
func NewFromClient(c client.Client) *KubernetesClient {
	return &KubernetesClient{Client: c, scheme: c.Scheme()}
}

// GetRestConfig returns the REST config using the standard kubeconfig and
// in-cluster discovery rules.
func GetRestConfig() (*rest.Config, error) {
	return ctrl.GetConfig()
}

// Scheme returns the runtime scheme.
func (k *KubernetesClient) Scheme() *runtime.Scheme {
	return k.scheme
}

// GetUpdateRequest retrieves a specific UpdateRequest.
func (k *KubernetesClient) GetUpdateRequest(ctx context.Context, name, namespace string) (*headwindv1alpha1.UpdateRequest, error) {
	ur := &headwindv1alpha1.UpdateRequest{}
	key := types.NamespacedName{Name: name, Namespace: namespace}

	if err := k.Get(ctx, key, ur); err != nil {
		return nil, WrapStoreError("get", "UpdateRequest", key, err)
	}
	return ur, nil
}

// ListUpdateRequests lists UpdateRequests in a namespace, or in all
// namespaces when namespace is empty, ordered by namespace and name.
func (k *KubernetesClient) ListUpdateRequests(ctx context.Context, namespace string) ([]headwindv1alpha1.UpdateRequest, error) {
	list := &headwindv1alpha1.UpdateRequestList{}

	if err := k.List(ctx, list, client.InNamespace(namespace)); err != nil {
		return nil, WrapStoreError("list", "UpdateRequest", types.NamespacedName{Namespace: namespace}, err)
	}

	items := list.Items
	sort.Slice(items, func(i, j int) bool {
		if items[i].Namespace != items[j].Namespace {
			return items[i].Namespace < items[j].Namespace
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

// CreateEvent creates a Kubernetes Event attached to obj.
func (k *KubernetesClient) CreateEvent(ctx context.Context, obj client.Object, reason, message, eventType string) error {
	gvk, err := k.GroupVersionKindFor(obj)
	if err != nil {
		return fmt.Errorf("failed to get GroupVersionKind for object: %w", err)
	}

	now := metav1.NewTime(time.Now())
	event := &corev1.Event{
		ObjectMeta: metav1.ObjectMeta{
			GenerateName: obj.GetName() + "-",
			Namespace:    obj.GetNamespace(),
		},
		InvolvedObject: corev1.ObjectReference{
			APIVersion: gvk.GroupVersion().String(),
			Kind:       gvk.Kind,
			Name:       obj.GetName(),
			Namespace:  obj.GetNamespace(),
			UID:        obj.GetUID(),
		},
		Reason:         reason,
		Message:        message,
		Type:           eventType,
		Source:         corev1.EventSource{Component: EventComponent},
		FirstTimestamp: now,
		LastTimestamp:  now,
		Count:          1,
	}

	if err := k.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create Kubernetes Event: %w", err)
	}
	return nil
}

// CreateEventForRef creates a Kubernetes Event for an object known only by
// its reference, such as the target of an UpdateRequest.
func (k *KubernetesClient) CreateEventForRef(ctx context.Context, ref corev1.ObjectReference, reason, message, eventType string) error {
	now := metav1.NewTime(time.Now())
	event := &corev1.Event{
		ObjectMeta: metav1.ObjectMeta{
			GenerateName: ref.Name + "-",
			Namespace:    ref.Namespace,
		},
		InvolvedObject: ref,
		Reason:         reason,
		Message:        message,
		Type:           eventType,
		Source:         corev1.EventSource{Component: EventComponent},
		FirstTimestamp: now,
		LastTimestamp:  now,
		Count:          1,
	}

	if err := k.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create Kubernetes Event for %s/%s: %w", ref.Namespace, ref.Name, err)
	}
	return nil
}
