package workload

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/headwind-sh/headwind/internal/policy"
	"github.com/headwind-sh/headwind/internal/registry"
	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
)

// Kind names a watched resource kind.
type Kind string

const (
	KindDeployment  Kind = "Deployment"
	KindStatefulSet Kind = "StatefulSet"
	KindDaemonSet   Kind = "DaemonSet"
	KindHelmRelease Kind = "HelmRelease"
)

// Candidate is a version offered for a repository by a webhook or the poller.
type Candidate struct {
	Repository string
	Tag        string
	Source     registry.Source
}

// Drift is one version change an object could make.
type Drift struct {
	// Container is empty for chart updates.
	Container string

	// Repository is the image repository, or the chart name.
	Repository string

	// Current and Candidate are the versions compared by the policy engine.
	Current   string
	Candidate string

	// CurrentRef and CandidateRef are the full references recorded on
	// UpdateRequests and notifications: images for pod templates, chart
	// versions for releases.
	CurrentRef   string
	CandidateRef string

	// Source is where the candidate came from; empty for chart drift.
	Source registry.Source
}

// Change is an update to apply to a single object.
type Change struct {
	Container  string
	Repository string

	// NewRef is the new image reference or chart version.
	NewRef string

	ApprovedBy string
	Time       time.Time
}

// Adapter is the per-kind capability set used by the generic reconciler.
type Adapter interface {
	Kind() Kind
	GroupVersionKind() schema.GroupVersionKind
	UpdateType() headwindv1alpha1.UpdateType

	// NewObject returns an empty object of the kind, ready for a Get.
	NewObject() client.Object

	// DefaultRequeue is how long to wait before re-evaluating an object.
	DefaultRequeue() time.Duration

	// Resolve returns the drifts obj exhibits given the candidates received
	// for it. Image kinds only report drift for pending candidates; chart
	// kinds derive drift from the object itself.
	Resolve(obj client.Object, p policy.ResourcePolicy, pending []Candidate) ([]Drift, error)

	// Apply patches the target to the change's new version and stamps the
	// last-update annotation.
	Apply(ctx context.Context, c client.Client, target types.NamespacedName, change Change) error
}

// ImageAdapter is implemented by kinds that own a pod template.
type ImageAdapter interface {
	Adapter

	// List returns the objects of this kind in namespace (all when empty).
	List(ctx context.Context, c client.Reader, namespace string) ([]client.Object, error)

	// Images returns the images of obj's pod template containers.
	Images(obj client.Object) []ContainerImage
}

// ContainerImage is a container of a pod template.
type ContainerImage struct {
	Container string
	Image     string
}

// Registry resolves adapters by kind.
type Registry struct {
	adapters map[Kind]Adapter
	order    []Kind
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Kind]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Kind()] = a
		r.order = append(r.order, a.Kind())
	}
	return r
}

// DefaultRegistry returns a registry with every supported kind.
func DefaultRegistry() *Registry {
	return NewRegistry(NewDeploymentAdapter(), NewStatefulSetAdapter(), NewDaemonSetAdapter(), NewHelmReleaseAdapter())
}

// Get returns the adapter for kind.
func (r *Registry) Get(kind Kind) (Adapter, error) {
	a, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported workload kind %q", kind)
	}
	return a, nil
}

// All returns every adapter in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.adapters[k])
	}
	return out
}

// ImageAdapters returns the adapters of pod template kinds.
func (r *Registry) ImageAdapters() []ImageAdapter {
	var out []ImageAdapter
	for _, a := range r.All() {
		if ia, ok := a.(ImageAdapter); ok {
			out = append(out, ia)
		}
	}
	return out
}

// TargetRefFor builds the UpdateRequest target reference of an object.
func TargetRefFor(a Adapter, namespace, name string) headwindv1alpha1.TargetRef {
	gvk := a.GroupVersionKind()
	return headwindv1alpha1.TargetRef{
		APIVersion: gvk.GroupVersion().String(),
		Kind:       gvk.Kind,
		Name:       name,
		Namespace:  namespace,
	}
}
