package workload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	hwclient "github.com/headwind-sh/headwind/internal/client"
	"github.com/headwind-sh/headwind/internal/policy"
	"github.com/headwind-sh/headwind/internal/registry"
	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
	"github.com/headwind-sh/headwind/pkg/logging"
)

// podTemplateAdapter implements ImageAdapter for any kind that embeds a pod
// template. T is the object pointer type and L its list pointer type.
type podTemplateAdapter[T client.Object, L client.ObjectList] struct {
	kind     Kind
	gvk      schema.GroupVersionKind
	requeue  time.Duration
	newObj   func() T
	newList  func() L
	items    func(L) []T
	template func(T) *corev1.PodTemplateSpec
}

// NewDeploymentAdapter returns the adapter for apps/v1 Deployments.
func NewDeploymentAdapter(opts ...AdapterOption) ImageAdapter {
	o := buildOptions(DefaultPodTemplateRequeue, opts)
	return &podTemplateAdapter[*appsv1.Deployment, *appsv1.DeploymentList]{
		kind:     KindDeployment,
		gvk:      appsv1.SchemeGroupVersion.WithKind(string(KindDeployment)),
		requeue:  o.requeue,
		newObj:   func() *appsv1.Deployment { return &appsv1.Deployment{} },
		newList:  func() *appsv1.DeploymentList { return &appsv1.DeploymentList{} },
		items:    func(l *appsv1.DeploymentList) []*appsv1.Deployment { return pointers(l.Items) },
		template: func(d *appsv1.Deployment) *corev1.PodTemplateSpec { return &d.Spec.Template },
	}
}

// NewStatefulSetAdapter returns the adapter for apps/v1 StatefulSets.
func NewStatefulSetAdapter(opts ...AdapterOption) ImageAdapter {
	o := buildOptions(DefaultPodTemplateRequeue, opts)
	return &podTemplateAdapter[*appsv1.StatefulSet, *appsv1.StatefulSetList]{
		kind:     KindStatefulSet,
		gvk:      appsv1.SchemeGroupVersion.WithKind(string(KindStatefulSet)),
		requeue:  o.requeue,
		newObj:   func() *appsv1.StatefulSet { return &appsv1.StatefulSet{} },
		newList:  func() *appsv1.StatefulSetList { return &appsv1.StatefulSetList{} },
		items:    func(l *appsv1.StatefulSetList) []*appsv1.StatefulSet { return pointers(l.Items) },
		template: func(s *appsv1.StatefulSet) *corev1.PodTemplateSpec { return &s.Spec.Template },
	}
}

// NewDaemonSetAdapter returns the adapter for apps/v1 DaemonSets.
func NewDaemonSetAdapter(opts ...AdapterOption) ImageAdapter {
	o := buildOptions(DefaultPodTemplateRequeue, opts)
	return &podTemplateAdapter[*appsv1.DaemonSet, *appsv1.DaemonSetList]{
		kind:     KindDaemonSet,
		gvk:      appsv1.SchemeGroupVersion.WithKind(string(KindDaemonSet)),
		requeue:  o.requeue,
		newObj:   func() *appsv1.DaemonSet { return &appsv1.DaemonSet{} },
		newList:  func() *appsv1.DaemonSetList { return &appsv1.DaemonSetList{} },
		items:    func(l *appsv1.DaemonSetList) []*appsv1.DaemonSet { return pointers(l.Items) },
		template: func(d *appsv1.DaemonSet) *corev1.PodTemplateSpec { return &d.Spec.Template },
	}
}

func pointers[E any](items []E) []*E {
	out := make([]*E, 0, len(items))
	for i := range items {
		out = append(out, &items[i])
	}
	return out
}

func (a *podTemplateAdapter[T, L]) Kind() Kind { return a.kind }

func (a *podTemplateAdapter[T, L]) GroupVersionKind() schema.GroupVersionKind { return a.gvk }

func (a *podTemplateAdapter[T, L]) UpdateType() headwindv1alpha1.UpdateType {
	return headwindv1alpha1.UpdateTypeImage
}

func (a *podTemplateAdapter[T, L]) NewObject() client.Object { return a.newObj() }

func (a *podTemplateAdapter[T, L]) DefaultRequeue() time.Duration { return a.requeue }

func (a *podTemplateAdapter[T, L]) List(ctx context.Context, c client.Reader, namespace string) ([]client.Object, error) {
	list := a.newList()
	if err := c.List(ctx, list, client.InNamespace(namespace)); err != nil {
		return nil, hwclient.WrapStoreError("list", string(a.kind), types.NamespacedName{Namespace: namespace}, err)
	}
	items := a.items(list)
	out := make([]client.Object, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out, nil
}

func (a *podTemplateAdapter[T, L]) Images(obj client.Object) []ContainerImage {
	t, ok := obj.(T)
	if !ok {
		return nil
	}
	containers := a.template(t).Spec.Containers
	out := make([]ContainerImage, 0, len(containers))
	for _, c := range containers {
		out = append(out, ContainerImage{Container: c.Name, Image: c.Image})
	}
	return out
}

func (a *podTemplateAdapter[T, L]) Resolve(obj client.Object, p policy.ResourcePolicy, pending []Candidate) ([]Drift, error) {
	if len(pending) == 0 {
		return nil, nil
	}
	t, ok := obj.(T)
	if !ok {
		return nil, fmt.Errorf("expected %s, got %T", a.kind, obj)
	}

	var drifts []Drift
	for _, c := range a.template(t).Spec.Containers {
		matching := candidatesFor(c.Image, pending)
		if len(matching) == 0 {
			continue
		}

		repo, tag, err := registry.ParseImage(c.Image)
		if errors.Is(err, registry.ErrPinnedByDigest) {
			logging.Debug("Workload", "Skipping container %s of %s/%s: %v", c.Name, obj.GetNamespace(), obj.GetName(), err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("container %s: %w", c.Name, err)
		}
		if !p.TracksImage(repo) {
			continue
		}

		for _, cand := range matching {
			drifts = append(drifts, Drift{
				Container:    c.Name,
				Repository:   repo,
				Current:      tag,
				Candidate:    cand.Tag,
				CurrentRef:   c.Image,
				CandidateRef: repo + ":" + cand.Tag,
				Source:       cand.Source,
			})
		}
	}
	return drifts, nil
}

// candidatesFor returns the pending candidates whose repository is the
// repository of image.
func candidatesFor(image string, pending []Candidate) []Candidate {
	var out []Candidate
	for _, cand := range pending {
		if registry.MatchesImage(image, cand.Repository) {
			out = append(out, cand)
		}
	}
	return out
}

func (a *podTemplateAdapter[T, L]) Apply(ctx context.Context, c client.Client, target types.NamespacedName, change Change) error {
	obj := a.newObj()
	if err := c.Get(ctx, target, obj); err != nil {
		return hwclient.WrapStoreError("get", string(a.kind), target, err)
	}

	container, err := locateContainer(a.template(obj).Spec.Containers, change)
	if err != nil {
		return fmt.Errorf("%s %s: %w", a.kind, target, err)
	}

	patch, err := imagePatch(container, change.NewRef, FormatLastUpdate(change.Time, change.ApprovedBy))
	if err != nil {
		return err
	}

	if err := c.Patch(ctx, obj, client.RawPatch(types.StrategicMergePatchType, patch), client.FieldOwner(FieldManager)); err != nil {
		return hwclient.WrapStoreError("patch", string(a.kind), target, err)
	}
	return nil
}

// locateContainer finds the container to update: the named container when
// it still runs a tagged image of the repository, otherwise the first such
// container. Digest-pinned containers are never updated.
func locateContainer(containers []corev1.Container, change Change) (string, error) {
	repo := change.Repository
	if repo == "" {
		r, _, err := registry.ParseImage(change.NewRef)
		if err != nil {
			return "", err
		}
		repo = r
	}

	if change.Container != "" {
		for _, c := range containers {
			if c.Name == change.Container && runsTagged(c.Image, repo) {
				return c.Name, nil
			}
		}
	}
	for _, c := range containers {
		if runsTagged(c.Image, repo) {
			return c.Name, nil
		}
	}
	return "", fmt.Errorf("no container runs an image of %s", repo)
}

func runsTagged(image, repo string) bool {
	if !registry.MatchesImage(image, repo) {
		return false
	}
	_, _, err := registry.ParseImage(image)
	return !errors.Is(err, registry.ErrPinnedByDigest)
}

func imagePatch(container, image, lastUpdate string) ([]byte, error) {
	patch := map[string]interface{}{
		"metadata": map[string]interface{}{
			"annotations": map[string]string{
				policy.LastUpdateAnnotation: lastUpdate,
			},
		},
		"spec": map[string]interface{}{
			"template": map[string]interface{}{
				"spec": map[string]interface{}{
					"containers": []map[string]string{
						{"name": container, "image": image},
					},
				},
			},
		},
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}
	return data, nil
}
