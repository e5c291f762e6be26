package reconciler

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/headwind-sh/headwind/internal/policy"
	"github.com/headwind-sh/headwind/internal/registry"
	"github.com/headwind-sh/headwind/internal/workload"
	"github.com/headwind-sh/headwind/pkg/logging"
)

// Trigger queues a reconciliation of a named resource.
type Trigger interface {
	TriggerReconcile(name, namespace string, source ChangeSource)
}

// Router hands registry push events to the workloads running the pushed
// repository.
type Router struct {
	reader     client.Reader
	adapters   []workload.ImageAdapter
	candidates *CandidateStore
	namespace  string

	triggers map[workload.Kind]Trigger
}

// NewRouter creates a router over the image kinds of adapters. An empty
// namespace routes across all namespaces.
func NewRouter(reader client.Reader, adapters *workload.Registry, candidates *CandidateStore, namespace string) *Router {
	return &Router{
		reader:     reader,
		adapters:   adapters.ImageAdapters(),
		candidates: candidates,
		namespace:  namespace,
		triggers:   make(map[workload.Kind]Trigger),
	}
}

// Register sets the reconciliation trigger of kind. Kinds without a
// trigger are skipped.
func (r *Router) Register(kind workload.Kind, t Trigger) {
	r.triggers[kind] = t
}

// HandlePush records ev as a candidate for every workload that runs its
// repository, admits its source, and tracks the image. It returns the
// number of workloads that were triggered.
func (r *Router) HandlePush(ctx context.Context, ev registry.PushEvent) (int, error) {
	image := ev.Image()
	logging.Debug("Router", "Routing %s event for %s", ev.Source, ev.FullImage())

	matched := 0
	var errs []error
	for _, adapter := range r.adapters {
		trigger, ok := r.triggers[adapter.Kind()]
		if !ok {
			continue
		}

		objs, err := adapter.List(ctx, r.reader, r.namespace)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		for _, obj := range objs {
			p, ok := admits(obj, ev.Source)
			if !ok {
				continue
			}
			key := types.NamespacedName{Namespace: obj.GetNamespace(), Name: obj.GetName()}
			if r.offer(key, adapter.Images(obj), p, image, ev) {
				trigger.TriggerReconcile(key.Name, key.Namespace, SourceRegistry)
				matched++
			}
		}
	}

	if matched > 0 {
		logging.Info("Router", "%s event for %s matched %d workload(s)", ev.Source, ev.FullImage(), matched)
	}
	if len(errs) > 0 {
		return matched, fmt.Errorf("failed to route %s: %w", ev.FullImage(), errors.Join(errs...))
	}
	return matched, nil
}

// admits returns the policy of obj when it is active and accepts source.
func admits(obj client.Object, source registry.Source) (policy.ResourcePolicy, bool) {
	annotations := obj.GetAnnotations()
	if !policy.HasPolicy(annotations) {
		return policy.ResourcePolicy{}, false
	}
	p, err := policy.ParseResourcePolicy(annotations)
	if err != nil {
		logging.Debug("Router", "Skipping %s/%s: %v", obj.GetNamespace(), obj.GetName(), err)
		return p, false
	}
	if p.Policy == policy.PolicyNone {
		return p, false
	}

	if source == registry.SourcePolling {
		return p, p.EventSource.AcceptsPolling()
	}
	return p, p.EventSource.AcceptsWebhook()
}

// offer adds a candidate for each container running image.
func (r *Router) offer(key types.NamespacedName, containers []workload.ContainerImage, p policy.ResourcePolicy, image string, ev registry.PushEvent) bool {
	offered := false
	for _, c := range containers {
		if !registry.MatchesImage(c.Image, image) {
			continue
		}
		repo, _, err := registry.ParseImage(c.Image)
		if err != nil {
			logging.Debug("Router", "Skipping container %s of %s: %v", c.Container, key, err)
			continue
		}
		if !p.TracksImage(repo) {
			continue
		}

		r.candidates.Add(key, workload.Candidate{Repository: repo, Tag: ev.Tag, Source: ev.Source})
		offered = true
	}
	return offered
}
