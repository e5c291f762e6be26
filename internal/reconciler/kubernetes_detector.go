package reconciler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/rest"
	toolscache "k8s.io/client-go/tools/cache"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/headwind-sh/headwind/pkg/logging"
)

// KubernetesDetector implements ChangeDetector for a single resource kind
// using a controller-runtime informer cache.
//
// Every Run builds a fresh cache, so a failed watch is recovered by simply
// calling Run again.
type KubernetesDetector struct {
	restConfig *rest.Config
	scheme     *runtime.Scheme

	// namespace is the namespace to watch; empty watches all namespaces.
	namespace string

	resourceType ResourceType

	// prototype is an empty object of the watched kind.
	prototype client.Object

	// ignoreStatusOnly drops updates that change neither the generation
	// nor the annotations.
	ignoreStatusOnly bool
}

// DetectorOption configures a KubernetesDetector.
type DetectorOption func(*KubernetesDetector)

// IgnoreStatusUpdates drops update events that only touch status.
func IgnoreStatusUpdates() DetectorOption {
	return func(d *KubernetesDetector) { d.ignoreStatusOnly = true }
}

// NewKubernetesDetector creates a detector watching objects like prototype.
func NewKubernetesDetector(restConfig *rest.Config, scheme *runtime.Scheme, namespace string, resourceType ResourceType, prototype client.Object, opts ...DetectorOption) *KubernetesDetector {
	d := &KubernetesDetector{
		restConfig:   restConfig,
		scheme:       scheme,
		namespace:    namespace,
		resourceType: resourceType,
		prototype:    prototype,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run watches the kind until ctx is cancelled or the cache fails.
func (d *KubernetesDetector) Run(ctx context.Context, changes chan<- ChangeEvent) error {
	cacheOpts := cache.Options{Scheme: d.scheme}
	if d.namespace != "" {
		cacheOpts.DefaultNamespaces = map[string]cache.Config{
			d.namespace: {},
		}
	}

	c, err := cache.New(d.restConfig, cacheOpts)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	informer, err := c.GetInformer(ctx, d.prototype.DeepCopyObject().(client.Object))
	if err != nil {
		return fmt.Errorf("failed to get informer for %s: %w", d.resourceType, err)
	}
	if _, err := informer.AddEventHandler(d.eventHandler(ctx, changes)); err != nil {
		return fmt.Errorf("failed to add event handler for %s: %w", d.resourceType, err)
	}

	cacheErr := make(chan error, 1)
	go func() {
		cacheErr <- c.Start(ctx)
	}()

	if !c.WaitForCacheSync(ctx) {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to sync %s cache", d.resourceType)
	}

	logging.Info("KubernetesDetector", "Watching %s in %s", d.resourceType, d.namespaceDisplay())

	select {
	case <-ctx.Done():
		return nil
	case err := <-cacheErr:
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("cache stopped unexpectedly")
		}
		return fmt.Errorf("%s watch: %w", d.resourceType, err)
	}
}

// GetSource returns the change source type.
func (d *KubernetesDetector) GetSource() ChangeSource {
	return SourceKubernetes
}

func (d *KubernetesDetector) eventHandler(ctx context.Context, changes chan<- ChangeEvent) toolscache.ResourceEventHandler {
	return toolscache.ResourceEventHandlerFuncs{
		AddFunc: func(obj interface{}) {
			d.handle(ctx, changes, OperationCreate, obj)
		},
		UpdateFunc: func(oldObj, newObj interface{}) {
			if d.ignoreStatusOnly && statusOnly(oldObj, newObj) {
				return
			}
			d.handle(ctx, changes, OperationUpdate, newObj)
		},
		DeleteFunc: func(obj interface{}) {
			// Objects deleted while the watch was down arrive wrapped.
			if deletedState, ok := obj.(toolscache.DeletedFinalStateUnknown); ok {
				obj = deletedState.Obj
			}
			d.handle(ctx, changes, OperationDelete, obj)
		},
	}
}

func (d *KubernetesDetector) handle(ctx context.Context, changes chan<- ChangeEvent, op ChangeOperation, obj interface{}) {
	meta, ok := extractObjectMeta(obj)
	if !ok {
		logging.Warn("KubernetesDetector", "Failed to extract metadata from %s event", op)
		return
	}

	sendChangeEvent(ctx, changes, ChangeEvent{
		Type:      d.resourceType,
		Name:      meta.name,
		Namespace: meta.namespace,
		Operation: op,
		Timestamp: time.Now(),
		Source:    SourceKubernetes,
	})
}

// statusOnly reports whether an update left generation and annotations alone.
func statusOnly(oldObj, newObj interface{}) bool {
	o, ok1 := oldObj.(client.Object)
	n, ok2 := newObj.(client.Object)
	if !ok1 || !ok2 {
		return false
	}
	return o.GetGeneration() == n.GetGeneration() && maps.Equal(o.GetAnnotations(), n.GetAnnotations())
}

type objectMeta struct {
	name      string
	namespace string
}

func extractObjectMeta(obj interface{}) (objectMeta, bool) {
	if clientObj, ok := obj.(client.Object); ok {
		return objectMeta{
			name:      clientObj.GetName(),
			namespace: clientObj.GetNamespace(),
		}, true
	}
	return objectMeta{}, false
}

// sendChangeEvent blocks until the manager takes the event or ctx is done.
// Pending and Approved requests are only requeued on change, so an event
// must not be dropped.
func sendChangeEvent(ctx context.Context, changes chan<- ChangeEvent, event ChangeEvent) bool {
	select {
	case changes <- event:
		logging.Debug("KubernetesDetector", "Emitted change event: %s %s %s/%s",
			event.Operation, event.Type, event.Namespace, event.Name)
		return true
	case <-ctx.Done():
		logging.Debug("KubernetesDetector", "Watch stopped, discarding event for %s %s/%s",
			event.Type, event.Namespace, event.Name)
		return false
	}
}

func (d *KubernetesDetector) namespaceDisplay() string {
	if d.namespace == "" {
		return "all namespaces"
	}
	return "namespace " + d.namespace
}
