package polling

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/headwind-sh/headwind/internal/metrics"
	"github.com/headwind-sh/headwind/internal/policy"
	"github.com/headwind-sh/headwind/internal/registry"
	"github.com/headwind-sh/headwind/internal/workload"
	"github.com/headwind-sh/headwind/pkg/logging"
)

const (
	DefaultInterval    = 5 * time.Minute
	DefaultTimeout     = 30 * time.Second
	DefaultConcurrency = 4
)

// Handler receives the push events found by polling.
type Handler interface {
	HandlePush(ctx context.Context, ev registry.PushEvent) (int, error)
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config configures a Poller.
type Config struct {
	// Interval between poll cycles.
	Interval time.Duration

	// Timeout bounds each registry call.
	Timeout time.Duration

	// Concurrency is the number of images polled at once.
	Concurrency int

	// Namespace restricts discovery. Empty means all namespaces.
	Namespace string
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}

// Option configures a Poller.
type Option func(*Poller)

// WithMetrics records polling counters on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(p *Poller) { p.metrics = rec }
}

// WithClock replaces the clock used for per-image polling intervals.
func WithClock(c Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithCache replaces the tag cache.
func WithCache(c *Cache) Option {
	return func(p *Poller) { p.cache = c }
}

// Poller periodically lists the tags of every image run by a workload that
// accepts polling, and emits a push event whenever the newest tag of an
// image changes.
type Poller struct {
	reader   client.Reader
	adapters []workload.ImageAdapter
	lister   registry.TagLister
	handler  Handler
	cache    *Cache
	metrics  *metrics.Recorder
	clock    Clock

	timeout     time.Duration
	concurrency int64
	namespace   string

	mu         sync.RWMutex
	interval   time.Duration
	lastPolled map[string]time.Time

	reset chan struct{}
}

// NewPoller creates a poller over the image kinds of adapters.
func NewPoller(reader client.Reader, adapters *workload.Registry, lister registry.TagLister, handler Handler, cfg Config, opts ...Option) *Poller {
	cfg = cfg.withDefaults()
	p := &Poller{
		reader:      reader,
		adapters:    adapters.ImageAdapters(),
		lister:      lister,
		handler:     handler,
		cache:       NewCache(),
		clock:       realClock{},
		timeout:     cfg.Timeout,
		concurrency: int64(cfg.Concurrency),
		namespace:   cfg.Namespace,
		interval:    cfg.Interval,
		lastPolled:  make(map[string]time.Time),
		reset:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the current cycle interval.
func (p *Poller) Interval() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.interval
}

// SetInterval changes the cycle interval of a running poller.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	changed := p.interval != d
	p.interval = d
	p.mu.Unlock()

	if !changed {
		return
	}
	logging.Info("Poller", "Polling interval set to %v", d)
	select {
	case p.reset <- struct{}{}:
	default:
	}
}

// Run polls immediately and then once per interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	logging.Info("Poller", "Starting registry polling every %v", p.Interval())

	p.poll(ctx)

	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("Poller", "Stopped registry polling")
			return nil
		case <-p.reset:
			ticker.Reset(p.Interval())
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	if err := p.PollOnce(ctx); err != nil {
		logging.Error("Poller", err, "Poll cycle failed")
	}
}

// PollOnce runs a single poll cycle. Registry failures are logged and
// retried next cycle; only a failed discovery is returned.
func (p *Poller) PollOnce(ctx context.Context) error {
	p.metrics.PollingCycle()

	tracked, err := p.TrackedImages(ctx)
	if err != nil {
		p.metrics.PollingError()
		return err
	}
	p.cache.Retain(func(image string) bool {
		_, ok := tracked[image]
		return ok
	})

	due := p.dueImages(tracked)
	logging.Debug("Poller", "Polling %d of %d tracked image(s)", len(due), len(tracked))

	sem := semaphore.NewWeighted(p.concurrency)
	var g errgroup.Group
	for _, image := range due {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			p.pollImage(ctx, image)
			return nil
		})
	}
	return g.Wait()
}

// TrackedImages returns the repositories run by workloads that accept
// polling, each with the shortest polling interval requested for it.
func (p *Poller) TrackedImages(ctx context.Context) (map[string]time.Duration, error) {
	interval := p.Interval()
	tracked := make(map[string]time.Duration)

	for _, adapter := range p.adapters {
		objs, err := adapter.List(ctx, p.reader, p.namespace)
		if err != nil {
			return nil, fmt.Errorf("failed to discover tracked images: %w", err)
		}

		for _, obj := range objs {
			pol, ok := pollable(obj)
			if !ok {
				continue
			}
			every := interval
			if pol.PollingInterval > 0 {
				every = pol.PollingInterval
			}

			for _, c := range adapter.Images(obj) {
				repo, _, err := registry.ParseImage(c.Image)
				if err != nil {
					logging.Debug("Poller", "Skipping container %s of %s/%s: %v", c.Container, obj.GetNamespace(), obj.GetName(), err)
					continue
				}
				if !pol.TracksImage(repo) {
					continue
				}
				if cur, ok := tracked[repo]; !ok || every < cur {
					tracked[repo] = every
				}
			}
		}
	}
	return tracked, nil
}

func pollable(obj client.Object) (policy.ResourcePolicy, bool) {
	annotations := obj.GetAnnotations()
	if !policy.HasPolicy(annotations) {
		return policy.ResourcePolicy{}, false
	}
	pol, err := policy.ParseResourcePolicy(annotations)
	if err != nil {
		logging.Debug("Poller", "Skipping %s/%s: %v", obj.GetNamespace(), obj.GetName(), err)
		return pol, false
	}
	return pol, pol.Policy != policy.PolicyNone && pol.EventSource.AcceptsPolling()
}

// dueImages returns the tracked images whose interval has elapsed since
// they were last polled, and marks them as polled now.
func (p *Poller) dueImages(tracked map[string]time.Duration) []string {
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	for image := range p.lastPolled {
		if _, ok := tracked[image]; !ok {
			delete(p.lastPolled, image)
		}
	}

	due := make([]string, 0, len(tracked))
	for image, every := range tracked {
		if last, ok := p.lastPolled[image]; ok && now.Sub(last) < every {
			continue
		}
		p.lastPolled[image] = now
		due = append(due, image)
	}
	sort.Strings(due)
	return due
}

func (p *Poller) pollImage(ctx context.Context, image string) {
	p.metrics.ImageChecked()

	lctx, cancel := context.WithTimeout(ctx, p.timeout)
	tags, err := p.lister.ListTags(lctx, image)
	cancel()
	if err != nil {
		p.metrics.PollingError()
		logging.Warn("Poller", "Failed to list tags for %s: %v", image, err)
		return
	}
	if len(tags) == 0 {
		logging.Debug("Poller", "No tags found for %s", image)
		return
	}

	latest, ok := policy.LatestTag(tags)
	if !ok {
		logging.Debug("Poller", "None of the %d tags of %s look like a version", len(tags), image)
		return
	}

	if !p.cache.Observe(image, latest) {
		return
	}
	p.metrics.NewTagFound()
	logging.Info("Poller", "Found new tag %s:%s", image, latest)

	ev := registry.PushEvent{
		Registry:   registry.ExtractRegistry(image),
		Repository: image,
		Tag:        latest,
		Source:     registry.SourcePolling,
		ReceivedAt: p.clock.Now(),
	}
	if _, err := p.handler.HandlePush(ctx, ev); err != nil {
		// Emit again next cycle.
		p.cache.Forget(image)
		logging.Warn("Poller", "Failed to route %s: %v", ev.FullImage(), err)
	}
}
