package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"

	hwclient "github.com/headwind-sh/headwind/internal/client"
	"github.com/headwind-sh/headwind/internal/config"
	"github.com/headwind-sh/headwind/internal/events"
	"github.com/headwind-sh/headwind/internal/metrics"
	"github.com/headwind-sh/headwind/internal/policy"
	"github.com/headwind-sh/headwind/internal/polling"
	"github.com/headwind-sh/headwind/internal/reconciler"
	"github.com/headwind-sh/headwind/internal/registry"
	"github.com/headwind-sh/headwind/internal/updaterequest"
	"github.com/headwind-sh/headwind/internal/webhook"
	"github.com/headwind-sh/headwind/internal/workload"
	headwindv1alpha1 "github.com/headwind-sh/headwind/pkg/apis/headwind/v1alpha1"
	"github.com/headwind-sh/headwind/pkg/logging"
)

// Dependencies are the external collaborators of the services.
type Dependencies struct {
	// RestConfig is used by the watch streams.
	RestConfig *rest.Config

	// Client reads and patches resources.
	Client client.Client

	// TagLister defaults to a crane backed lister.
	TagLister registry.TagLister
}

// Services holds every long-running component of the controller.
type Services struct {
	Config config.HeadwindConfig

	Client    client.Client
	Metrics   *metrics.Recorder
	Gatherer  prometheus.Gatherer
	Adapters  *workload.Registry
	Lifecycle *updaterequest.Lifecycle

	Dispatcher *events.Dispatcher
	Candidates *reconciler.CandidateStore
	Router     *reconciler.Router

	// Managers holds one manager per enabled kind. Empty when the
	// controllers are disabled.
	Managers []*reconciler.Manager

	// Poller is nil when polling is disabled.
	Poller *polling.Poller

	// Webhook is nil when the receiver is disabled.
	Webhook *webhook.Server
}

// InitializeServices builds the services described by cfg.
func InitializeServices(cfg config.HeadwindConfig, deps Dependencies) (*Services, error) {
	if deps.Client == nil {
		return nil, fmt.Errorf("a Kubernetes client is required")
	}

	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder()
	if err := rec.Register(reg); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	adapters := workload.NewRegistry(
		workload.NewDeploymentAdapter(workload.WithRequeue(cfg.Controllers.Requeue.PodTemplate)),
		workload.NewStatefulSetAdapter(workload.WithRequeue(cfg.Controllers.Requeue.PodTemplate)),
		workload.NewDaemonSetAdapter(workload.WithRequeue(cfg.Controllers.Requeue.PodTemplate)),
		workload.NewHelmReleaseAdapter(workload.WithRequeue(cfg.Controllers.Requeue.HelmRelease)),
	)

	dispatcher, err := newDispatcher(cfg.Notifications, deps.Client, rec)
	if err != nil {
		return nil, err
	}

	lifecycle := updaterequest.NewLifecycle(deps.Client, adapters, updaterequest.WithExpiry(cfg.Controllers.ApprovalExpiry))
	candidates := reconciler.NewCandidateStore()
	router := reconciler.NewRouter(deps.Client, adapters, candidates, cfg.Namespace)

	s := &Services{
		Config:     cfg,
		Client:     deps.Client,
		Metrics:    rec,
		Gatherer:   reg,
		Adapters:   adapters,
		Lifecycle:  lifecycle,
		Dispatcher: dispatcher,
		Candidates: candidates,
		Router:     router,
	}

	if cfg.Controllers.Enabled {
		s.Managers = s.buildManagers(deps.RestConfig)
	} else {
		logging.Info("Services", "Controllers disabled; only the webhook server and poller run")
	}

	if cfg.Polling.Enabled {
		lister := deps.TagLister
		if lister == nil {
			lister = registry.NewCraneLister(cfg.Polling.Insecure)
		}
		s.Poller = polling.NewPoller(deps.Client, adapters, lister, router, polling.Config{
			Interval:    cfg.Polling.Interval,
			Timeout:     cfg.Polling.Timeout,
			Concurrency: cfg.Polling.Concurrency,
			Namespace:   cfg.Namespace,
		}, polling.WithMetrics(rec))
	}

	if cfg.Webhook.Enabled {
		s.Webhook = webhook.NewServer(cfg.Webhook.Address, router, webhook.WithMetrics(rec), webhook.WithGatherer(reg))
	}

	return s, nil
}

func (s *Services) buildManagers(restConfig *rest.Config) []*reconciler.Manager {
	cfg := s.Config
	engineOpts := []policy.Option{}
	if cfg.Engine.StrictVersions {
		engineOpts = append(engineOpts, policy.WithStrictVersions())
	}
	engine := policy.NewEngine(engineOpts...)
	scheme := s.Client.Scheme()

	managerConfig := reconciler.ManagerConfig{
		WorkerCount:      cfg.Controllers.Workers,
		ErrorBackoff:     cfg.Controllers.ErrorBackoff,
		ReconcileTimeout: cfg.Controllers.ReconcileTimeout,
		Metrics:          s.Metrics,
	}

	var managers []*reconciler.Manager
	for _, adapter := range s.Adapters.All() {
		kind := adapter.Kind()
		if !cfg.Controllers.KindEnabled(string(kind)) {
			logging.Info("Services", "%s controller disabled", kind)
			continue
		}

		r := reconciler.NewWorkloadReconciler(adapter, s.Client, engine, s.Lifecycle, s.Candidates,
			reconciler.WithNotifier(s.Dispatcher), reconciler.WithMetrics(s.Metrics))

		var opts []reconciler.DetectorOption
		if adapter.UpdateType() == headwindv1alpha1.UpdateTypeImage {
			opts = append(opts, reconciler.IgnoreStatusUpdates())
		}
		detector := reconciler.NewKubernetesDetector(restConfig, scheme, cfg.Namespace,
			reconciler.ResourceType(kind), adapter.NewObject(), opts...)

		m := reconciler.NewManager(r, detector, managerConfig)
		s.Router.Register(kind, m)
		managers = append(managers, m)
	}

	urReconciler := reconciler.NewUpdateRequestReconciler(s.Client, s.Lifecycle, s.Dispatcher, s.Metrics)
	urDetector := reconciler.NewKubernetesDetector(restConfig, scheme, cfg.Namespace,
		reconciler.ResourceTypeUpdateRequest, &headwindv1alpha1.UpdateRequest{})
	managers = append(managers, reconciler.NewManager(urReconciler, urDetector, managerConfig))

	return managers
}

func newDispatcher(cfg config.NotificationsConfig, c client.Client, rec *metrics.Recorder) (*events.Dispatcher, error) {
	sinks := []events.Sink{events.LogSink{}}

	if cfg.WebhookURL != "" {
		sender, err := events.NewWebhookSender(events.WebhookSenderConfig{
			URL:     cfg.WebhookURL,
			Secret:  cfg.WebhookSecret,
			Timeout: cfg.WebhookTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create notification webhook: %w", err)
		}
		sinks = append(sinks, sender)
	}

	if cfg.KubernetesEvents {
		sinks = append(sinks, events.NewKubernetesEventSink(hwclient.NewFromClient(c)))
	}

	return events.NewDispatcher(events.DispatcherOptions{
		Sinks:     sinks,
		QueueSize: cfg.QueueSize,
		Metrics:   rec,
	}), nil
}
