// Package metrics holds the Prometheus collectors of the controller. A
// Recorder is created once and handed to every component that records
// metrics; a nil *Recorder records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reconcile results.
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultSkipped   = "skipped"
	ResultThrottled = "throttled"
)

// Update outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeProposed = "proposed"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Recorder stores all the metrics of the controller.
type Recorder struct {
	pollingCycles        prometheus.Counter
	pollingImagesChecked prometheus.Counter
	pollingNewTags       prometheus.Counter
	pollingErrors        prometheus.Counter

	reconcileTotal        *prometheus.CounterVec
	reconcileDuration     *prometheus.HistogramVec
	updatesTotal          *prometheus.CounterVec
	updateRequestsCreated *prometheus.CounterVec
	streamRestarts        *prometheus.CounterVec
	notifications         *prometheus.CounterVec
	webhookEvents         *prometheus.CounterVec
}

// NewRecorder creates the collectors. They are not registered anywhere
// until Register is called, so tests can use a fresh recorder each time.
func NewRecorder() *Recorder {
	return &Recorder{
		pollingCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headwind_polling_cycles_total",
			Help: "Completed registry polling cycles.",
		}),
		pollingImagesChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headwind_polling_images_checked_total",
			Help: "Images whose tags were listed by the poller.",
		}),
		pollingNewTags: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headwind_polling_new_tags_found_total",
			Help: "New latest tags discovered by the poller.",
		}),
		pollingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headwind_polling_errors_total",
			Help: "Failed or timed out tag listings.",
		}),
		reconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "headwind_reconcile_total",
			Help: "Reconciliations by kind and result.",
		}, []string{"kind", "result"}),
		reconcileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "headwind_reconcile_duration_seconds",
			Help:    "Duration of reconciliations by kind.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		updatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "headwind_updates_total",
			Help: "Update decisions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		updateRequestsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "headwind_update_requests_created_total",
			Help: "UpdateRequests created by target kind.",
		}, []string{"kind"}),
		streamRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "headwind_stream_restarts_total",
			Help: "Restarts of a kind's watch stream.",
		}, []string{"kind"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "headwind_notifications_total",
			Help: "Notification deliveries by sink and result.",
		}, []string{"sink", "result"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "headwind_webhook_events_total",
			Help: "Registry webhook payloads by endpoint and result.",
		}, []string{"endpoint", "result"}),
	}
}

// Register registers every collector with reg.
func (r *Recorder) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		r.pollingCycles,
		r.pollingImagesChecked,
		r.pollingNewTags,
		r.pollingErrors,
		r.reconcileTotal,
		r.reconcileDuration,
		r.updatesTotal,
		r.updateRequestsCreated,
		r.streamRestarts,
		r.notifications,
		r.webhookEvents,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) PollingCycle() {
	if r == nil {
		return
	}
	r.pollingCycles.Inc()
}

func (r *Recorder) ImageChecked() {
	if r == nil {
		return
	}
	r.pollingImagesChecked.Inc()
}

func (r *Recorder) NewTagFound() {
	if r == nil {
		return
	}
	r.pollingNewTags.Inc()
}

func (r *Recorder) PollingError() {
	if r == nil {
		return
	}
	r.pollingErrors.Inc()
}

// Reconcile records one reconciliation of kind.
func (r *Recorder) Reconcile(kind, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.reconcileTotal.WithLabelValues(kind, result).Inc()
	r.reconcileDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (r *Recorder) Update(kind, outcome string) {
	if r == nil {
		return
	}
	r.updatesTotal.WithLabelValues(kind, outcome).Inc()
}

func (r *Recorder) UpdateRequestCreated(kind string) {
	if r == nil {
		return
	}
	r.updateRequestsCreated.WithLabelValues(kind).Inc()
}

func (r *Recorder) StreamRestart(kind string) {
	if r == nil {
		return
	}
	r.streamRestarts.WithLabelValues(kind).Inc()
}

func (r *Recorder) Notification(sink, result string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(sink, result).Inc()
}

func (r *Recorder) WebhookEvent(endpoint, result string) {
	if r == nil {
		return
	}
	r.webhookEvents.WithLabelValues(endpoint, result).Inc()
}
