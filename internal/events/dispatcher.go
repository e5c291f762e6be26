package events

import (
	"context"
	"time"

	"github.com/headwind-sh/headwind/internal/metrics"
	"github.com/headwind-sh/headwind/pkg/logging"
)

const (
	defaultQueueSize   = 100
	defaultSendTimeout = 30 * time.Second
	drainTimeout       = 5 * time.Second
)

// Notifier accepts events for delivery.
type Notifier interface {
	Notify(ev Event)
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Sinks       []Sink
	QueueSize   int
	SendTimeout time.Duration
	Templates   *MessageTemplateEngine
	Metrics     *metrics.Recorder
}

// Dispatcher queues events and delivers them to every sink from a single
// background goroutine.
type Dispatcher struct {
	sinks       []Sink
	queue       chan Event
	sendTimeout time.Duration
	templates   *MessageTemplateEngine
	metrics     *metrics.Recorder
}

// NewDispatcher creates a dispatcher. Call Run to start delivery.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.Templates == nil {
		opts.Templates = NewMessageTemplateEngine()
	}
	return &Dispatcher{
		sinks:       opts.Sinks,
		queue:       make(chan Event, opts.QueueSize),
		sendTimeout: opts.SendTimeout,
		templates:   opts.Templates,
		metrics:     opts.Metrics,
	}
}

// Notify enqueues ev without blocking. When the queue is full the event is
// dropped.
func (d *Dispatcher) Notify(ev Event) {
	if ev.Message == "" {
		ev.Message = d.templates.Render(ev)
	}
	select {
	case d.queue <- ev:
	default:
		d.metrics.Notification("dispatcher", "dropped")
		logging.Warn("Notifications", "Queue full, dropping %s event for %s/%s",
			ev.Type, ev.Deployment.Namespace, ev.Deployment.Name)
	}
}

// Run delivers queued events until ctx is cancelled, then drains what is
// left with a short deadline.
func (d *Dispatcher) Run(ctx context.Context) error {
	logging.Info("Notifications", "Dispatcher started with %d sinks", len(d.sinks))
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		case <-ctx.Done():
			d.drain()
			return nil
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	for _, sink := range d.sinks {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		err := sink.Send(sendCtx, ev)
		cancel()
		if err != nil {
			d.metrics.Notification(sink.Name(), "error")
			logging.Error("Notifications", err, "Failed to deliver %s event %s via %s", ev.Type, ev.ID, sink.Name())
			continue
		}
		d.metrics.Notification(sink.Name(), "success")
	}
}
