package workload

import (
	"time"
)

// FieldManager is the field owner recorded on every patch.
const FieldManager = "headwind"

const (
	// DefaultPodTemplateRequeue re-evaluates pod template kinds every few minutes.
	DefaultPodTemplateRequeue = 5 * time.Minute

	// DefaultHelmReleaseRequeue re-evaluates releases hourly.
	DefaultHelmReleaseRequeue = time.Hour
)

type adapterOptions struct {
	requeue time.Duration
}

// AdapterOption customizes an adapter.
type AdapterOption func(*adapterOptions)

// WithRequeue overrides the default requeue interval of an adapter.
func WithRequeue(d time.Duration) AdapterOption {
	return func(o *adapterOptions) {
		if d > 0 {
			o.requeue = d
		}
	}
}

func buildOptions(def time.Duration, opts []AdapterOption) adapterOptions {
	o := adapterOptions{requeue: def}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
