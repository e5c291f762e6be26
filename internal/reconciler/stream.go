package reconciler

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/headwind-sh/headwind/internal/metrics"
	"github.com/headwind-sh/headwind/pkg/logging"
)

// StreamConfig controls how a failed watch stream is restarted.
type StreamConfig struct {
	// InitialInterval is the first restart delay. Defaults to 1 second.
	InitialInterval time.Duration

	// MaxInterval caps the doubling restart delay. Defaults to 60 seconds.
	// A stream that stayed up longer than MaxInterval restarts the sequence.
	MaxInterval time.Duration
}

func (c StreamConfig) withDefaults() StreamConfig {
	if c.InitialInterval <= 0 {
		c.InitialInterval = time.Second
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 60 * time.Second
	}
	if c.MaxInterval < c.InitialInterval {
		c.MaxInterval = c.InitialInterval
	}
	return c
}

func newStreamBackOff(cfg StreamConfig) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.InitialInterval,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         cfg.MaxInterval,
	}
	b.Reset()
	return b
}

// runStream calls run until ctx is cancelled, waiting an exponentially
// growing delay between attempts whenever run returns.
func runStream(ctx context.Context, kind ResourceType, cfg StreamConfig, rec *metrics.Recorder, run func(context.Context) error) {
	cfg = cfg.withDefaults()
	b := newStreamBackOff(cfg)

	for {
		started := time.Now()
		err := run(ctx)
		if ctx.Err() != nil {
			return
		}

		if time.Since(started) > cfg.MaxInterval {
			b.Reset()
		}
		delay := b.NextBackOff()

		if err != nil {
			logging.Warn("WatchStream", "%s watch stream failed, restarting in %v: %v", kind, delay, err)
		} else {
			logging.Warn("WatchStream", "%s watch stream ended, restarting in %v", kind, delay)
		}
		rec.StreamRestart(string(kind))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
