package events

import "context"

// Sink delivers events to one destination.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Send delivers ev. It is called from the dispatcher goroutine.
	Send(ctx context.Context, ev Event) error
}
