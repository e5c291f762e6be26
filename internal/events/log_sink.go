package events

import (
	"context"

	"github.com/headwind-sh/headwind/pkg/logging"
)

// LogSink writes events to the process log.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Send(_ context.Context, ev Event) error {
	if ev.Warning() {
		logging.Warn("Notifications", "%s", ev.Message)
		return nil
	}
	logging.Info("Notifications", "%s", ev.Message)
	return nil
}
