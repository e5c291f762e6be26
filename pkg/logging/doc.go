// Package logging provides subsystem-tagged structured logging for headwind.
//
// Every entry carries a subsystem field naming the component that produced
// it, for example "DeploymentController", "Poller" or "UpdateRequest". The
// backend is zap: JSON in production, a console encoder in development.
//
//	logging.Init(logging.Options{Level: logging.LevelInfo})
//	logging.Info("Poller", "Checking %d images", len(images))
//	logging.Error("Webhook", err, "Failed to decode payload")
//
// Init also installs a logr bridge as the controller-runtime logger, so
// informer and client logs end up in the same stream.
package logging
