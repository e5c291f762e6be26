// Package app wires the controller together and runs it.
//
// Bootstrap happens in two phases. NewApplication loads the configuration
// from the config directory, initializes logging, connects to the cluster
// and calls InitializeServices. Run then starts every service under one
// errgroup and blocks until the context is cancelled or a service fails.
//
// # Services
//
// InitializeServices builds, in order:
//
//   - a private Prometheus registry with the headwind collectors plus the Go
//     and process collectors
//   - the workload adapters for Deployment, StatefulSet, DaemonSet and
//     HelmRelease
//   - the notification dispatcher (log sink, optional webhook sender,
//     optional Kubernetes events)
//   - the UpdateRequest lifecycle, candidate store and push router
//   - one reconciler.Manager per enabled kind plus one for UpdateRequests,
//     unless controllers are disabled
//   - the registry poller when polling is enabled
//   - the webhook receiver when it is enabled
//
// Disabling controllers keeps the receiver and poller running so that
// events are still logged and counted.
//
// # Hot reload
//
// With WatchConfig set, a config.Watcher reloads config.yaml on change.
// Only the log level and the polling interval are applied live; everything
// else needs a restart.
package app
