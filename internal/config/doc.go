// Package config loads the controller configuration.
//
// Configuration is read from config.yaml in a single directory, by default
// /etc/headwind where the ConfigMap is mounted. Values are layered:
//
//  1. built-in defaults (GetDefaultConfig)
//  2. config.yaml
//  3. HEADWIND_* environment variables
//
// A missing file is not an error. The result is validated and every
// problem is reported at once as ValidationErrors.
//
// # Example config.yaml
//
//	namespace: ""
//	controllers:
//	  enabled: true
//	  workers: 2
//	  kinds: [Deployment, StatefulSet, DaemonSet, HelmRelease]
//	  errorBackoff: 30s
//	  requeue:
//	    podTemplate: 5m
//	    helmRelease: 1h
//	  approvalExpiry: 24h
//	polling:
//	  enabled: false
//	  interval: 5m
//	  concurrency: 4
//	  timeout: 30s
//	webhook:
//	  enabled: true
//	  address: ":8080"
//	notifications:
//	  webhookURL: https://hooks.example.com/headwind
//	  kubernetesEvents: true
//	engine:
//	  strictVersions: false
//	logging:
//	  level: info
//
// # Hot reload
//
// Watcher watches the directory with fsnotify, falling back to polling the
// file's modification time, and hands each valid reloaded configuration to
// a callback. Only settings that can change at runtime, such as the
// polling interval and the log level, are applied by the caller.
package config
