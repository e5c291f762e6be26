package config

import "time"

// HeadwindConfig is the top-level configuration of the controller.
type HeadwindConfig struct {
	// Namespace restricts every controller and the poller. Empty watches
	// all namespaces.
	Namespace string `yaml:"namespace,omitempty"`

	Controllers   ControllersConfig   `yaml:"controllers"`
	Polling       PollingConfig       `yaml:"polling"`
	Webhook       WebhookConfig       `yaml:"webhook"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Engine        EngineConfig        `yaml:"engine"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ControllersConfig configures the reconciliation loops.
type ControllersConfig struct {
	// Enabled turns every workload and UpdateRequest controller on or off.
	// The webhook server and the poller run either way.
	Enabled bool `yaml:"enabled"`

	// Kinds limits the workload kinds that are reconciled. Empty means all.
	Kinds []string `yaml:"kinds,omitempty"`

	Workers          int           `yaml:"workers,omitempty"`
	ErrorBackoff     time.Duration `yaml:"errorBackoff,omitempty"`
	ReconcileTimeout time.Duration `yaml:"reconcileTimeout,omitempty"`

	Requeue RequeueConfig `yaml:"requeue"`

	// ApprovalExpiry is how long a Pending UpdateRequest waits for a
	// decision. Zero disables expiry.
	ApprovalExpiry time.Duration `yaml:"approvalExpiry"`
}

// RequeueConfig holds the success requeue interval per kind family.
type RequeueConfig struct {
	PodTemplate time.Duration `yaml:"podTemplate,omitempty"`
	HelmRelease time.Duration `yaml:"helmRelease,omitempty"`
}

// PollingConfig configures the registry poller.
type PollingConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval,omitempty"`
	Concurrency int           `yaml:"concurrency,omitempty"`

	// Timeout bounds every registry call.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Insecure allows plain HTTP registries.
	Insecure bool `yaml:"insecure,omitempty"`
}

// WebhookConfig configures the registry webhook receiver.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address,omitempty"`
}

// NotificationsConfig configures where update events are sent.
type NotificationsConfig struct {
	// WebhookURL receives events as JSON. Empty disables the sink.
	WebhookURL string `yaml:"webhookURL,omitempty"`

	// WebhookSecret signs webhook bodies with HMAC-SHA256.
	WebhookSecret string `yaml:"webhookSecret,omitempty"`

	WebhookTimeout time.Duration `yaml:"webhookTimeout,omitempty"`

	// KubernetesEvents records core/v1 Events on the updated workloads.
	KubernetesEvents bool `yaml:"kubernetesEvents"`

	QueueSize int `yaml:"queueSize,omitempty"`
}

// EngineConfig configures the policy engine.
type EngineConfig struct {
	// StrictVersions rejects versions that do not parse instead of
	// refusing the update.
	StrictVersions bool `yaml:"strictVersions,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level       string `yaml:"level,omitempty"`
	Development bool   `yaml:"development,omitempty"`
}
