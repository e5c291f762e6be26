package config

import "time"

const (
	DefaultWorkers            = 2
	DefaultErrorBackoff       = 30 * time.Second
	DefaultReconcileTimeout   = 30 * time.Second
	DefaultPodTemplateRequeue = 5 * time.Minute
	DefaultHelmReleaseRequeue = time.Hour
	DefaultApprovalExpiry     = 24 * time.Hour

	DefaultPollingInterval    = 5 * time.Minute
	DefaultPollingConcurrency = 4
	DefaultPollingTimeout     = 30 * time.Second

	DefaultWebhookAddress = ":8080"

	DefaultNotificationTimeout = 10 * time.Second
	DefaultNotificationQueue   = 100
)

// GetDefaultConfig returns the configuration used when no file is present.
func GetDefaultConfig() HeadwindConfig {
	return HeadwindConfig{
		Controllers: ControllersConfig{
			Enabled:          true,
			Workers:          DefaultWorkers,
			ErrorBackoff:     DefaultErrorBackoff,
			ReconcileTimeout: DefaultReconcileTimeout,
			Requeue: RequeueConfig{
				PodTemplate: DefaultPodTemplateRequeue,
				HelmRelease: DefaultHelmReleaseRequeue,
			},
			ApprovalExpiry: DefaultApprovalExpiry,
		},
		Polling: PollingConfig{
			Enabled:     false,
			Interval:    DefaultPollingInterval,
			Concurrency: DefaultPollingConcurrency,
			Timeout:     DefaultPollingTimeout,
		},
		Webhook: WebhookConfig{
			Enabled: true,
			Address: DefaultWebhookAddress,
		},
		Notifications: NotificationsConfig{
			WebhookTimeout:   DefaultNotificationTimeout,
			KubernetesEvents: true,
			QueueSize:        DefaultNotificationQueue,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
