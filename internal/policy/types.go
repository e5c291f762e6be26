package policy

import (
	"time"
)

// Annotation keys read from (and, for LastUpdateAnnotation, written to)
// workload metadata.
const (
	AnnotationPrefix = "headwind.sh/"

	PolicyAnnotation             = AnnotationPrefix + "policy"
	PatternAnnotation            = AnnotationPrefix + "pattern"
	RequireApprovalAnnotation    = AnnotationPrefix + "require-approval"
	MinUpdateIntervalAnnotation  = AnnotationPrefix + "min-update-interval"
	ImagesAnnotation             = AnnotationPrefix + "images"
	EventSourceAnnotation        = AnnotationPrefix + "event-source"
	PollingIntervalAnnotation    = AnnotationPrefix + "polling-interval"
	AutoRollbackAnnotation       = AnnotationPrefix + "auto-rollback"
	RollbackTimeoutAnnotation    = AnnotationPrefix + "rollback-timeout"
	HealthCheckRetriesAnnotation = AnnotationPrefix + "health-check-retries"
	LastUpdateAnnotation         = AnnotationPrefix + "last-update"
)

// UpdatePolicy selects which version changes are permitted.
type UpdatePolicy string

const (
	// PolicyPatch allows 1.2.3 -> 1.2.4.
	PolicyPatch UpdatePolicy = "patch"
	// PolicyMinor allows 1.2.3 -> 1.3.0 and patch bumps.
	PolicyMinor UpdatePolicy = "minor"
	// PolicyMajor allows any strict increase.
	PolicyMajor UpdatePolicy = "major"
	// PolicyAll allows any change, including downgrades.
	PolicyAll UpdatePolicy = "all"
	// PolicyGlob allows candidates matching a shell-style pattern.
	PolicyGlob UpdatePolicy = "glob"
	// PolicyForce always updates, even to the same version.
	PolicyForce UpdatePolicy = "force"
	// PolicyNone never updates.
	PolicyNone UpdatePolicy = "none"
)

// ParseUpdatePolicy parses a case-insensitive policy keyword.
func ParseUpdatePolicy(s string) (UpdatePolicy, bool) {
	switch p := UpdatePolicy(normalize(s)); p {
	case PolicyPatch, PolicyMinor, PolicyMajor, PolicyAll, PolicyGlob, PolicyForce, PolicyNone:
		return p, true
	default:
		return "", false
	}
}

// EventSource selects which signals may propose updates for a workload.
type EventSource string

const (
	EventSourceWebhook EventSource = "webhook"
	EventSourcePolling EventSource = "polling"
	EventSourceBoth    EventSource = "both"
	// EventSourceNone leaves only manually created UpdateRequests.
	EventSourceNone EventSource = "none"
)

// ParseEventSource parses a case-insensitive event source keyword.
func ParseEventSource(s string) (EventSource, bool) {
	switch e := EventSource(normalize(s)); e {
	case EventSourceWebhook, EventSourcePolling, EventSourceBoth, EventSourceNone:
		return e, true
	default:
		return "", false
	}
}

// AcceptsWebhook reports whether registry webhooks may propose updates.
func (e EventSource) AcceptsWebhook() bool {
	return e == EventSourceWebhook || e == EventSourceBoth
}

// AcceptsPolling reports whether the registry poller may propose updates.
func (e EventSource) AcceptsPolling() bool {
	return e == EventSourcePolling || e == EventSourceBoth
}

// ResourcePolicy is the update policy of a single workload.
type ResourcePolicy struct {
	Policy          UpdatePolicy
	Pattern         string
	RequireApproval bool

	// MinUpdateInterval is zero when no throttle is configured.
	MinUpdateInterval time.Duration

	// Images restricts tracking to these repositories or repository globs.
	// Empty tracks all.
	Images []string

	EventSource EventSource

	// PollingInterval overrides the poller's global interval when non-zero.
	PollingInterval time.Duration

	AutoRollback       bool
	RollbackTimeout    time.Duration
	HealthCheckRetries int
}

// DefaultResourcePolicy returns the values used for annotations that are absent.
func DefaultResourcePolicy() ResourcePolicy {
	return ResourcePolicy{
		Policy:             PolicyNone,
		RequireApproval:    true,
		EventSource:        EventSourceWebhook,
		RollbackTimeout:    5 * time.Minute,
		HealthCheckRetries: 3,
	}
}

// TracksImage reports whether the repository passes the images filter.
// Filter entries may be globs such as "ghcr.io/acme/*".
func (p ResourcePolicy) TracksImage(repository string) bool {
	if len(p.Images) == 0 {
		return true
	}
	for _, img := range p.Images {
		if matchImagePattern(img, repository) {
			return true
		}
	}
	return false
}
