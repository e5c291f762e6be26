package policy

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// HasPolicy reports whether the annotations carry a policy keyword at all.
func HasPolicy(annotations map[string]string) bool {
	_, ok := annotations[PolicyAnnotation]
	return ok
}

// ParseResourcePolicy builds a ResourcePolicy from workload annotations.
// Absent annotations take their defaults; malformed ones are reported as a
// *ConfigurationError rather than silently replaced.
func ParseResourcePolicy(annotations map[string]string) (ResourcePolicy, error) {
	p := DefaultResourcePolicy()

	if raw, ok := annotations[PolicyAnnotation]; ok {
		parsed, ok := ParseUpdatePolicy(raw)
		if !ok {
			return p, &ConfigurationError{Annotation: PolicyAnnotation, Value: raw, Reason: "unknown policy"}
		}
		p.Policy = parsed
	}

	p.Pattern = strings.TrimSpace(annotations[PatternAnnotation])
	if p.Policy == PolicyGlob && p.Pattern == "" {
		return p, &ConfigurationError{Annotation: PatternAnnotation, Reason: "required when policy is glob"}
	}

	var err error
	if p.RequireApproval, err = boolAnnotation(annotations, RequireApprovalAnnotation, p.RequireApproval); err != nil {
		return p, err
	}
	if p.AutoRollback, err = boolAnnotation(annotations, AutoRollbackAnnotation, p.AutoRollback); err != nil {
		return p, err
	}
	if p.MinUpdateInterval, err = secondsAnnotation(annotations, MinUpdateIntervalAnnotation, 0); err != nil {
		return p, err
	}
	if p.PollingInterval, err = secondsAnnotation(annotations, PollingIntervalAnnotation, 0); err != nil {
		return p, err
	}
	if p.RollbackTimeout, err = secondsAnnotation(annotations, RollbackTimeoutAnnotation, p.RollbackTimeout); err != nil {
		return p, err
	}

	if raw, ok := annotations[HealthCheckRetriesAnnotation]; ok {
		n, convErr := strconv.Atoi(strings.TrimSpace(raw))
		if convErr != nil || n < 0 {
			return p, &ConfigurationError{Annotation: HealthCheckRetriesAnnotation, Value: raw, Reason: "expected a non-negative integer"}
		}
		p.HealthCheckRetries = n
	}

	if raw, ok := annotations[EventSourceAnnotation]; ok {
		src, ok := ParseEventSource(raw)
		if !ok {
			return p, &ConfigurationError{Annotation: EventSourceAnnotation, Value: raw, Reason: "expected webhook, polling, both or none"}
		}
		p.EventSource = src
	}

	p.Images = parseImageFilter(annotations[ImagesAnnotation])
	return p, nil
}

func boolAnnotation(annotations map[string]string, key string, def bool) (bool, error) {
	raw, ok := annotations[key]
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return def, &ConfigurationError{Annotation: key, Value: raw, Reason: "expected true or false"}
	}
	return v, nil
}

// maxSeconds is the largest number of seconds a time.Duration can hold.
const maxSeconds = math.MaxInt64 / int64(time.Second)

func secondsAnnotation(annotations map[string]string, key string, def time.Duration) (time.Duration, error) {
	raw, ok := annotations[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return def, &ConfigurationError{Annotation: key, Value: raw, Reason: "expected a non-negative number of seconds"}
	}
	if n > maxSeconds {
		return def, &ConfigurationError{Annotation: key, Value: raw, Reason: "number of seconds is too large"}
	}
	return time.Duration(n) * time.Second, nil
}

// parseImageFilter splits the comma separated filter and drops any tag, so
// "nginx:1.25, redis" tracks the nginx and redis repositories.
func parseImageFilter(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var images []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.LastIndex(part, ":"); i > 0 && !strings.ContainsAny(part[i+1:], "/*") {
			part = part[:i]
		}
		images = append(images, part)
	}
	return images
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
