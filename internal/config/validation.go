package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/headwind-sh/headwind/pkg/logging"
)

// KnownKinds are the workload kinds accepted in controllers.kinds.
var KnownKinds = []string{"Deployment", "StatefulSet", "DaemonSet", "HelmRelease"}

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if strings.EqualFold(value, allowedValue) {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// Validate checks the configuration for values the controller cannot run
// with.
func (c HeadwindConfig) Validate() error {
	var errs ValidationErrors

	if c.Controllers.Workers < 1 {
		errs.Add("controllers.workers", "must be at least 1", c.Controllers.Workers)
	}
	if c.Controllers.ErrorBackoff <= 0 {
		errs.Add("controllers.errorBackoff", "must be positive", c.Controllers.ErrorBackoff)
	}
	if c.Controllers.ReconcileTimeout <= 0 {
		errs.Add("controllers.reconcileTimeout", "must be positive", c.Controllers.ReconcileTimeout)
	}
	if c.Controllers.Requeue.PodTemplate <= 0 {
		errs.Add("controllers.requeue.podTemplate", "must be positive", c.Controllers.Requeue.PodTemplate)
	}
	if c.Controllers.Requeue.HelmRelease <= 0 {
		errs.Add("controllers.requeue.helmRelease", "must be positive", c.Controllers.Requeue.HelmRelease)
	}
	if c.Controllers.ApprovalExpiry < 0 {
		errs.Add("controllers.approvalExpiry", "must not be negative", c.Controllers.ApprovalExpiry)
	}
	for _, kind := range c.Controllers.Kinds {
		if err := ValidateOneOf("controllers.kinds", kind, KnownKinds); err != nil {
			errs = append(errs, err.(ValidationError))
		}
	}

	if c.Polling.Interval <= 0 {
		errs.Add("polling.interval", "must be positive", c.Polling.Interval)
	}
	if c.Polling.Concurrency < 1 {
		errs.Add("polling.concurrency", "must be at least 1", c.Polling.Concurrency)
	}
	if c.Polling.Timeout <= 0 {
		errs.Add("polling.timeout", "must be positive", c.Polling.Timeout)
	}

	if c.Webhook.Enabled && strings.TrimSpace(c.Webhook.Address) == "" {
		errs.Add("webhook.address", "is required when the webhook server is enabled")
	}

	if raw := c.Notifications.WebhookURL; raw != "" {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs.Add("notifications.webhookURL", "must be an http or https URL", raw)
		}
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs.Add("logging.level", "must be debug, info, warn or error", c.Logging.Level)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// KindEnabled reports whether the workload kind is reconciled.
func (c ControllersConfig) KindEnabled(kind string) bool {
	if !c.Enabled {
		return false
	}
	if len(c.Kinds) == 0 {
		return true
	}
	for _, k := range c.Kinds {
		if strings.EqualFold(k, kind) {
			return true
		}
	}
	return false
}
