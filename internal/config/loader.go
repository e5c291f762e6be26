package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/headwind-sh/headwind/pkg/logging"
)

const (
	// DefaultConfigDir is where the ConfigMap is mounted in the cluster.
	DefaultConfigDir = "/etc/headwind"
	configFileName   = "config.yaml"
)

// Environment variables overriding the file.
const (
	EnvNamespace          = "HEADWIND_NAMESPACE"
	EnvControllersEnabled = "HEADWIND_CONTROLLERS_ENABLED"
	EnvPollingEnabled     = "HEADWIND_POLLING_ENABLED"
	EnvPollingInterval    = "HEADWIND_POLLING_INTERVAL"
	EnvWebhookURL         = "HEADWIND_WEBHOOK_URL"
	EnvWebhookSecret      = "HEADWIND_WEBHOOK_SECRET"
	EnvLogLevel           = "HEADWIND_LOG_LEVEL"
)

// ConfigFilePath returns the path of config.yaml inside configDir.
func ConfigFilePath(configDir string) string {
	return filepath.Join(configDir, configFileName)
}

// LoadConfig loads configuration from config.yaml in configDir. Defaults
// apply first, then the file, then environment overrides. A missing file
// is not an error.
func LoadConfig(configDir string) (HeadwindConfig, error) {
	config := GetDefaultConfig()

	path := ConfigFilePath(configDir)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", path)
	case err != nil:
		return HeadwindConfig{}, fmt.Errorf("failed to read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return HeadwindConfig{}, fmt.Errorf("error loading config from %s: %w", path, err)
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	}

	if err := applyEnvOverrides(&config); err != nil {
		return HeadwindConfig{}, err
	}
	if err := config.Validate(); err != nil {
		return HeadwindConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func applyEnvOverrides(config *HeadwindConfig) error {
	var errs ValidationErrors

	if v, ok := os.LookupEnv(EnvNamespace); ok {
		config.Namespace = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvControllersEnabled); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs.Add(EnvControllersEnabled, "must be true or false", v)
		} else {
			config.Controllers.Enabled = b
		}
	}
	if v, ok := os.LookupEnv(EnvPollingEnabled); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs.Add(EnvPollingEnabled, "must be true or false", v)
		} else {
			config.Polling.Enabled = b
		}
	}
	if v, ok := os.LookupEnv(EnvPollingInterval); ok {
		d, err := parseInterval(v)
		if err != nil {
			errs.Add(EnvPollingInterval, err.Error(), v)
		} else {
			config.Polling.Interval = d
		}
	}
	if v, ok := os.LookupEnv(EnvWebhookURL); ok {
		config.Notifications.WebhookURL = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvWebhookSecret); ok {
		config.Notifications.WebhookSecret = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		config.Logging.Level = strings.TrimSpace(v)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// parseInterval accepts a number of seconds or a Go duration such as "90s".
func parseInterval(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("must be positive")
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("must be a number of seconds or a duration")
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return d, nil
}
