package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	hwclient "github.com/headwind-sh/headwind/internal/client"
	"github.com/headwind-sh/headwind/internal/config"
	"github.com/headwind-sh/headwind/pkg/logging"
)

// Application bootstraps and runs the controller.
//
// Initialization has two phases:
//  1. NewApplication loads configuration, sets up logging and builds services
//  2. Run starts every service and blocks until the context is cancelled
//
// Example usage:
//
//	cfg := app.NewConfig(false, "/etc/headwind", true)
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads the configuration from cfg.ConfigPath, initializes
// logging and connects to the cluster.
func NewApplication(cfg *Config) (*Application, error) {
	headwindCfg, err := config.LoadConfig(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load headwind configuration from %s: %w", cfg.ConfigPath, err)
	}
	cfg.HeadwindConfig = &headwindCfg

	initLogging(cfg.Debug, headwindCfg.Logging)

	restConfig, err := hwclient.GetRestConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load Kubernetes configuration: %w", err)
	}
	k8sClient, err := hwclient.NewKubernetesClient(restConfig)
	if err != nil {
		return nil, err
	}

	services, err := InitializeServices(headwindCfg, Dependencies{
		RestConfig: restConfig,
		Client:     k8sClient,
	})
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{config: cfg, services: services}, nil
}

// NewApplicationWithServices creates an application around prebuilt
// services.
func NewApplicationWithServices(cfg *Config, services *Services) *Application {
	return &Application{config: cfg, services: services}
}

func initLogging(debug bool, cfg config.LoggingConfig) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	if debug {
		level = logging.LevelDebug
	}
	logging.Init(logging.Options{Level: level, Development: cfg.Development})
}

// Services returns the services of the application.
func (a *Application) Services() *Services {
	return a.services
}

// Run starts every service and blocks until ctx is cancelled or a service
// fails. A failing service cancels the others.
func (a *Application) Run(ctx context.Context) error {
	s := a.services
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.Dispatcher.Run(ctx) })

	for _, m := range s.Managers {
		g.Go(func() error { return m.Run(ctx) })
	}

	if s.Poller != nil {
		g.Go(func() error { return s.Poller.Run(ctx) })
	}

	if s.Webhook != nil {
		g.Go(func() error { return s.Webhook.Run(ctx) })
	}

	if a.config.WatchConfig {
		watcher := config.NewWatcher(config.WatcherConfig{
			ConfigDir: a.config.ConfigPath,
			OnChange:  a.applyConfig,
		})
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("failed to watch configuration: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			return watcher.Stop()
		})
	}

	logging.Info("Bootstrap", "headwind started with %d controller(s), polling %s, webhook %s",
		len(s.Managers), enabled(s.Poller != nil), enabled(s.Webhook != nil))

	err := g.Wait()
	_ = logging.Sync()
	return err
}

// applyConfig applies the settings that can change without a restart.
func (a *Application) applyConfig(cfg config.HeadwindConfig) {
	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil && !a.config.Debug {
		logging.SetLevel(level)
	}
	if a.services.Poller != nil {
		a.services.Poller.SetInterval(cfg.Polling.Interval)
	}
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
