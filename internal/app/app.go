package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/cryoflow/internal/config"
	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	loader    config.Loader
	registry  *registry.Registry
	config    *config.Model
	converter config.Converter
	appConfig *Config
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and registry.
// Configuration failures at this stage are fatal startup errors and panic;
// main recovers them into a clean exit.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	var configPaths []string
	if appConfig.PipelinePath != "" {
		configPaths = append(configPaths, appConfig.PipelinePath)
	}
	if appConfig.ModulesPath != "" {
		configPaths = append(configPaths, appConfig.ModulesPath)
	}

	// Load all configuration into the format-agnostic model first.
	cfgModel, converter, err := loader.Load(ctx, configPaths...)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Configuration loaded and translated into unified model.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules()
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	reg.PopulateDefinitionsFromModel(cfgModel)

	if err := reg.ValidateRegistry(ctx); err != nil {
		// Drift between compiled handlers and shipped manifests is a
		// packaging error, not a user error.
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:      outW,
		logger:    logger,
		loader:    loader,
		registry:  reg,
		config:    cfgModel,
		converter: converter,
		appConfig: appConfig,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// reload re-reads all configuration from disk, used by watch mode between
// runs. The registry's Go handlers are static; only definitions refresh.
func (a *App) reload(ctx context.Context) error {
	var configPaths []string
	if a.appConfig.PipelinePath != "" {
		configPaths = append(configPaths, a.appConfig.PipelinePath)
	}
	if a.appConfig.ModulesPath != "" {
		configPaths = append(configPaths, a.appConfig.ModulesPath)
	}

	cfgModel, converter, err := a.loader.Load(ctx, configPaths...)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}

	a.config = cfgModel
	a.converter = converter
	a.registry.PopulateDefinitionsFromModel(cfgModel)

	return a.registry.ValidateRegistry(ctx)
}
