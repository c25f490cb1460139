package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath string // .hcl pipeline files
	ModulesPath  string // .hcl module manifests

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int

	DryRun bool
	Watch  bool
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.DryRun && cfg.Watch {
		return nil, errors.New("dry-run and watch are mutually exclusive")
	}

	return &cfg, nil
}
