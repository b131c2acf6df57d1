package app

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// PipelinePath points at a pipeline file or a directory of pipeline
	// files in one format.
	PipelinePath string
	// Format selects the spec dialect: "hcl", "yaml", or "auto" to decide
	// by file extension.
	Format string

	// Ref is the branch or tag reference the run is for, matched against
	// the pipeline's trigger filter.
	Ref string
	// RunID identifies the run inside its concurrency group. Empty means a
	// generated one.
	RunID string

	// CacheBackend selects the cache store: "none", "memory", "bolt" or "s3".
	CacheBackend string
	// CachePath is the bolt database file, required for the bolt backend.
	CachePath string

	// WorkDir is the working tree steps run in. Empty means the current
	// directory.
	WorkDir string
	// StepTimeout bounds each step; 0 disables the limit.
	StepTimeout time.Duration

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	Workers         int
}

// NewConfig validates a Config and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}

	if cfg.Format == "" {
		cfg.Format = "auto"
	}
	switch cfg.Format {
	case "auto", "hcl", "yaml":
	default:
		return nil, fmt.Errorf("invalid format %q: must be 'auto', 'hcl' or 'yaml'", cfg.Format)
	}

	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "none"
	}
	switch cfg.CacheBackend {
	case "none", "memory", "s3":
	case "bolt":
		if cfg.CachePath == "" {
			return nil, errors.New("cache-path is required for the bolt cache backend")
		}
	default:
		return nil, fmt.Errorf("invalid cache backend %q: must be 'none', 'memory', 'bolt' or 's3'", cfg.CacheBackend)
	}

	return &cfg, nil
}
