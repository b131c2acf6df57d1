package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/vk/conveyor/internal/cache"
	"github.com/vk/conveyor/internal/config"
	"github.com/vk/conveyor/internal/ctxlog"
	"github.com/vk/conveyor/internal/governor"
	"github.com/vk/conveyor/internal/hcl"
	"github.com/vk/conveyor/internal/runner"
	"github.com/vk/conveyor/internal/yamlcfg"
)

// App encapsulates the engine's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    *Config

	pipeline *config.Pipeline
	governor *governor.Governor
	runner   runner.StepRunner
	store    cache.Store

	httpServer *http.Server
}

// Option overrides one of the App's collaborators, primarily for tests.
type Option func(*App)

// WithRunner substitutes the step runner.
func WithRunner(r runner.StepRunner) Option {
	return func(a *App) { a.runner = r }
}

// WithCacheStore substitutes the cache store regardless of the configured
// backend.
func WithCacheStore(s cache.Store) Option {
	return func(a *App) { a.store = s }
}

// WithGovernor shares a concurrency governor between App instances, so that
// runs created separately still supersede each other within a group.
func WithGovernor(g *governor.Governor) Option {
	return func(a *App) { a.governor = g }
}

// NewApp loads and validates the pipeline spec and returns a fully
// initialized App. The report is written to outW; logs go to logW.
func NewApp(outW, logW io.Writer, cfg *Config, opts ...Option) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	loader, err := selectLoader(cfg)
	if err != nil {
		return nil, err
	}
	model, err := loader.Load(ctx, cfg.PipelinePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline spec: %w", err)
	}
	logger.Debug("Pipeline spec loaded and validated.", "pipeline", model.Pipeline.Name, "jobs", len(model.Pipeline.Jobs))

	a := &App{
		outW:     outW,
		logger:   logger,
		cfg:      cfg,
		pipeline: model.Pipeline,
		governor: governor.New(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.store == nil {
		a.store, err = newCacheStore(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache backend: %w", err)
		}
	}
	return a, nil
}

// Pipeline returns the loaded pipeline. This is primarily for testing.
func (a *App) Pipeline() *config.Pipeline {
	return a.pipeline
}

// Close releases resources held by the App, such as the cache database.
func (a *App) Close() error {
	if closer, ok := a.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// selectLoader picks the spec dialect from the config, falling back to the
// file extension in auto mode. Directories default to HCL.
func selectLoader(cfg *Config) (config.Loader, error) {
	format := cfg.Format
	if format == "auto" {
		switch strings.ToLower(filepath.Ext(cfg.PipelinePath)) {
		case ".yaml", ".yml":
			format = "yaml"
		default:
			format = "hcl"
		}
	}
	switch format {
	case "yaml":
		return yamlcfg.NewLoader(), nil
	case "hcl":
		return hcl.NewLoader(), nil
	default:
		return nil, fmt.Errorf("no loader for format %q", format)
	}
}

// newCacheStore opens the configured cache backend, or nil for none.
func newCacheStore(ctx context.Context, cfg *Config) (cache.Store, error) {
	switch cfg.CacheBackend {
	case "none":
		return nil, nil
	case "memory":
		return cache.NewMemoryStore(), nil
	case "bolt":
		return cache.NewBoltStore(cfg.CachePath)
	case "s3":
		minioCfg, err := cache.MinioConfigFromEnv()
		if err != nil {
			return nil, err
		}
		return cache.NewMinioStore(ctx, minioCfg)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
