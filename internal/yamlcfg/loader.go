// Package yamlcfg loads pipeline definitions written in YAML and translates
// them into the format-agnostic config model. It mirrors the HCL loader's
// contract for teams that keep their CI definitions in YAML.
package yamlcfg

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/conveyor/internal/config"
	"github.com/vk/conveyor/internal/ctxlog"
	"github.com/vk/conveyor/internal/fsutil"
	"gopkg.in/yaml.v3"
)

// Loader implements config.Loader for YAML pipeline files.
type Loader struct{}

// NewLoader creates a new YAML loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads one pipeline definition from path, which may be a single
// .yml/.yaml file or a directory containing one such file.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := l.collectFiles(path)
	if err != nil {
		return nil, err
	}

	var docs []*pipelineDoc
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		var root rootDoc
		if err := yaml.Unmarshal(raw, &root); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", config.ErrInvalidSpec, file, err)
		}
		if root.Pipeline != nil {
			docs = append(docs, root.Pipeline)
		}
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no pipeline document found at %s", config.ErrInvalidSpec, path)
	}
	if len(docs) > 1 {
		return nil, fmt.Errorf("%w: found %d pipeline documents, expected exactly one", config.ErrInvalidSpec, len(docs))
	}

	model := &config.Model{Pipeline: docs[0].toModel()}
	if err := config.Validate(model); err != nil {
		return nil, err
	}
	logger.Debug("Pipeline definition loaded.", "pipeline", model.Pipeline.Name, "jobs", len(model.Pipeline.Jobs))
	return model, nil
}

func (l *Loader) collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := fsutil.FindFilesByExtension(path, ".yml", ".yaml")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no .yml or .yaml files found at %s", config.ErrInvalidSpec, path)
	}
	return files, nil
}
