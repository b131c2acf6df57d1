package hcl

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/conveyor/internal/config"
	"github.com/vk/conveyor/internal/ctxlog"
	"github.com/vk/conveyor/internal/fsutil"
	"github.com/vk/conveyor/internal/schema"
)

// Loader implements config.Loader for the HCL pipeline dialect.
type Loader struct{}

// NewLoader creates a new HCL loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads one pipeline definition from path, which may be a single .hcl
// file or a directory containing .hcl files. Exactly one pipeline block must
// be present across all parsed files.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := l.collectFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no .hcl files found at %s", config.ErrInvalidSpec, path)
	}
	logger.Debug("Parsing pipeline definition files.", "count", len(files))

	parser := hclparse.NewParser()
	var pipelines []*schema.Pipeline
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%w: parsing %s: %s", config.ErrInvalidSpec, file, diags.Error())
		}
		var root schema.Root
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("%w: decoding %s: %s", config.ErrInvalidSpec, file, diags.Error())
		}
		pipelines = append(pipelines, root.Pipelines...)
	}

	if len(pipelines) == 0 {
		return nil, fmt.Errorf("%w: no pipeline block found at %s", config.ErrInvalidSpec, path)
	}
	if len(pipelines) > 1 {
		return nil, fmt.Errorf("%w: found %d pipeline blocks, expected exactly one", config.ErrInvalidSpec, len(pipelines))
	}

	translated, err := translatePipeline(pipelines[0])
	if err != nil {
		return nil, err
	}
	model := &config.Model{Pipeline: translated}
	if err := config.Validate(model); err != nil {
		return nil, err
	}
	logger.Debug("Pipeline definition loaded.", "pipeline", model.Pipeline.Name, "jobs", len(model.Pipeline.Jobs))
	return model, nil
}

// collectFiles resolves path to the list of definition files to parse.
func (l *Loader) collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	return fsutil.FindFilesByExtension(path, ".hcl")
}
