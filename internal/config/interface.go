package config

import "context"

// Loader is the interface for a format-specific pipeline definition loader.
// Implementations translate their dialect into the format-agnostic Model;
// the returned model has already passed Validate.
type Loader interface {
	// Load reads a pipeline definition from the given path, which may be a
	// single file or a directory searched for files in the loader's format.
	Load(ctx context.Context, path string) (*Model, error)
}
