package config

import "errors"

// ErrInvalidSpec marks a malformed pipeline definition: bad matrix, cache,
// or dependency declarations. It is fatal at load time, before any job runs.
var ErrInvalidSpec = errors.New("invalid pipeline spec")
