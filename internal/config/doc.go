// Package config defines the format-agnostic pipeline definition model and
// its validation rules. Format-specific loaders (HCL, YAML) translate their
// dialects into this model; everything downstream of loading only ever sees
// these types.
package config
