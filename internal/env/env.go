// Package env provides small helpers for reading typed configuration
// values from the process environment.
package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// String returns the value of the named variable, or fallback when the
// variable is unset or blank.
func String(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

// Bool parses the named variable as a boolean. Unset or blank values yield
// the fallback; malformed values are an error rather than a silent default.
func Bool(name string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("invalid boolean in %s: %q", name, v)
	}
	return parsed, nil
}
