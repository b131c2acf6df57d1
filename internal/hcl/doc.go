// Package hcl loads pipeline definitions written in the HCL dialect and
// translates them into the format-agnostic config model. It is the primary
// loader; the yamlcfg package provides the same contract for YAML files.
package hcl
