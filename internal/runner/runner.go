// Package runner executes opaque step commands on the host and reports
// their exit codes and captured output. It is the engine's only contact
// with the host shell; everything above it treats a step as a command
// string plus an exit code.
package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
)

// Result is the outcome of one executed step command.
type Result struct {
	ExitCode int
	Output   []byte
}

// StepRunner runs a single opaque command. A non-zero exit code is data,
// not an error: the error return is reserved for the command not running
// at all (missing shell, cancelled context).
type StepRunner interface {
	Run(ctx context.Context, command string, env []string) (Result, error)
}

// Shell runs commands through the host shell in a fixed working directory.
type Shell struct {
	// Dir is the working directory for every command. Empty means the
	// process working directory.
	Dir string
}

// NewShell creates a shell runner rooted at dir.
func NewShell(dir string) *Shell {
	return &Shell{Dir: dir}
}

// Run executes the command and waits for it. The extra env entries are
// appended to the inherited process environment.
func (s *Shell) Run(ctx context.Context, command string, env []string) (Result, error) {
	cmd := shellCommand(ctx, command)
	cmd.Dir = s.Dir
	cmd.Env = append(os.Environ(), env...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{ExitCode: -1, Output: output}, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{ExitCode: exitErr.ExitCode(), Output: output}, nil
		}
		return Result{ExitCode: -1, Output: output}, err
	}
	return Result{ExitCode: 0, Output: output}, nil
}
