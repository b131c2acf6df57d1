package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/conveyor/internal/app"
	"github.com/vk/conveyor/internal/cli"
	"github.com/vk/conveyor/internal/config"
	"github.com/vk/conveyor/internal/dag"
)

// main is the entrypoint for the conveyor binary.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	os.Exit(run(os.Stdout, os.Stderr, os.Args[1:]))
}

// run encapsulates the process lifecycle and maps every outcome to an exit
// code: 0 success, 1 failure, 2 unusable input, 3 superseded or cancelled.
func run(outW, logW io.Writer, args []string) int {
	appConfig, shouldExit, err := cli.Parse(args, logW)
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(logW, exitErr.Message)
			return exitErr.Code
		}
		fmt.Fprintln(logW, err)
		return 2
	}
	if shouldExit {
		return 0
	}

	conveyor, err := app.NewApp(outW, logW, appConfig)
	if err != nil {
		fmt.Fprintln(logW, err)
		if errors.Is(err, config.ErrInvalidSpec) {
			return 2
		}
		return 1
	}
	defer conveyor.Close()

	// Ctrl-C or SIGTERM drains the run instead of killing it mid-step.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := conveyor.Run(ctx)
	if err != nil {
		fmt.Fprintln(logW, err)
		if errors.Is(err, config.ErrInvalidSpec) || errors.Is(err, dag.ErrCyclicDependency) {
			return 2
		}
		return 1
	}
	if err := conveyor.Render(rep); err != nil {
		fmt.Fprintln(logW, err)
		return 1
	}
	return rep.Verdict.ExitCode()
}
