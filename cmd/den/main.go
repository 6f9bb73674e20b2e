package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/denlabs/den/internal/cli"
	"github.com/denlabs/den/internal/engine"
	"github.com/denlabs/den/internal/manifest"
	"github.com/denlabs/den/internal/workspace"
)

// Exit codes are part of the CLI contract: scripts and supervisors branch on
// them to distinguish contention from corruption from interruption.
const (
	exitOK          = 0
	exitFailure     = 1
	exitSchema      = 2
	exitLocked      = 3
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cli.Execute(ctx)
	if err == nil {
		os.Exit(exitOK)
	}

	fmt.Fprintf(os.Stderr, "den: %v\n", err)
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, manifest.ErrSchemaIncompatible):
		return exitSchema
	case errors.Is(err, workspace.ErrLocked):
		return exitLocked
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, engine.ErrValidationFailed), errors.Is(err, engine.ErrUnresolved):
		return exitFailure
	default:
		return exitFailure
	}
}
