package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/denlabs/den/internal/engine"
	"github.com/denlabs/den/internal/manifest"
	"github.com/denlabs/den/internal/workspace"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"schema incompatible", manifest.ErrSchemaIncompatible, exitSchema},
		{"schema incompatible wrapped", fmt.Errorf("manifest: %w", manifest.ErrSchemaIncompatible), exitSchema},
		{"locked", workspace.ErrLocked, exitLocked},
		{"interrupted", context.Canceled, exitInterrupted},
		{"validation failed", engine.ErrValidationFailed, exitFailure},
		{"unresolved", engine.ErrUnresolved, exitFailure},
		{"unknown", errors.New("disk on fire"), exitFailure},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, exitCode(tc.err))
		})
	}
}
