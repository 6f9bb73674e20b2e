package cli

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/denlabs/den/internal/engine"
	"github.com/denlabs/den/internal/plan"
	"github.com/denlabs/den/internal/report"
	"github.com/denlabs/den/internal/workspace"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize or reconcile the workspace",
	Long: `Reconcile the .den workspace against its artifact catalog: create what
is missing, offer to repair what is corrupted, and leave what is valid alone.
Safe to re-run; a consistent workspace is a no-op.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().Bool("check", false, "Validate the workspace structure without modifications")
	initCmd.Flags().Bool("dry-run", false, "Print the planned changes without touching the filesystem")
	initCmd.Flags().Bool("force", false, "Recreate auxiliary database artifacts from scratch")
	initCmd.Flags().BoolP("yes", "y", false, "Answer yes to every repair question")
}

func runInit(cmd *cobra.Command, args []string) error {
	check, err := cmd.Flags().GetBool("check")
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	assumeYes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return err
	}
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return err
	}
	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return err
	}

	logger := newLogger(logLevel)

	ws := workspace.New(dir)

	opts := engine.Options{
		Check:       check,
		DryRun:      dryRun,
		Force:       force,
		AssumeYes:   assumeYes,
		Interactive: stdinIsTerminal(cmd),
	}

	rep := report.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), dryRun)
	prompter := &plan.TerminalPrompter{
		In:  cmd.InOrStdin(),
		Out: cmd.OutOrStdout(),
		Err: cmd.ErrOrStderr(),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	_, err = engine.Run(ctx, ws, opts, prompter, rep, logger)
	return err
}

// stdinIsTerminal decides whether repair prompts can reach a human. Tests
// swap cmd input for a buffer, which is never a terminal.
func stdinIsTerminal(cmd *cobra.Command) bool {
	file, ok := cmd.InOrStdin().(*os.File)
	return ok && isatty.IsTerminal(file.Fd())
}
