// Package cli: start.go implements the "container-sync start" command.
//
// The start command creates (or reuses) the sync containers, performs the
// initial sync and then keeps watching the source directories until it is
// interrupted. Ctrl+C (or SIGTERM) stops the watchers and the containers
// before the command returns.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/container-sync/internal/model"
	"github.com/shinji-kodama/container-sync/internal/orchestrator"
)

// startFlags holds the flag values for the start command.
type startFlags struct {
	// name limits the command to one sync point.
	name string

	// noWatch returns after the initial sync instead of watching.
	noWatch bool
}

// NewStartCommand creates the "start" cobra command.
func NewStartCommand() *cobra.Command {
	flags := &startFlags{}

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start sync containers and watch for changes",
		Long: `Start the sync container of every configured sync point, run an initial
sync and keep syncing as files change.

The command runs in the foreground until interrupted. On Ctrl+C the
watchers and sync containers are stopped. Volumes are kept; use "clean"
to remove them.

Examples:
  container-sync start
  container-sync start --name web-sync
  container-sync start --no-watch`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.name, "name", "n", "", "Only start the named sync point")
	cmd.Flags().BoolVar(&flags.noWatch, "no-watch", false, "Return after the initial sync")

	return cmd
}

// runStart brings the workers up and joins them.
func runStart(cmd *cobra.Command, flags *startFlags) error {
	ctx := cmd.Context()

	sess, err := openSession(ctx, flags.name)
	if err != nil {
		return err
	}
	defer sess.close()

	if err := sess.orch.Run(ctx, flags.name); err != nil {
		return lifecycleError("start", err)
	}

	names := sess.scopeNames(flags.name)
	if flags.noWatch {
		return printAction(cmd, "started", names)
	}

	if err := sess.orch.WatchStart(ctx); err != nil {
		sess.orch.WatchStop()
		return lifecycleError("watch", err)
	}
	if err := printAction(cmd, "watching", names); err != nil {
		return err
	}

	return joinWorkers(ctx, sess.orch)
}

// joinWorkers blocks until the watchers end or the process is
// interrupted, and translates the outcome into an exit status.
func joinWorkers(ctx context.Context, orch *orchestrator.Orchestrator) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := orch.JoinAll(sigCtx)
	switch result.Status {
	case orchestrator.JoinInterrupted:
		VerboseLog("Interrupted, workers stopped")
		return nil
	case orchestrator.JoinFailed:
		// The remaining watchers would keep the process alive otherwise.
		orch.WatchStop()
		return model.WrapCLIError(model.ExitWorkerFailed, "sync worker failed", result.Err)
	default:
		return nil
	}
}
