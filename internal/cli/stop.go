// Package cli: stop.go implements the "container-sync stop" command.
//
// Stopping keeps the sync containers and their volumes, so the next
// "start" only needs to catch up on changes.
package cli

import (
	"github.com/spf13/cobra"
)

// NewStopCommand creates the "stop" cobra command.
func NewStopCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop sync containers",
		Long: `Stop the sync containers of every configured sync point.

Containers and volumes are preserved and reused by the next "start".

Examples:
  container-sync stop
  container-sync stop --name web-sync`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd.Context(), name)
			if err != nil {
				return err
			}
			defer sess.close()

			if err := sess.orch.Stop(cmd.Context()); err != nil {
				return lifecycleError("stop", err)
			}
			return printAction(cmd, "stopped", sess.scopeNames(name))
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Only stop the named sync point")

	return cmd
}
