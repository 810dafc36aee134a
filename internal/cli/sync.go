package cli

import (
	"github.com/spf13/cobra"
)

// NewSyncCommand creates the "sync" cobra command, a one-off transfer
// into containers that "start" has already created.
func NewSyncCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a single sync",
		Long: `Run one sync of every configured sync point without watching.

The sync containers must be running; start them with "start" first.

Examples:
  container-sync sync
  container-sync sync --name web-sync`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd.Context(), name)
			if err != nil {
				return err
			}
			defer sess.close()

			if err := sess.orch.Sync(cmd.Context(), name); err != nil {
				return lifecycleError("sync", err)
			}
			return printAction(cmd, "synced", sess.scopeNames(name))
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Only sync the named sync point")

	return cmd
}
