// Package cli: clean.go implements the "container-sync clean" command.
//
// Cleaning stops the sync containers and removes them together with
// their volumes. The next "start" recreates both and performs a full
// initial sync.
package cli

import (
	"github.com/spf13/cobra"
)

// NewCleanCommand creates the "clean" cobra command.
func NewCleanCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove sync containers and volumes",
		Long: `Stop and remove the sync containers and volumes of every configured
sync point. Local source directories are never touched.

Examples:
  container-sync clean
  container-sync clean --name web-sync`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd.Context(), name)
			if err != nil {
				return err
			}
			defer sess.close()

			if err := sess.orch.Clean(cmd.Context(), name); err != nil {
				return lifecycleError("clean", err)
			}
			return printAction(cmd, "cleaned", sess.scopeNames(name))
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Only clean the named sync point")

	return cmd
}
