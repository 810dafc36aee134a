// Package cli: status.go implements the "container-sync status" command.
//
// The status command asks Docker for containers carrying the
// "container-sync.managed-by" label. Everything shown is reconstructed
// from labels; there is no state file.
package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/container-sync/internal/model"
)

// NewStatusCommand creates the "status" cobra command.
func NewStatusCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show managed sync containers",
		Long: `Show the sync containers known to Docker, including those of sync
points that are no longer in the configuration.

Examples:
  container-sync status
  container-sync status --name web-sync --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			containers, err := rt.ListSyncContainers(cmd.Context(), name)
			if err != nil {
				return err
			}
			VerboseLog("Found %d managed container(s)", len(containers))

			sort.Slice(containers, func(i, j int) bool {
				return containers[i].SyncName < containers[j].SyncName
			})
			return printStatusResult(cmd.OutOrStdout(), containers)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Only show the named sync point")

	return cmd
}

func printStatusResult(w io.Writer, containers []model.SyncContainer) error {
	if IsJSONOutput() {
		type resultJSON struct {
			Containers []model.SyncContainer `json:"containers"`
		}
		result := resultJSON{Containers: make([]model.SyncContainer, 0, len(containers))}
		result.Containers = append(result.Containers, containers...)
		return writeJSON(w, result)
	}

	if len(containers) == 0 {
		fmt.Fprintln(w, "No sync containers found.")
		return nil
	}

	fmt.Fprintf(w, "%-20s %-10s %-10s %s\n", "NAME", "STRATEGY", "STATUS", "CONTAINER")
	for _, c := range containers {
		id := c.ContainerID
		if len(id) > 12 {
			id = id[:12]
		}
		fmt.Fprintf(w, "%-20s %-10s %-10s %s\n", c.SyncName, c.Strategy, c.Status, id)
	}
	return nil
}
