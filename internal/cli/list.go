// Package cli: list.go implements the "container-sync list" command.
//
// The list command shows the configured sync points as a text table or
// JSON array. It only reads the configuration and never talks to Docker;
// "status" reports what is actually running.
package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/container-sync/internal/model"
)

// NewListCommand creates the "list" cobra command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured sync points",
		Long: `List the sync points declared in the configuration.

Each sync point is shown with its strategy, source directory, destination
inside the container and host port.

Examples:
  container-sync list
  container-sync list --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			VerboseLog("Found %d sync point(s)", len(cfg.Syncs))
			return printListResult(cmd.OutOrStdout(), cfg.Syncs)
		},
	}

	return cmd
}

// listSyncJSON is the JSON output structure for a single sync point.
type listSyncJSON struct {
	Name     string `json:"name"`
	Strategy string `json:"strategy"`
	Src      string `json:"src"`
	Dest     string `json:"dest"`
	HostPort int    `json:"hostPort,omitempty"`
	Image    string `json:"image,omitempty"`
}

// printListResult outputs the sync points in text or JSON format,
// depending on the global --json flag.
func printListResult(w io.Writer, syncs []model.SyncPointConfig) error {
	if IsJSONOutput() {
		type resultJSON struct {
			Syncs []listSyncJSON `json:"syncs"`
		}
		// An empty slice keeps the output "[]" instead of null.
		result := resultJSON{Syncs: make([]listSyncJSON, 0, len(syncs))}
		for _, s := range syncs {
			result.Syncs = append(result.Syncs, listSyncJSON{
				Name:     s.Name,
				Strategy: s.EffectiveStrategy().String(),
				Src:      s.Src,
				Dest:     s.Dest,
				HostPort: s.SyncHostPort,
				Image:    s.Image,
			})
		}
		return writeJSON(w, result)
	}

	if len(syncs) == 0 {
		fmt.Fprintln(w, "No sync points configured.")
		return nil
	}

	// The table format is:
	//
	//	NAME        STRATEGY  PORT   SRC                 DEST
	//	web-sync    rsync     10871  /home/dev/web/      /var/www
	fmt.Fprintf(w, "%-20s %-10s %-7s %-30s %s\n", "NAME", "STRATEGY", "PORT", "SRC", "DEST")
	for _, s := range syncs {
		fmt.Fprintf(w, "%-20s %-10s %-7s %-30s %s\n",
			s.Name,
			s.EffectiveStrategy(),
			FormatPort(s.SyncHostPort),
			s.Src,
			s.Dest,
		)
	}
	return nil
}

// FormatPort renders a host port for tables. Zero means the port is
// picked when the container is created and is shown as "auto".
func FormatPort(port int) string {
	if port == 0 {
		return "auto"
	}
	return strconv.Itoa(port)
}

// printAction reports a lifecycle command's result.
func printAction(cmd *cobra.Command, action string, names []string) error {
	w := cmd.OutOrStdout()
	if IsJSONOutput() {
		type resultJSON struct {
			Action string   `json:"action"`
			Syncs  []string `json:"syncs"`
		}
		return writeJSON(w, resultJSON{Action: action, Syncs: names})
	}

	switch action {
	case "watching":
		fmt.Fprintf(w, "Watching %s (press Ctrl+C to stop)\n", strings.Join(names, ", "))
	default:
		// The action is a past participle ("stopped"); capitalize it.
		fmt.Fprintf(w, "%s%s %s\n", strings.ToUpper(action[:1]), action[1:], strings.Join(names, ", "))
	}
	return nil
}
