package cli

import (
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/container-sync/internal/config"
	"github.com/shinji-kodama/container-sync/internal/model"
)

// NewConfigCommand creates the "config" command, which prints the
// normalized configuration: interpolated, with defaults applied and
// source paths expanded. The YAML output can be fed back through
// --config-string.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the normalized configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if IsJSONOutput() {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}

			out, err := config.Render(cfg)
			if err != nil {
				return model.WrapCLIError(model.ExitGeneralError, "failed to render configuration", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
