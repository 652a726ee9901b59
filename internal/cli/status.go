package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devzero-inc/selfhost-cli/internal/config"
	"github.com/devzero-inc/selfhost-cli/internal/deploy"
	"github.com/devzero-inc/selfhost-cli/internal/state"
)

// newStatusCommand creates the "status" subcommand that shows recorded stage state.
func newStatusCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show recorded stage status for a deployment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			cfg, err := loadConfig(opts, config.Overrides{})
			if err != nil {
				return err
			}

			_, st, err := openState(cfg, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "deployment: %s\n", st.Deployment)
			for _, stage := range []string{deploy.StagePermissions, deploy.StageTerraform, deploy.StageHelm} {
				status := st.Stages[stage]
				if status == "" {
					status = state.StatusPending
				}
				fmt.Fprintf(out, "  %-20s %s\n", stage, status)
			}
			return nil
		},
	}
}
