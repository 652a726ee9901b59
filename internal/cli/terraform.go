package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/devzero-inc/selfhost-cli/internal/config"
	"github.com/devzero-inc/selfhost-cli/internal/pipeline"
)

// newSetupTerraformCommand creates the "setup-terraform" subcommand that
// provisions AWS infrastructure.
func newSetupTerraformCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup-terraform",
		Short: "Set up AWS infrastructure using Terraform",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			autoApprove, _ := cmd.Flags().GetBool("auto-approve")

			cfg, err := loadConfig(opts, config.Overrides{})
			if err != nil {
				return err
			}

			d, runner, _, st, err := newDeployment(cfg, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Minute)
			defer cancel()

			results, err := runner.Run(ctx, st, []pipeline.Stage{d.TerraformStage(autoApprove)})
			logResults(logger, results)
			return err
		},
	}

	cmd.Flags().Bool("auto-approve", false, "Skip interactive approval of terraform apply")

	return cmd
}
