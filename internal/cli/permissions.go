package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/devzero-inc/selfhost-cli/internal/config"
	"github.com/devzero-inc/selfhost-cli/internal/deploy"
	"github.com/devzero-inc/selfhost-cli/internal/pipeline"
)

// newCheckPermissionsCommand creates the "check-permissions" subcommand that
// verifies AWS permissions for the installation.
func newCheckPermissionsCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-permissions",
		Short: "Check AWS permissions for the installation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			deploymentType := cmd.Flag("type").Value.String()

			cfg, err := loadConfig(opts, config.Overrides{})
			if err != nil {
				return err
			}

			d, runner, _, st, err := newDeployment(cfg, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()

			// The standalone command asserts current permissions, so the
			// checker runs even when a previous run recorded the stage as
			// completed. Only install skips it.
			stage := d.PermissionsStage(deploymentType)
			stage.Always = true

			results, err := runner.Run(ctx, st, []pipeline.Stage{stage})
			logResults(logger, results)
			return err
		},
	}

	cmd.Flags().String("type", deploy.TypeControlPlane, "Deployment type: control-plane or data-plane")

	return cmd
}
