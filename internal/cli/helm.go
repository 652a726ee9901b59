package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/devzero-inc/selfhost-cli/internal/config"
	"github.com/devzero-inc/selfhost-cli/internal/pipeline"
)

// newDeployHelmCommand creates the "deploy-helm" subcommand that installs the
// control plane charts. It fails with a prerequisite error when
// setup-terraform has not completed.
func newDeployHelmCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy-helm",
		Short: "Deploy the control plane Helm charts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			overrides := config.Overrides{
				Domain:      cmd.Flag("domain").Value.String(),
				Email:       cmd.Flag("email").Value.String(),
				Region:      cmd.Flag("region").Value.String(),
				ClusterName: cmd.Flag("cluster-name").Value.String(),
			}

			cfg, err := loadConfig(opts, overrides)
			if err != nil {
				return err
			}
			if cfg.Domain == "" {
				return fmt.Errorf("a domain is required, pass --domain or set SELFHOST_DOMAIN")
			}
			if cfg.Email == "" {
				return fmt.Errorf("an email is required, pass --email or set SELFHOST_EMAIL")
			}

			d, runner, _, st, err := newDeployment(cfg, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 45*time.Minute)
			defer cancel()

			results, err := runner.Run(ctx, st, []pipeline.Stage{d.HelmStage()})
			logResults(logger, results)
			if err != nil {
				return err
			}

			return d.SetupIngress(ctx)
		},
	}

	cmd.Flags().String("email", "", "Email for the certificate issuer")
	cmd.Flags().String("region", "", "AWS region for the EKS cluster")
	cmd.Flags().String("cluster-name", "", "Name of the EKS cluster")

	return cmd
}
