package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/devzero-inc/selfhost-cli/internal/config"
	"github.com/devzero-inc/selfhost-cli/internal/deploy"
)

// newInstallCommand creates the "install" subcommand that runs the full deployment pipeline.
func newInstallCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Run the full control plane installation pipeline",
		Long: "Runs check-permissions, setup-terraform and deploy-helm in order. " +
			"Stages recorded as completed are skipped, so an interrupted or failed " +
			"installation resumes where it stopped.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			nonInteractive, _ := cmd.Flags().GetBool("non-interactive")
			autoApprove, _ := cmd.Flags().GetBool("auto-approve")
			deploymentType := cmd.Flag("type").Value.String()
			email := cmd.Flag("email").Value.String()

			cfg, err := loadConfig(opts, config.Overrides{Email: email, NonInteractive: nonInteractive})
			if err != nil {
				return err
			}
			if err := ensureInstallInputs(cfg); err != nil {
				return err
			}

			d, runner, _, st, err := newDeployment(cfg, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 90*time.Minute)
			defer cancel()

			logger.Info("starting control plane installation", "deployment", st.Deployment)
			stages := d.InstallStages(deploymentType, autoApprove || cfg.NonInteractive)
			results, err := runner.Run(ctx, st, stages)
			logResults(logger, results)
			if err != nil {
				logger.Error("installation halted; fix the reported problem and re-run install to resume, or run destroy to tear down", "error", err)
				return err
			}

			if err := d.SetupIngress(ctx); err != nil {
				return err
			}

			logger.Info("installation complete", "dashboard", "https://"+cfg.Domain+"/dashboard")
			return nil
		},
	}

	cmd.Flags().Bool("non-interactive", false, "Run without confirmation prompts")
	cmd.Flags().Bool("auto-approve", false, "Skip interactive approval of terraform apply")
	cmd.Flags().String("type", deploy.TypeControlPlane, "Deployment type: control-plane or data-plane")
	cmd.Flags().String("email", "", "Email for the certificate issuer")

	return cmd
}

// ensureInstallInputs collects the domain and issuer email before any stage
// runs. The domain also keys the run state record, so it must be known up
// front. Missing values are prompted for interactively and are a hard error
// in non-interactive mode.
func ensureInstallInputs(cfg *config.Config) error {
	if !cfg.NonInteractive {
		prompter := newTerminalConfirmer()
		if cfg.Domain == "" {
			cfg.Domain = prompter.Prompt("Enter your domain name (e.g. devzero.example.com)")
		}
		if cfg.Email == "" {
			cfg.Email = prompter.Prompt("Enter your email address for the certificate issuer")
		}
	}
	if cfg.Domain == "" {
		return fmt.Errorf("a domain is required, pass --domain or set SELFHOST_DOMAIN")
	}
	if cfg.Email == "" {
		return fmt.Errorf("an email is required, pass --email or set SELFHOST_EMAIL")
	}
	return nil
}
