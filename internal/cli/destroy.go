package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/devzero-inc/selfhost-cli/internal/config"
	"github.com/devzero-inc/selfhost-cli/internal/pipeline"
)

// newDestroyCommand creates the "destroy" subcommand that tears down all
// provisioned resources regardless of recorded stage state.
func newDestroyCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy all AWS resources created during installation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			force, _ := cmd.Flags().GetBool("force")

			cfg, err := loadConfig(opts, config.Overrides{})
			if err != nil {
				return err
			}

			d, runner, store, st, err := newDeployment(cfg, logger)
			if err != nil {
				return err
			}

			if !force {
				if cfg.NonInteractive {
					return fmt.Errorf("refusing to destroy without confirmation, pass --force")
				}
				confirm := newTerminalConfirmer()
				logger.Warn("this will destroy the EKS cluster, its workloads and all related AWS resources; the action is irreversible")
				if !confirm.ConfirmPhrase("Destroy all provisioned resources?", "destroy") {
					logger.Info("destruction cancelled")
					return nil
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Minute)
			defer cancel()

			results, err := runner.Run(ctx, st, []pipeline.Stage{d.DestroyStage()})
			logResults(logger, results)
			if err != nil {
				return err
			}

			if err := store.Reset(st.Deployment); err != nil {
				return err
			}
			logger.Info("cleanup complete", "deployment", st.Deployment)
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Skip confirmation prompt (use with caution)")

	return cmd
}
