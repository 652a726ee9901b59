package cli

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/devzero-inc/selfhost-cli/internal/config"
	"github.com/devzero-inc/selfhost-cli/internal/execx"
	"github.com/devzero-inc/selfhost-cli/internal/tools/awscli"
	"github.com/devzero-inc/selfhost-cli/internal/tools/terraform"
)

// requiredBinaries are the external tools every installation needs on PATH.
var requiredBinaries = []string{"git", "aws", "terraform", "kubectl", "helm", "dig"}

// newDoctorCommand creates the "doctor" subcommand that runs environment preflight checks.
func newDoctorCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run environment preflight checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			cfg, err := loadConfig(opts, config.Overrides{})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			var fatal []error

			for _, name := range requiredBinaries {
				if _, err := exec.LookPath(name); err != nil {
					logger.Error("required binary not found in PATH", "binary", name)
					fatal = append(fatal, err)
				} else {
					logger.Info("binary found", "binary", name)
				}
			}

			runner := execx.NewLocal(logger)

			if version, err := terraform.New(runner, cfg.TerraformDir(), logger).Version(ctx); err == nil {
				logger.Info("terraform version", "version", version)
			}

			if err := awscli.New(runner, logger).CheckCredentials(ctx); err != nil {
				logger.Error("AWS credential check failed", "error", err)
				fatal = append(fatal, err)
			} else {
				logger.Info("AWS credentials valid")
			}

			if len(fatal) > 0 {
				return errors.Join(fatal...)
			}

			logger.Info("doctor checks completed successfully")
			return nil
		},
	}
}
