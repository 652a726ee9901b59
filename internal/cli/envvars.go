package cli

import (
	"github.com/spf13/cobra"

	envparse "github.com/caarlos0/env/v11"
)

// baseEnv defines root CLI defaults sourced from SELFHOST_* env vars.
type baseEnv struct {
	// ConfigPath is the configuration file path from SELFHOST_CONFIG.
	ConfigPath string `env:"SELFHOST_CONFIG"`
	// StateDir is the run state directory from SELFHOST_STATE_DIR.
	StateDir string `env:"SELFHOST_STATE_DIR"`
	// Domain is the deployment domain from SELFHOST_DOMAIN.
	Domain string `env:"SELFHOST_DOMAIN"`
	// LogLevel is the logging level from SELFHOST_LOG_LEVEL.
	LogLevel string `env:"SELFHOST_LOG_LEVEL"`
}

// applyEnvDefaults fills root options from SELFHOST_* env vars for flags the
// operator did not set explicitly.
func applyEnvDefaults(cmd *cobra.Command, opts *Options) {
	var base baseEnv
	if err := envparse.Parse(&base); err != nil {
		return
	}

	if base.ConfigPath != "" && !cmd.Flag("config").Changed {
		opts.ConfigPath = base.ConfigPath
	}
	if base.StateDir != "" && !cmd.Flag("state-dir").Changed {
		opts.StateDir = base.StateDir
	}
	if base.Domain != "" && !cmd.Flag("domain").Changed {
		opts.Domain = base.Domain
	}
	if base.LogLevel != "" && !cmd.Flag("log-level").Changed {
		_ = cmd.Flag("log-level").Value.Set(base.LogLevel)
	}
}
