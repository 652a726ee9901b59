package cli

import (
	"log/slog"

	"github.com/devzero-inc/selfhost-cli/internal/config"
	"github.com/devzero-inc/selfhost-cli/internal/deploy"
	"github.com/devzero-inc/selfhost-cli/internal/execx"
	"github.com/devzero-inc/selfhost-cli/internal/pipeline"
	"github.com/devzero-inc/selfhost-cli/internal/state"
)

// loadConfig builds the effective configuration from the config file,
// environment and root/command flags.
func loadConfig(opts *Options, overrides config.Overrides) (*config.Config, error) {
	if overrides.Domain == "" {
		overrides.Domain = opts.Domain
	}
	if overrides.StateDir == "" {
		overrides.StateDir = opts.StateDir
	}
	return config.Load(opts.ConfigPath, overrides)
}

// openState loads the persisted run state for the configured deployment.
// A corrupt state file aborts here, before any external tool runs.
func openState(cfg *config.Config, logger *slog.Logger) (*state.Store, *state.RunState, error) {
	store := state.NewStore(cfg.StateDir, logger)
	st, err := store.Load(cfg.DeploymentID())
	if err != nil {
		return nil, nil, err
	}
	return store, st, nil
}

// newDeployment wires the stage runner and deployment for a command.
func newDeployment(cfg *config.Config, logger *slog.Logger) (*deploy.Deployment, *pipeline.Runner, *state.Store, *state.RunState, error) {
	store, st, err := openState(cfg, logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	runner := execx.NewLocal(logger)

	var confirm deploy.Confirmer
	if !cfg.NonInteractive {
		confirm = newTerminalConfirmer()
	}

	d := deploy.New(cfg, runner, logger, confirm)
	return d, pipeline.NewRunner(store, logger), store, st, nil
}

// logResults reports per-stage outcomes after a pipeline run.
func logResults(logger *slog.Logger, results []pipeline.Result) {
	for _, res := range results {
		switch res.Status {
		case pipeline.Skipped:
			logger.Info("stage skipped (already completed)", "stage", res.Stage)
		case pipeline.Succeeded:
			logger.Info("stage succeeded", "stage", res.Stage)
		case pipeline.Failed:
			logger.Error("stage failed", "stage", res.Stage, "error", res.Err)
		}
	}
}
