// Package git wraps the git binary for repository cloning.
package git

import (
	"context"
	"log/slog"
	"os"

	"github.com/devzero-inc/selfhost-cli/internal/execx"
)

// CloneIfAbsent clones url into dir unless dir already exists.
func CloneIfAbsent(ctx context.Context, runner execx.Runner, logger *slog.Logger, url, dir string) error {
	if _, err := os.Stat(dir); err == nil {
		logger.Info("repository already cloned, skipping", "dir", dir)
		return nil
	}
	logger.Info("cloning repository", "url", url, "dir", dir)
	return runner.Run(ctx, execx.Command{Name: "git", Args: []string{"clone", url, dir}})
}
