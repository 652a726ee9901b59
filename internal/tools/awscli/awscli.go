// Package awscli wraps the aws binary for credential and EKS access setup.
package awscli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/devzero-inc/selfhost-cli/internal/execx"
)

// CLI runs aws commands against the configured credentials.
type CLI struct {
	runner execx.Runner
	logger *slog.Logger
}

// New constructs an aws CLI wrapper.
func New(runner execx.Runner, logger *slog.Logger) *CLI {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLI{runner: runner, logger: logger}
}

// CheckCredentials verifies the configured AWS credentials are valid.
func (c *CLI) CheckCredentials(ctx context.Context) error {
	_, err := c.runner.Capture(ctx, execx.Command{
		Name: "aws",
		Args: []string{"sts", "get-caller-identity"},
	})
	if err != nil {
		return fmt.Errorf("AWS credentials not configured or invalid: %w", err)
	}
	return nil
}

// UpdateKubeconfig points kubectl at the given EKS cluster.
func (c *CLI) UpdateKubeconfig(ctx context.Context, region, clusterName string) error {
	c.logger.Info("updating kubeconfig", "cluster", clusterName, "region", region)
	return c.runner.Run(ctx, execx.Command{
		Name: "aws",
		Args: []string{"eks", "update-kubeconfig", "--region", region, "--name", clusterName},
	})
}
