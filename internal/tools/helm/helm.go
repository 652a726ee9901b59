// Package helm wraps the helm binary for chart installs against an OCI registry.
package helm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/devzero-inc/selfhost-cli/internal/execx"
)

// CLI runs helm commands.
type CLI struct {
	runner execx.Runner
	logger *slog.Logger
}

// New constructs a helm CLI wrapper.
func New(runner execx.Runner, logger *slog.Logger) *CLI {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLI{runner: runner, logger: logger}
}

// RegistryLogin authenticates against an OCI chart registry. The password is
// passed via stdin so it never appears in the process list.
func (c *CLI) RegistryLogin(ctx context.Context, host, username, password string) error {
	c.logger.Info("logging in to helm registry", "host", host, "username", username)
	err := c.runner.Run(ctx, execx.Command{
		Name:  "helm",
		Args:  []string{"registry", "login", host, "--username", username, "--password-stdin"},
		Stdin: password,
	})
	if err != nil {
		return fmt.Errorf("helm registry login to %s failed, check your credentials: %w", host, err)
	}
	return nil
}

// Install installs a chart release into a namespace. Values in set are passed
// as --set key=value flags in sorted key order.
func (c *CLI) Install(ctx context.Context, release, chart, namespace string, createNamespace bool, set map[string]string) error {
	args := []string{"install", release, chart, "-n", namespace}
	if createNamespace {
		args = append(args, "--create-namespace")
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--set", fmt.Sprintf("%s=%s", k, set[k]))
	}

	c.logger.Info("installing helm release", "release", release, "chart", chart, "namespace", namespace)
	return c.runner.Run(ctx, execx.Command{Name: "helm", Args: args})
}

// Uninstall removes a release. A release that does not exist counts as success.
func (c *CLI) Uninstall(ctx context.Context, release, namespace string) error {
	c.logger.Info("uninstalling helm release", "release", release, "namespace", namespace)
	err := c.runner.Run(ctx, execx.Command{
		Name: "helm",
		Args: []string{"uninstall", release, "-n", namespace},
	})
	if err != nil && isNotFound(err) {
		c.logger.Info("helm release not found, nothing to uninstall", "release", release)
		return nil
	}
	return err
}

// isNotFound reports whether err is helm's "release not found" failure.
func isNotFound(err error) bool {
	var exitErr *execx.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	return strings.Contains(strings.ToLower(exitErr.Stderr), "not found")
}
