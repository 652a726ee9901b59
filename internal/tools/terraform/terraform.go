// Package terraform wraps the terraform binary for provisioning and teardown.
package terraform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/devzero-inc/selfhost-cli/internal/execx"
)

// retryableErrors are AWS-side failures worth retrying during apply.
var retryableErrors = []string{
	"VcpuLimitExceeded",
	"CREATE_FAILED",
	"RequestLimitExceeded",
	"Throttling",
	"ServiceUnavailable",
}

const (
	applyAttempts = 3
	applyBackoff  = 30 * time.Second
)

// CLI runs terraform in a fixed working directory.
type CLI struct {
	runner execx.Runner
	dir    string
	logger *slog.Logger

	// backoff between apply attempts; overridable in tests.
	backoff time.Duration
}

// New constructs a terraform CLI wrapper rooted at dir.
func New(runner execx.Runner, dir string, logger *slog.Logger) *CLI {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLI{runner: runner, dir: dir, logger: logger, backoff: applyBackoff}
}

// Version returns the first line of `terraform --version`, verifying the
// binary is installed.
func (c *CLI) Version(ctx context.Context) (string, error) {
	out, err := c.runner.Capture(ctx, execx.Command{Name: "terraform", Args: []string{"--version"}})
	if err != nil {
		return "", fmt.Errorf("terraform is not installed or not on PATH: %w", err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return line, nil
}

// Init runs terraform init.
func (c *CLI) Init(ctx context.Context) error {
	return c.runner.Run(ctx, execx.Command{Name: "terraform", Args: []string{"init"}, Dir: c.dir})
}

// Plan runs terraform plan.
func (c *CLI) Plan(ctx context.Context) error {
	return c.runner.Run(ctx, execx.Command{Name: "terraform", Args: []string{"plan"}, Dir: c.dir})
}

// Apply runs terraform apply, retrying on transient AWS-side failures such as
// throttling or vCPU limit errors.
func (c *CLI) Apply(ctx context.Context, autoApprove bool) error {
	args := []string{"apply"}
	if autoApprove {
		args = append(args, "-auto-approve")
	}

	return retry.Do(
		func() error {
			return c.runner.Run(ctx, execx.Command{Name: "terraform", Args: args, Dir: c.dir})
		},
		retry.Context(ctx),
		retry.Attempts(applyAttempts),
		retry.Delay(c.backoff),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retryable error during terraform apply", "attempt", n+1, "error", err)
		}),
	)
}

// Destroy runs terraform destroy -auto-approve. A missing working directory
// means nothing was ever provisioned, which counts as success.
func (c *CLI) Destroy(ctx context.Context) error {
	if _, err := os.Stat(c.dir); errors.Is(err, os.ErrNotExist) {
		c.logger.Info("terraform directory absent, nothing to destroy", "dir", c.dir)
		return nil
	}
	return c.runner.Run(ctx, execx.Command{Name: "terraform", Args: []string{"destroy", "-auto-approve"}, Dir: c.dir})
}

// Outputs returns `terraform output -json` as a flat string map.
func (c *CLI) Outputs(ctx context.Context) (map[string]string, error) {
	out, err := c.runner.Capture(ctx, execx.Command{Name: "terraform", Args: []string{"output", "-json"}, Dir: c.dir})
	if err != nil {
		return nil, fmt.Errorf("read terraform outputs: %w", err)
	}

	var raw map[string]struct {
		Value any `json:"value"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("decode terraform outputs: %w", err)
	}

	outputs := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.Value.(type) {
		case string:
			outputs[k] = val
		case nil:
		default:
			outputs[k] = fmt.Sprintf("%v", val)
		}
	}
	return outputs, nil
}

// IsRetryable reports whether err matches a known transient AWS failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range retryableErrors {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
