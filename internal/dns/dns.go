// Package dns checks DNS propagation for the control plane domain via dig.
package dns

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/devzero-inc/selfhost-cli/internal/execx"
)

const (
	defaultMaxAttempts = 30
	initialWait        = 20 * time.Second
	maxWait            = 60 * time.Second
)

// Checker polls DNS records until the domain resolves.
type Checker struct {
	runner execx.Runner
	logger *slog.Logger
}

// NewChecker constructs a Checker.
func NewChecker(runner execx.Runner, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{runner: runner, logger: logger}
}

// WaitForPropagation polls the A record of domain and the wildcard CNAME until
// either resolves, waiting longer between attempts up to a cap. It returns
// false without error when records have not propagated within maxAttempts;
// callers treat that as a warning, not a failure.
func (c *Checker) WaitForPropagation(ctx context.Context, domain string, maxAttempts int) (bool, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	wait := initialWait
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if c.resolves(ctx, "A", domain) || c.resolves(ctx, "CNAME", "*."+domain) {
			c.logger.Info("DNS records have propagated", "domain", domain)
			return true, nil
		}

		c.logger.Info("waiting for DNS propagation", "domain", domain, "attempt", attempt, "max", maxAttempts, "wait", wait)
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(wait):
		}

		wait = min(time.Duration(float64(wait)*1.5), maxWait)
	}

	c.logger.Warn("DNS propagation is taking longer than expected; it can take up to 48 hours", "domain", domain)
	return false, nil
}

// resolves reports whether dig returns a non-empty answer for the record.
func (c *Checker) resolves(ctx context.Context, recordType, name string) bool {
	out, err := c.runner.Capture(ctx, execx.Command{
		Name: "dig",
		Args: []string{"+short", recordType, name},
	})
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) != ""
}
