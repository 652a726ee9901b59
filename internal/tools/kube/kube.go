// Package kube provides low-level integration with Kubernetes via kubectl.
package kube

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devzero-inc/selfhost-cli/internal/execx"
)

// Client wraps kubectl execution with optional kubeconfig and context selection.
type Client struct {
	runner     execx.Runner
	Kubeconfig string
	Context    string
}

// NewClient constructs a new Kubernetes client wrapper.
func NewClient(runner execx.Runner, kubeconfig, kubeContext string) *Client {
	return &Client{
		runner:     runner,
		Kubeconfig: kubeconfig,
		Context:    kubeContext,
	}
}

// NodesReady reports whether at least one cluster node is Ready.
func (c *Client) NodesReady(ctx context.Context) (bool, error) {
	out, err := c.capture(ctx, "get", "nodes")
	if err != nil {
		return false, err
	}
	return strings.Contains(string(out), "Ready"), nil
}

// WaitForNodes polls until a cluster node reports Ready or ctx expires.
// Errors from kubectl are tolerated while the cluster comes up.
func (c *Client) WaitForNodes(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	for {
		ready, err := c.NodesReady(ctx)
		if err == nil && ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for cluster nodes: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
}

// PodsRunning reports whether pods in the namespace are Running, returning the
// raw listing for diagnostics.
func (c *Client) PodsRunning(ctx context.Context, namespace string) (bool, string, error) {
	out, err := c.capture(ctx, "get", "pods", "-n", namespace)
	if err != nil {
		return false, "", err
	}
	listing := string(out)
	return strings.Contains(listing, "Running"), listing, nil
}

// IngressHostname returns the load balancer hostname of the first ingress in
// the namespace, or empty when it is not assigned yet.
func (c *Client) IngressHostname(ctx context.Context, namespace string) (string, error) {
	out, err := c.capture(ctx,
		"get", "ingress", "-n", namespace,
		"-o", "jsonpath={.items[0].status.loadBalancer.ingress[0].hostname}",
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// DeleteNamespace removes a namespace and everything in it. A namespace that
// does not exist counts as success.
func (c *Client) DeleteNamespace(ctx context.Context, namespace, timeout string) error {
	if timeout == "" {
		timeout = "5m"
	}
	err := c.run(ctx, "delete", "namespace", namespace, "--ignore-not-found", fmt.Sprintf("--timeout=%s", timeout))
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

func (c *Client) run(ctx context.Context, args ...string) error {
	return c.runner.Run(ctx, c.command(args))
}

func (c *Client) capture(ctx context.Context, args ...string) ([]byte, error) {
	return c.runner.Capture(ctx, c.command(args))
}

func (c *Client) command(args []string) execx.Command {
	cmdArgs := make([]string, 0, len(args)+2)
	if c.Context != "" {
		cmdArgs = append(cmdArgs, "--context", c.Context)
	}
	cmdArgs = append(cmdArgs, args...)

	cmd := execx.Command{Name: "kubectl", Args: cmdArgs}
	if c.Kubeconfig != "" {
		cmd.Env = []string{"KUBECONFIG=" + c.Kubeconfig}
	}
	return cmd
}

func isNotFound(err error) bool {
	var exitErr *execx.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	return strings.Contains(strings.ToLower(exitErr.Stderr), "not found")
}
