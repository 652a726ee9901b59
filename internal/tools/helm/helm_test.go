package helm

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devzero-inc/selfhost-cli/internal/execx"
)

type fakeRunner struct {
	commands []execx.Command
	run      func(execx.Command) error
}

func (f *fakeRunner) Run(_ context.Context, cmd execx.Command) error {
	f.commands = append(f.commands, cmd)
	if f.run != nil {
		return f.run(cmd)
	}
	return nil
}

func (f *fakeRunner) Capture(_ context.Context, cmd execx.Command) ([]byte, error) {
	f.commands = append(f.commands, cmd)
	return nil, nil
}

func TestInstallPassesValuesVerbatim(t *testing.T) {
	runner := &fakeRunner{}
	h := New(runner, nil)

	err := h.Install(context.Background(),
		"dz-control-plane",
		"oci://registry.devzero.io/devzero-control-plane/beta/dz-control-plane",
		"devzero",
		false,
		map[string]string{
			"domain":       "example.com",
			"issuer.email": "a@example.com",
		},
	)
	require.NoError(t, err)
	require.Len(t, runner.commands, 1)

	cmd := runner.commands[0]
	require.Equal(t, "helm", cmd.Name)
	joined := strings.Join(cmd.Args, " ")
	require.Contains(t, joined, "--set domain=example.com")
	require.Contains(t, joined, "--set issuer.email=a@example.com")
	require.Contains(t, joined, "-n devzero")
	require.NotContains(t, joined, "--create-namespace")
}

func TestInstallCreateNamespace(t *testing.T) {
	runner := &fakeRunner{}
	h := New(runner, nil)

	err := h.Install(context.Background(), "dz-control-plane-crds", "oci://registry.devzero.io/x/crds", "devzero", true, nil)
	require.NoError(t, err)
	require.Contains(t, strings.Join(runner.commands[0].Args, " "), "--create-namespace")
}

func TestUninstallToleratesMissingRelease(t *testing.T) {
	runner := &fakeRunner{
		run: func(execx.Command) error {
			return &execx.ExitError{Code: 1, Stderr: "Error: uninstall: Release not loaded: dz-control-plane: release: not found"}
		},
	}
	h := New(runner, nil)

	err := h.Uninstall(context.Background(), "dz-control-plane", "devzero")
	require.NoError(t, err)
}

func TestUninstallPropagatesRealFailures(t *testing.T) {
	runner := &fakeRunner{
		run: func(execx.Command) error {
			return &execx.ExitError{Code: 1, Stderr: "Error: connection refused"}
		},
	}
	h := New(runner, nil)

	err := h.Uninstall(context.Background(), "dz-control-plane", "devzero")
	require.Error(t, err)
}

func TestRegistryLoginSendsPasswordOnStdin(t *testing.T) {
	runner := &fakeRunner{}
	h := New(runner, nil)

	err := h.RegistryLogin(context.Background(), "registry.devzero.io", "user@devzero.io", "s3cret")
	require.NoError(t, err)

	cmd := runner.commands[0]
	require.Contains(t, cmd.Args, "--password-stdin")
	require.Equal(t, "s3cret", cmd.Stdin)
	require.NotContains(t, strings.Join(cmd.Args, " "), "s3cret")
}
