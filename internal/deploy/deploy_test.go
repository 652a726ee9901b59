package deploy

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devzero-inc/selfhost-cli/internal/config"
	"github.com/devzero-inc/selfhost-cli/internal/execx"
)

// fakeRunner records every invocation and answers from per-command handlers.
type fakeRunner struct {
	commands []execx.Command
	run      func(execx.Command) error
	capture  func(execx.Command) ([]byte, error)
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
	if f.capture != nil {
		return f.capture(cmd)
	}
	return nil, nil
}

func (f *fakeRunner) invoked(name string) []execx.Command {
	var out []execx.Command
	for _, cmd := range f.commands {
		if cmd.Name == name {
			out = append(out, cmd)
		}
	}
	return out
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Domain:           "example.com",
		Email:            "a@example.com",
		Region:           "us-west-2",
		ClusterName:      "devzero-eks",
		RegistryHost:     "registry.devzero.io",
		RegistryUsername: "user@devzero.io",
		RegistryPassword: "s3cret",
		RepoURL:          config.DefaultRepoURL,
		RepoDir:          filepath.Join(t.TempDir(), "self-hosted-tf"),
		StateDir:         t.TempDir(),
	}
}

func TestDestroyWithNothingProvisioned(t *testing.T) {
	// Every external resource reports "already absent"; teardown must still
	// succeed and terraform must not run against the missing directory.
	origDelete := deleteCreds
	deleteCreds = func(string) error { return nil }
	t.Cleanup(func() { deleteCreds = origDelete })

	runner := &fakeRunner{
		run: func(cmd execx.Command) error {
			return &execx.ExitError{Cmd: cmd, Code: 1, Stderr: "release: not found"}
		},
	}

	d := New(testConfig(t), runner, nil, nil)
	err := d.Destroy(context.Background())
	require.NoError(t, err)
	require.Empty(t, runner.invoked("terraform"))
}

func TestDestroyClearsStoredRegistryCredentials(t *testing.T) {
	origDelete := deleteCreds
	var deleted []string
	deleteCreds = func(host string) error {
		deleted = append(deleted, host)
		return nil
	}
	t.Cleanup(func() { deleteCreds = origDelete })

	d := New(testConfig(t), &fakeRunner{}, nil, nil)
	require.NoError(t, d.Destroy(context.Background()))
	require.Equal(t, []string{"registry.devzero.io"}, deleted)
}

func TestDeployHelmRejectsMissingDomainOrEmail(t *testing.T) {
	// The chart must never be installed with empty --set values.
	tests := []struct {
		desc string
		mut  func(*config.Config)
		want string
	}{
		{desc: "no domain", mut: func(c *config.Config) { c.Domain = "" }, want: "domain"},
		{desc: "no email", mut: func(c *config.Config) { c.Email = "" }, want: "email"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mut(cfg)
			runner := &fakeRunner{}

			d := New(cfg, runner, nil, nil)
			err := d.DeployHelm(context.Background())
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
			require.Empty(t, runner.commands)
		})
	}
}

func TestDeployHelmPassesDomainAndEmailVerbatim(t *testing.T) {
	origSave, origLoad := saveCreds, loadCreds
	saveCreds = func(string, string, string) error { return nil }
	loadCreds = func(string) (string, string, bool) { return "", "", false }
	t.Cleanup(func() { saveCreds, loadCreds = origSave, origLoad })

	runner := &fakeRunner{
		capture: func(cmd execx.Command) ([]byte, error) {
			joined := strings.Join(cmd.Args, " ")
			switch {
			case cmd.Name == "kubectl" && strings.Contains(joined, "get nodes"):
				return []byte("ip-10-0-0-1   Ready   <none>   5m   v1.30.0"), nil
			case cmd.Name == "kubectl" && strings.Contains(joined, "get pods"):
				return []byte("dz-api-0   1/1   Running   0   1m"), nil
			}
			return nil, nil
		},
	}

	d := New(testConfig(t), runner, nil, nil)
	err := d.DeployHelm(context.Background())
	require.NoError(t, err)

	// Kubeconfig was pointed at the configured cluster.
	awsCmds := runner.invoked("aws")
	require.NotEmpty(t, awsCmds)
	require.Contains(t, strings.Join(awsCmds[0].Args, " "), "eks update-kubeconfig --region us-west-2 --name devzero-eks")

	// Both charts installed, with the configured values passed verbatim.
	helmCmds := runner.invoked("helm")
	var installs []string
	for _, cmd := range helmCmds {
		if len(cmd.Args) > 0 && cmd.Args[0] == "install" {
			installs = append(installs, strings.Join(cmd.Args, " "))
		}
	}
	require.Len(t, installs, 2)
	require.Contains(t, installs[1], "--set domain=example.com")
	require.Contains(t, installs[1], "--set issuer.email=a@example.com")
}

func TestDeployHelmRequiresRegistryCredentials(t *testing.T) {
	origLoad := loadCreds
	loadCreds = func(string) (string, string, bool) { return "", "", false }
	t.Cleanup(func() { loadCreds = origLoad })

	cfg := testConfig(t)
	cfg.RegistryUsername = ""
	cfg.RegistryPassword = ""

	runner := &fakeRunner{
		capture: func(cmd execx.Command) ([]byte, error) {
			if cmd.Name == "kubectl" {
				return []byte("ip-10-0-0-1   Ready"), nil
			}
			return nil, nil
		},
	}

	d := New(cfg, runner, nil, nil)
	err := d.DeployHelm(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "SELFHOST_REGISTRY_USERNAME")
	require.Empty(t, runner.invoked("helm"))
}

func TestCheckPermissionsUnknownType(t *testing.T) {
	d := New(testConfig(t), &fakeRunner{}, nil, nil)
	err := d.CheckPermissions(context.Background(), "edge-plane")
	require.Error(t, err)
}

func TestInstallStagesOrderAndDependencies(t *testing.T) {
	d := New(testConfig(t), &fakeRunner{}, nil, nil)
	stages := d.InstallStages(TypeControlPlane, true)

	require.Len(t, stages, 3)
	require.Equal(t, StagePermissions, stages[0].Name)
	require.Equal(t, StageTerraform, stages[1].Name)
	require.Equal(t, StageHelm, stages[2].Name)
	require.Empty(t, stages[0].Needs)
	require.Equal(t, []string{StagePermissions}, stages[1].Needs)
	require.Equal(t, []string{StageTerraform}, stages[2].Needs)

	destroy := d.DestroyStage()
	require.True(t, destroy.Always)
	require.Empty(t, destroy.Needs)
}
