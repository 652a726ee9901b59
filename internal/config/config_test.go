package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(DefaultConfigPath, Overrides{})
	require.NoError(t, err)

	require.Equal(t, DefaultRegion, cfg.Region)
	require.Equal(t, DefaultRegistryHost, cfg.RegistryHost)
	require.Equal(t, DefaultRepoURL, cfg.RepoURL)
	require.Equal(t, DefaultRepoDir, cfg.RepoDir)
	require.NotEmpty(t, cfg.StateDir)
	require.Equal(t, "default", cfg.DeploymentID())
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), Overrides{})
	require.Error(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "selfhost.yaml")
	content := `
domain: example.com
email: a@example.com
region: eu-central-1
registryUsername: user@devzero.io
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, Overrides{})
	require.NoError(t, err)
	require.Equal(t, "example.com", cfg.Domain)
	require.Equal(t, "a@example.com", cfg.Email)
	require.Equal(t, "eu-central-1", cfg.Region)
	require.Equal(t, "user@devzero.io", cfg.RegistryUsername)
	require.Equal(t, "example.com", cfg.DeploymentID())
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "selfhost.yaml")
	require.NoError(t, os.WriteFile(path, []byte("domain: file.example.com\n"), 0o644))

	t.Setenv("SELFHOST_DOMAIN", "env.example.com")
	t.Setenv("SELFHOST_EMAIL", "env@example.com")

	cfg, err := Load(path, Overrides{})
	require.NoError(t, err)
	require.Equal(t, "env.example.com", cfg.Domain)
	require.Equal(t, "env@example.com", cfg.Email)
}

func TestOverridesWinOverEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SELFHOST_DOMAIN", "env.example.com")

	cfg, err := Load(DefaultConfigPath, Overrides{Domain: "flag.example.com"})
	require.NoError(t, err)
	require.Equal(t, "flag.example.com", cfg.Domain)
}

func TestEnvFilesFeedEnvironment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deploy.env"), []byte("SELFHOST_REGION=ap-southeast-2\n"), 0o644))

	path := filepath.Join(dir, "selfhost.yaml")
	require.NoError(t, os.WriteFile(path, []byte("envFiles:\n  - deploy.env\n"), 0o644))

	cfg, err := Load(path, Overrides{})
	require.NoError(t, err)
	require.Equal(t, "ap-southeast-2", cfg.Region)
}

func TestTerraformDir(t *testing.T) {
	cfg := &Config{RepoDir: "self-hosted-tf"}
	require.Equal(t,
		filepath.Join("self-hosted-tf", "examples", "aws", "control-and-data-plane"),
		cfg.TerraformDir(),
	)
}
