// Package config contains the loader and strongly typed model for the
// deployment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	envparse "github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/devzero-inc/selfhost-cli/internal/env"
)

const (
	// DefaultConfigPath is the default deployment configuration file.
	DefaultConfigPath = "selfhost.yaml"

	// DefaultRepoURL is the Terraform modules repository cloned during the
	// permission-check stage.
	DefaultRepoURL = "https://github.com/devzero-inc/self-hosted-tf.git"
	// DefaultRepoDir is the local clone directory for the Terraform repository.
	DefaultRepoDir = "self-hosted-tf"
	// DefaultRegistryHost is the Helm OCI registry serving control plane charts.
	DefaultRegistryHost = "registry.devzero.io"
	// DefaultRegion is used when no AWS region is configured.
	DefaultRegion = "us-west-2"
	// DefaultNamespace is the Kubernetes namespace for control plane workloads.
	DefaultNamespace = "devzero"
)

// terraformExample is the repository subdirectory holding the deployed example.
const terraformExample = "examples/aws/control-and-data-plane"

// Config holds the user-supplied parameters threaded through all stages.
// Sources are merged in order: defaults, YAML config file, .env files,
// SELFHOST_* environment variables, then command-line flags.
type Config struct {
	// Domain is the control plane domain name and the deployment identifier.
	Domain string `yaml:"domain" env:"SELFHOST_DOMAIN"`
	// Email is the certificate issuer contact.
	Email string `yaml:"email" env:"SELFHOST_EMAIL"`
	// Region is the AWS region of the EKS cluster.
	Region string `yaml:"region" env:"SELFHOST_REGION"`
	// ClusterName overrides the EKS cluster name from Terraform outputs.
	ClusterName string `yaml:"clusterName" env:"SELFHOST_CLUSTER_NAME"`

	// RegistryHost is the Helm OCI registry host.
	RegistryHost string `yaml:"registryHost" env:"SELFHOST_REGISTRY_HOST"`
	// RegistryUsername authenticates against the Helm registry.
	RegistryUsername string `yaml:"registryUsername" env:"SELFHOST_REGISTRY_USERNAME"`
	// RegistryPassword authenticates against the Helm registry.
	// Prefer the OS keyring or env over placing it in the config file.
	RegistryPassword string `yaml:"registryPassword" env:"SELFHOST_REGISTRY_PASSWORD"`

	// RepoURL is the Terraform modules repository.
	RepoURL string `yaml:"repoURL" env:"SELFHOST_REPO_URL"`
	// RepoDir is the local clone directory.
	RepoDir string `yaml:"repoDir" env:"SELFHOST_REPO_DIR"`

	// StateDir is where per-deployment run state files live.
	StateDir string `yaml:"stateDir" env:"SELFHOST_STATE_DIR"`

	// EnvFiles lists .env files loaded before environment parsing.
	EnvFiles []string `yaml:"envFiles,omitempty"`

	// NonInteractive disables confirmation prompts.
	NonInteractive bool `yaml:"nonInteractive" env:"SELFHOST_NON_INTERACTIVE"`
}

// TerraformDir returns the working directory for terraform invocations.
func (c *Config) TerraformDir() string {
	return filepath.Join(c.RepoDir, filepath.FromSlash(terraformExample))
}

// DeploymentID returns the identifier used to key run state records.
func (c *Config) DeploymentID() string {
	if strings.TrimSpace(c.Domain) == "" {
		return "default"
	}
	return c.Domain
}

// Overrides carries flag-level values that win over every other source.
type Overrides struct {
	Domain         string
	Email          string
	Region         string
	ClusterName    string
	StateDir       string
	NonInteractive bool
}

// Load builds the effective configuration. The config file is optional when
// path is the default location; an explicitly named file must exist.
func Load(path string, overrides Overrides) (*Config, error) {
	cfg := defaults()

	explicit := path != "" && path != DefaultConfigPath
	if path == "" {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No config file is fine; env and flags may carry everything.
	default:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	fileVars, err := env.LoadEnvFiles(filepath.Dir(path), cfg.EnvFiles)
	if err != nil {
		return nil, err
	}
	environment := env.Merge(fileVars, env.FromOS())

	if err := envparse.ParseWithOptions(cfg, envparse.Options{Environment: environment}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	applyOverrides(cfg, overrides)

	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir()
	}

	return cfg, nil
}

// defaults returns a Config with all baseline values set.
func defaults() *Config {
	return &Config{
		Region:       DefaultRegion,
		RegistryHost: DefaultRegistryHost,
		RepoURL:      DefaultRepoURL,
		RepoDir:      DefaultRepoDir,
	}
}

func applyOverrides(cfg *Config, o Overrides) {
	if o.Domain != "" {
		cfg.Domain = o.Domain
	}
	if o.Email != "" {
		cfg.Email = o.Email
	}
	if o.Region != "" {
		cfg.Region = o.Region
	}
	if o.ClusterName != "" {
		cfg.ClusterName = o.ClusterName
	}
	if o.StateDir != "" {
		cfg.StateDir = o.StateDir
	}
	if o.NonInteractive {
		cfg.NonInteractive = true
	}
}

// defaultStateDir places run state under the user's home directory,
// falling back to the working directory when home is unknown.
func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".selfhost-cli"
	}
	return filepath.Join(home, ".selfhost-cli", "state")
}
