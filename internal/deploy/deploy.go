// Package deploy wires the external tools into the concrete control plane
// deployment stages.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/devzero-inc/selfhost-cli/internal/config"
	"github.com/devzero-inc/selfhost-cli/internal/creds"
	"github.com/devzero-inc/selfhost-cli/internal/dns"
	"github.com/devzero-inc/selfhost-cli/internal/execx"
	"github.com/devzero-inc/selfhost-cli/internal/pipeline"
	"github.com/devzero-inc/selfhost-cli/internal/tools/awscli"
	"github.com/devzero-inc/selfhost-cli/internal/tools/git"
	"github.com/devzero-inc/selfhost-cli/internal/tools/helm"
	"github.com/devzero-inc/selfhost-cli/internal/tools/kube"
	"github.com/devzero-inc/selfhost-cli/internal/tools/terraform"
)

// Stage names as recorded in run state.
const (
	StagePermissions = "check-permissions"
	StageTerraform   = "setup-terraform"
	StageHelm        = "deploy-helm"
	StageDestroy     = "destroy"
)

// Deployment types accepted by the permissions checker.
const (
	TypeControlPlane = "control-plane"
	TypeDataPlane    = "data-plane"
)

const (
	permissionsScript = "examples/permissions.sh"

	crdsRelease  = "dz-control-plane-crds"
	chartRelease = "dz-control-plane"
	chartRepo    = "devzero-control-plane/beta"

	ingressAttempts = 30
	ingressInterval = 10 * time.Second
)

// Confirmer asks the operator a yes/no question. A nil Confirmer means
// non-interactive operation with safe defaults.
type Confirmer interface {
	Confirm(prompt string) bool
}

// Deployment binds configuration and tool wrappers for one control plane.
type Deployment struct {
	cfg    *config.Config
	runner execx.Runner
	logger *slog.Logger

	tf   *terraform.CLI
	aws  *awscli.CLI
	helm *helm.CLI
	kube *kube.Client
	dns  *dns.Checker

	confirm Confirmer
}

// New constructs a Deployment for the given configuration.
func New(cfg *config.Config, runner execx.Runner, logger *slog.Logger, confirm Confirmer) *Deployment {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployment{
		cfg:     cfg,
		runner:  runner,
		logger:  logger,
		tf:      terraform.New(runner, cfg.TerraformDir(), logger),
		aws:     awscli.New(runner, logger),
		helm:    helm.New(runner, logger),
		kube:    kube.NewClient(runner, "", ""),
		dns:     dns.NewChecker(runner, logger),
		confirm: confirm,
	}
}

// InstallStages returns the full pipeline in dependency order.
func (d *Deployment) InstallStages(deploymentType string, autoApprove bool) []pipeline.Stage {
	return []pipeline.Stage{
		d.PermissionsStage(deploymentType),
		d.TerraformStage(autoApprove),
		d.HelmStage(),
	}
}

// PermissionsStage verifies AWS permissions using the checker script shipped
// with the Terraform repository, cloning the repository first when needed.
func (d *Deployment) PermissionsStage(deploymentType string) pipeline.Stage {
	return pipeline.Stage{
		Name: StagePermissions,
		Run: func(ctx context.Context) error {
			return d.CheckPermissions(ctx, deploymentType)
		},
	}
}

// TerraformStage provisions AWS infrastructure.
func (d *Deployment) TerraformStage(autoApprove bool) pipeline.Stage {
	return pipeline.Stage{
		Name:  StageTerraform,
		Needs: []string{StagePermissions},
		Run: func(ctx context.Context) error {
			return d.SetupTerraform(ctx, autoApprove)
		},
	}
}

// HelmStage deploys the control plane charts onto the provisioned cluster.
func (d *Deployment) HelmStage() pipeline.Stage {
	return pipeline.Stage{
		Name:  StageHelm,
		Needs: []string{StageTerraform},
		Run:   d.DeployHelm,
	}
}

// DestroyStage tears everything down regardless of recorded stage state.
func (d *Deployment) DestroyStage() pipeline.Stage {
	return pipeline.Stage{
		Name:   StageDestroy,
		Always: true,
		Run:    d.Destroy,
	}
}

// CheckPermissions clones the Terraform repository when absent and runs its
// permissions checker, feeding the deployment type selection on stdin.
func (d *Deployment) CheckPermissions(ctx context.Context, deploymentType string) error {
	selection, err := typeSelection(deploymentType)
	if err != nil {
		return err
	}

	if err := git.CloneIfAbsent(ctx, d.runner, d.logger, d.cfg.RepoURL, d.cfg.RepoDir); err != nil {
		return fmt.Errorf("clone %s: %w", d.cfg.RepoURL, err)
	}

	script := filepath.Join(d.cfg.RepoDir, filepath.FromSlash(permissionsScript))
	if _, err := os.Stat(script); err != nil {
		return fmt.Errorf("permissions checker %s not found, the repository may be corrupted: %w", script, err)
	}
	if err := os.Chmod(script, 0o755); err != nil {
		return fmt.Errorf("make %s executable: %w", script, err)
	}

	d.logger.Info("running permissions checker", "type", deploymentType)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	err = d.runner.Run(ctx, execx.Command{
		Name:  "./" + permissionsScript,
		Dir:   d.cfg.RepoDir,
		Stdin: selection + "\n",
	})
	if err != nil {
		var exitErr *execx.ExitError
		if errors.As(err, &exitErr) {
			return &pipeline.PermissionError{Detail: exitErr.Stderr}
		}
		return err
	}

	d.logger.Info("permissions check completed successfully")
	return nil
}

// SetupTerraform provisions AWS infrastructure: prerequisite checks, then
// init, plan and apply. When autoApprove is false the operator confirms before
// apply.
func (d *Deployment) SetupTerraform(ctx context.Context, autoApprove bool) error {
	if err := d.checkTerraformPrereqs(ctx); err != nil {
		return err
	}

	version, err := d.tf.Version(ctx)
	if err != nil {
		return err
	}
	d.logger.Info("terraform installed", "version", version)

	if err := d.tf.Init(ctx); err != nil {
		return fmt.Errorf("terraform init: %w", err)
	}
	if err := d.tf.Plan(ctx); err != nil {
		return fmt.Errorf("terraform plan: %w", err)
	}

	if !autoApprove && d.confirm != nil {
		if !d.confirm.Confirm("Continue with terraform apply?") {
			return fmt.Errorf("terraform apply cancelled by operator")
		}
		autoApprove = true
	}

	if err := d.tf.Apply(ctx, autoApprove); err != nil {
		return fmt.Errorf("terraform apply: %w", err)
	}

	outputs, err := d.tf.Outputs(ctx)
	if err != nil {
		d.logger.Warn("could not read terraform outputs", "error", err)
		return nil
	}
	for k, v := range outputs {
		d.logger.Info("terraform output", "name", k, "value", v)
	}
	return nil
}

// checkTerraformPrereqs verifies the repository layout and AWS credentials
// before any terraform command runs.
func (d *Deployment) checkTerraformPrereqs(ctx context.Context) error {
	dir := d.cfg.TerraformDir()
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("terraform directory %s not found, run check-permissions first: %w", dir, err)
	}
	for _, name := range []string{"main.tf", "variables.tf"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("required file %s missing in %s, the repository may be corrupted: %w", name, dir, err)
		}
	}
	return d.aws.CheckCredentials(ctx)
}

// DeployHelm configures cluster access, authenticates against the chart
// registry and installs the control plane charts.
func (d *Deployment) DeployHelm(ctx context.Context) error {
	if d.cfg.Domain == "" {
		return fmt.Errorf("a domain is required before deploying the control plane chart, set SELFHOST_DOMAIN")
	}
	if d.cfg.Email == "" {
		return fmt.Errorf("an issuer email is required before deploying the control plane chart, set SELFHOST_EMAIL")
	}

	clusterName, region, err := d.resolveCluster(ctx)
	if err != nil {
		return err
	}

	if err := d.aws.UpdateKubeconfig(ctx, region, clusterName); err != nil {
		return fmt.Errorf("update kubeconfig for cluster %s: %w", clusterName, err)
	}

	d.logger.Info("waiting for cluster nodes to become ready", "cluster", clusterName)
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()
	if err := d.kube.WaitForNodes(waitCtx, 10*time.Second); err != nil {
		return err
	}

	if err := d.registryLogin(ctx); err != nil {
		return err
	}

	chartBase := fmt.Sprintf("oci://%s/%s", d.cfg.RegistryHost, chartRepo)

	if err := d.helm.Install(ctx, crdsRelease, chartBase+"/"+crdsRelease, config.DefaultNamespace, true, nil); err != nil {
		return fmt.Errorf("install control plane CRDs: %w", err)
	}

	values := map[string]string{
		"domain":       d.cfg.Domain,
		"issuer.email": d.cfg.Email,
	}
	if err := d.helm.Install(ctx, chartRelease, chartBase+"/"+chartRelease, config.DefaultNamespace, false, values); err != nil {
		return fmt.Errorf("install control plane chart: %w", err)
	}

	running, listing, err := d.kube.PodsRunning(ctx, config.DefaultNamespace)
	if err != nil {
		return fmt.Errorf("verify installation: %w", err)
	}
	if !running {
		d.logger.Warn("some pods are not running yet", "namespace", config.DefaultNamespace, "pods", listing)
	} else {
		d.logger.Info("all pods are running", "namespace", config.DefaultNamespace)
	}
	return nil
}

// resolveCluster returns the cluster name and region, preferring explicit
// configuration and falling back to terraform outputs.
func (d *Deployment) resolveCluster(ctx context.Context) (clusterName, region string, err error) {
	clusterName = d.cfg.ClusterName
	region = d.cfg.Region

	if clusterName == "" {
		outputs, err := d.tf.Outputs(ctx)
		if err != nil {
			return "", "", fmt.Errorf("cluster name not configured and terraform outputs unavailable: %w", err)
		}
		clusterName = outputs["eks_cluster_name"]
		if r := outputs["aws_region"]; r != "" {
			region = r
		}
	}
	if clusterName == "" {
		return "", "", fmt.Errorf("EKS cluster name is unknown, set clusterName or SELFHOST_CLUSTER_NAME")
	}

	d.logger.Info("using cluster", "cluster", clusterName, "region", region)
	return clusterName, region, nil
}

// Keyring access, overridable in tests.
var (
	saveCreds   = creds.Save
	loadCreds   = creds.Load
	deleteCreds = creds.Delete
)

// registryLogin authenticates against the Helm registry using configured
// credentials, falling back to the OS keyring. Fresh credentials are stored
// back after a successful login.
func (d *Deployment) registryLogin(ctx context.Context) error {
	username := d.cfg.RegistryUsername
	password := d.cfg.RegistryPassword
	fromKeyring := false

	if username == "" || password == "" {
		u, p, ok := loadCreds(d.cfg.RegistryHost)
		if !ok {
			return fmt.Errorf(
				"no Helm registry credentials for %s: set SELFHOST_REGISTRY_USERNAME and SELFHOST_REGISTRY_PASSWORD",
				d.cfg.RegistryHost,
			)
		}
		username, password = u, p
		fromKeyring = true
	}

	if err := d.helm.RegistryLogin(ctx, d.cfg.RegistryHost, username, password); err != nil {
		return err
	}

	if !fromKeyring {
		if err := saveCreds(d.cfg.RegistryHost, username, password); err != nil {
			d.logger.Warn("could not store registry credentials in keyring", "error", err)
		}
	}
	return nil
}

// Destroy tears down everything the pipeline provisioned. Each step tolerates
// resources that are already absent so teardown is idempotent.
func (d *Deployment) Destroy(ctx context.Context) error {
	for _, release := range []string{chartRelease, crdsRelease} {
		if err := d.helm.Uninstall(ctx, release, config.DefaultNamespace); err != nil {
			d.logger.Warn("helm uninstall failed, continuing teardown", "release", release, "error", err)
		}
	}

	if err := d.kube.DeleteNamespace(ctx, config.DefaultNamespace, "5m"); err != nil {
		d.logger.Warn("namespace deletion failed, continuing teardown", "namespace", config.DefaultNamespace, "error", err)
	}

	if err := d.tf.Destroy(ctx); err != nil {
		return fmt.Errorf("terraform destroy: %w", err)
	}

	if err := deleteCreds(d.cfg.RegistryHost); err != nil {
		d.logger.Warn("could not remove registry credentials from keyring", "host", d.cfg.RegistryHost, "error", err)
	}

	d.logger.Info("all provisioned resources destroyed")
	return nil
}

// SetupIngress waits for the ingress load balancer, prints the Route 53
// records to create, and optionally waits for DNS propagation. DNS delays are
// reported as warnings, never as pipeline failures.
func (d *Deployment) SetupIngress(ctx context.Context) error {
	if d.cfg.Domain == "" {
		return nil
	}

	hostname, err := d.waitForIngress(ctx)
	if err != nil {
		return err
	}

	d.logger.Info("configure the following Route 53 records", "domain", d.cfg.Domain)
	d.logger.Info("CNAME record", "name", "*."+d.cfg.Domain, "value", hostname, "ttl", "300")
	d.logger.Info("A (alias) record", "name", d.cfg.Domain, "value", "dualstack."+hostname)

	if d.confirm != nil && d.confirm.Confirm("Wait for DNS propagation?") {
		if _, err := d.dns.WaitForPropagation(ctx, d.cfg.Domain, 0); err != nil {
			return err
		}
	}

	d.logger.Info("control plane dashboard", "url", "https://"+d.cfg.Domain+"/dashboard")
	return nil
}

// waitForIngress polls until the ingress service reports a hostname.
func (d *Deployment) waitForIngress(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= ingressAttempts; attempt++ {
		hostname, err := d.kube.IngressHostname(ctx, config.DefaultNamespace)
		if err == nil && hostname != "" {
			d.logger.Info("ingress address found", "hostname", hostname)
			return hostname, nil
		}
		d.logger.Info("waiting for ingress service", "attempt", attempt, "max", ingressAttempts)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(ingressInterval):
		}
	}
	return "", fmt.Errorf("timed out waiting for ingress address in namespace %s", config.DefaultNamespace)
}

// typeSelection maps a deployment type onto the checker's menu selection.
func typeSelection(deploymentType string) (string, error) {
	switch deploymentType {
	case "", TypeControlPlane:
		return "1", nil
	case TypeDataPlane:
		return "2", nil
	}
	return "", fmt.Errorf("unknown deployment type %q, expected %s or %s", deploymentType, TypeControlPlane, TypeDataPlane)
}
