// Package bootstrap runs the end-to-end provisioning sequence: manifest →
// sessions → Azure state storage and service identity → repositories and
// deploy keys → secret propagation → workflow render/publish/trigger. Stages
// run strictly in order; the first fatal error aborts the run. There is no
// rollback: every step existence-checks, so a re-run skips completed work.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/xpertslabs/docstrap/internal/cloud/azure"
	"github.com/xpertslabs/docstrap/internal/cloud/naming"
	"github.com/xpertslabs/docstrap/internal/githost"
	"github.com/xpertslabs/docstrap/internal/keys"
	"github.com/xpertslabs/docstrap/internal/models"
	"github.com/xpertslabs/docstrap/internal/retry"
	"github.com/xpertslabs/docstrap/internal/workflow"
)

// Options holds the CLI-level knobs for a bootstrap run.
type Options struct {
	ManifestPath string
	SkipTrigger  bool
}

// Runner drives one bootstrap run. Sessions and intermediate outputs are
// threaded through explicitly; nothing here relies on ambient CLI state.
type Runner struct {
	opts     Options
	manifest *models.Manifest
	azSess   *azure.Session
	ghSess   *githost.Session
}

// Run executes the full bootstrap sequence.
func Run(ctx context.Context, opts Options) error {
	r := &Runner{opts: opts}

	if err := r.loadConfig(); err != nil {
		return err
	}
	if err := r.establishSessions(ctx); err != nil {
		return err
	}
	storage, identity, err := r.provisionResources(ctx)
	if err != nil {
		return err
	}
	pairs, err := r.prepareRepositories(ctx)
	if err != nil {
		return err
	}
	if err := r.propagateSecrets(ctx, storage, identity, pairs); err != nil {
		return err
	}
	if err := r.publishWorkflow(ctx); err != nil {
		return err
	}

	fmt.Printf("🎉 Bootstrap for project '%s' completed successfully!\n", r.manifest.ProjectName)
	return nil
}

func (r *Runner) loadConfig() error {
	m, err := models.LoadManifest(r.opts.ManifestPath)
	if err != nil {
		return err
	}
	if err := naming.ValidateProjectName(m.ProjectName); err != nil {
		return &models.ConfigError{Path: r.opts.ManifestPath, Field: "PROJECT_NAME", Cause: err}
	}
	if err := naming.ValidateRepoNames(m.Repos); err != nil {
		return &models.ConfigError{Path: r.opts.ManifestPath, Field: "REPOS", Cause: err}
	}
	r.manifest = m
	fmt.Printf("📋 Loaded manifest for project '%s' (%d repositories, location %s)\n",
		m.ProjectName, len(m.Repos), m.Location)
	return nil
}

func (r *Runner) establishSessions(ctx context.Context) error {
	azSess, err := azure.EnsureSession(ctx)
	if err != nil {
		return err
	}
	r.azSess = azSess
	fmt.Printf("☁️  Using subscription %s\n", azSess.SubscriptionID)

	ghSess, err := githost.EnsureSession(ctx, githost.TokenFromEnv())
	if err != nil {
		return err
	}
	r.ghSess = ghSess
	return nil
}

func (r *Runner) provisionResources(ctx context.Context) (*azure.StateStorage, *azure.ServiceIdentity, error) {
	fmt.Println("🏗️  Provisioning Terraform state storage...")
	storage, err := azure.EnsureStateStorage(ctx, r.azSess, r.manifest.ProjectName, r.manifest.Location)
	if err != nil {
		return nil, nil, err
	}

	fmt.Println("🪪 Ensuring automation service principal...")
	identity, err := azure.EnsureServiceIdentity(ctx, r.azSess, r.manifest.ProjectName)
	if err != nil {
		return nil, nil, err
	}
	return storage, identity, nil
}

// prepareRepositories ensures every managed and auxiliary repository exists,
// then generates key pairs and rotates deploy keys for the managed set.
func (r *Runner) prepareRepositories(ctx context.Context) ([]*keys.KeyPair, error) {
	fmt.Println("📦 Ensuring repositories exist...")
	if err := githost.EnsureRepositories(ctx, r.ghSess, r.allRepos()); err != nil {
		return nil, err
	}

	var pairs []*keys.KeyPair
	for _, repo := range r.manifest.Repos {
		pair, err := keys.EnsureKeyPair(repo)
		if err != nil {
			return nil, &models.ProvisionError{Operation: "deploy-key", Resource: repo, Cause: err}
		}
		if err := githost.SyncDeployKey(ctx, r.ghSess, repo, pair.PublicAuthorized); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// propagateSecrets pushes the control-scope bundle first, then the per-repo
// secrets, both through the same retry policy.
func (r *Runner) propagateSecrets(ctx context.Context, storage *azure.StateStorage, identity *azure.ServiceIdentity, pairs []*keys.KeyPair) error {
	fmt.Println("🔐 Propagating secrets...")
	prop := githost.NewPropagator(r.ghSess, retry.Default())
	control := r.manifest.ControlRepo()

	credsJSON, err := identity.AzureCredentialsJSON()
	if err != nil {
		return &models.ProvisionError{Operation: "service-principal", Resource: control, Cause: err}
	}

	controlBundle := githost.Bundle{
		Secrets: map[string]string{
			"AZURE_CREDENTIALS":   credsJSON,
			"ARM_CLIENT_ID":       identity.ClientID,
			"ARM_CLIENT_SECRET":   identity.ClientSecret,
			"ARM_TENANT_ID":       identity.TenantID,
			"ARM_SUBSCRIPTION_ID": identity.SubscriptionID,
			"GH_PAT":              r.ghSess.Token,
		},
		Variables: map[string]string{
			"TF_STATE_RESOURCE_GROUP":  storage.ResourceGroup,
			"TF_STATE_STORAGE_ACCOUNT": storage.StorageAccount,
			"TF_STATE_CONTAINER":       storage.Container,
			"LOCATION":                 storage.Location,
			"DEPLOYED":                 r.manifest.Deployed,
		},
	}
	if err := prop.Apply(ctx, control, controlBundle); err != nil {
		return err
	}

	// Each managed repository's private key lands on the control repo so the
	// rendered workflow can clone all of them.
	for _, pair := range pairs {
		name := naming.SecretKeyFromRepo(pair.Repo)
		if err := prop.SetSecret(ctx, control, name, string(pair.PrivateKeyPEM)); err != nil {
			return err
		}
	}

	for _, repo := range r.manifest.Repos {
		if repo == control {
			continue
		}
		bundle := githost.Bundle{
			Secrets:   map[string]string{"GH_PAT": r.ghSess.Token},
			Variables: map[string]string{"DOCS_BUILDER_REPO": control},
		}
		if err := prop.Apply(ctx, repo, bundle); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) publishWorkflow(ctx context.Context) error {
	fmt.Println("📝 Rendering docs-build workflow...")
	rendered, err := workflow.Render(workflow.DefaultTemplate(), r.ghSess.Owner, r.manifest.Repos)
	if err != nil {
		return &models.ProvisionError{Operation: "workflow-publish", Resource: r.manifest.ControlRepo(), Cause: err}
	}

	result, err := workflow.Publish(ctx, r.ghSess, r.manifest.ControlRepo(), rendered)
	if err != nil {
		return err
	}

	if r.opts.SkipTrigger {
		fmt.Println("⏭️  Skipping workflow trigger (--skip-trigger)")
		return nil
	}
	if !result.Changed && !r.manifest.IsDeployed() {
		return nil
	}
	return workflow.Trigger(ctx, r.ghSess, r.manifest.ControlRepo(), "")
}

// allRepos returns the managed repositories plus the auxiliary role
// repositories, deduplicated and in manifest order.
func (r *Runner) allRepos() []string {
	seen := make(map[string]bool)
	var out []string
	for _, repo := range append(append([]string{}, r.manifest.Repos...), r.manifest.AuxiliaryRepos()...) {
		if !seen[repo] {
			seen[repo] = true
			out = append(out, repo)
		}
	}
	return out
}
