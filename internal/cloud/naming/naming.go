// Package naming holds the pure name-derivation rules shared by the
// provisioner and the secret propagator. Every function here is deterministic:
// the same input always yields the same derived name.
package naming

import (
	"fmt"
	"regexp"
	"strings"
)

// Azure storage account names must be 3-24 characters, lowercase alphanumeric.
const storageAccountMaxLen = 24

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// ResourceGroupName derives the Terraform-state resource group name for a
// project. Hyphens are legal in resource group names, so the project name is
// kept as-is.
func ResourceGroupName(project string) string {
	return project + "-tfstate-rg"
}

// StorageAccountName derives the state storage account name: the project name
// downcased, stripped of every non-alphanumeric character, suffixed with
// "account" and truncated to the Azure maximum of 24 characters.
func StorageAccountName(project string) string {
	name := nonAlnum.ReplaceAllString(strings.ToLower(project), "") + "account"
	if len(name) > storageAccountMaxLen {
		name = name[:storageAccountMaxLen]
	}
	return name
}

// ContainerName derives the blob container name holding the Terraform state.
func ContainerName(project string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(project), "") + "tfstate"
}

// ServicePrincipalName derives the display name of the automation identity.
func ServicePrincipalName(project string) string {
	return project + "-github-actions-sp"
}

var separatorRun = regexp.MustCompile(`[^A-Z0-9]+`)

// SecretKeyFromRepo derives the Actions secret name holding a repository's
// private deploy key: uppercase, separator runs collapsed to single
// underscores, suffixed with _SSH_PRIVATE_KEY.
// Example: "hands-on-labs" -> "HANDS_ON_LABS_SSH_PRIVATE_KEY".
func SecretKeyFromRepo(repo string) string {
	key := separatorRun.ReplaceAllString(strings.ToUpper(repo), "_")
	key = strings.Trim(key, "_")
	return key + "_SSH_PRIVATE_KEY"
}

// ValidateRepoNames rejects repository lists where two distinct names would
// normalize to the same secret key, which would make one repo's deploy key
// silently overwrite another's.
func ValidateRepoNames(repos []string) error {
	seen := make(map[string]string, len(repos))
	for _, repo := range repos {
		key := SecretKeyFromRepo(repo)
		if prev, ok := seen[key]; ok && prev != repo {
			return fmt.Errorf("repositories '%s' and '%s' both normalize to secret key '%s'", prev, repo, key)
		}
		seen[key] = repo
	}
	return nil
}

// ValidateProjectName validates a project name against the constraints of the
// derived resource names.
func ValidateProjectName(project string) error {
	if project == "" {
		return fmt.Errorf("project name cannot be empty")
	}
	if !regexp.MustCompile(`^[A-Za-z0-9]`).MatchString(project) {
		return fmt.Errorf("project name must start with a letter or number")
	}
	if !regexp.MustCompile(`^[A-Za-z0-9-]+$`).MatchString(project) {
		return fmt.Errorf("project name can only contain letters, numbers, and hyphens")
	}
	// The derived storage account and container names strip everything
	// non-alphanumeric, so something has to survive the stripping.
	if len(nonAlnum.ReplaceAllString(strings.ToLower(project), "")) < 1 {
		return fmt.Errorf("project name must contain at least one alphanumeric character")
	}
	return nil
}
