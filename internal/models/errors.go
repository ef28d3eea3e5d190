package models

import "fmt"

// ConfigError represents manifest loading/validation failures
type ConfigError struct {
	Path  string
	Field string // offending field, empty when the whole file is unusable
	Cause error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid manifest '%s' (field: %s): %v", e.Path, e.Field, e.Cause)
	}
	return fmt.Sprintf("invalid manifest '%s': %v", e.Path, e.Cause)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// AuthError represents session establishment or subscription selection failures
type AuthError struct {
	System    string // "azure", "github"
	Operation string // "login", "whoami", "select-subscription"
	Cause     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed during %s: %v", e.System, e.Operation, e.Cause)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// ProvisionError represents cloud resource or identity creation failures,
// including "already exists" responses that cannot be resolved to a usable id
type ProvisionError struct {
	Operation string // "resource-group", "storage-account", "container", "service-principal", "role-assignment", "repository"
	Resource  string
	Cause     error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning failed during %s operation on '%s': %v",
		e.Operation, e.Resource, e.Cause)
}

func (e *ProvisionError) Unwrap() error {
	return e.Cause
}

// SecretPropagationError is raised when the retry budget for a secret-set
// operation is exhausted. It names the failing key and carries the last error.
type SecretPropagationError struct {
	Repo     string
	Key      string
	Attempts int
	LastErr  error
}

func (e *SecretPropagationError) Error() string {
	return fmt.Sprintf("failed to set secret '%s' on '%s' after %d attempts: %v",
		e.Key, e.Repo, e.Attempts, e.LastErr)
}

func (e *SecretPropagationError) Unwrap() error {
	return e.LastErr
}

// RepoCreationDeclinedError signals that the operator declined an interactive
// repository-creation prompt. The run aborts; nothing is rolled back.
type RepoCreationDeclinedError struct {
	Repo string
}

func (e *RepoCreationDeclinedError) Error() string {
	return fmt.Sprintf("repository creation declined for '%s', aborting bootstrap", e.Repo)
}
