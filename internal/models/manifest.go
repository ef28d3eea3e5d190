package models

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// GitHub repository names: alphanumerics, hyphens, underscores and dots.
// Anything else (slashes, "..") could also escape the key directory, since
// repo names become file names there.
var validRepoName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func isRepoName(name string) bool {
	return name != "." && name != ".." && validRepoName.MatchString(name)
}

// Manifest is the declarative input describing one docs platform: the project
// name, the Azure location, whether infrastructure should be deployed, and the
// set of managed documentation repositories. Loaded once at startup and
// immutable afterwards.
type Manifest struct {
	ProjectName string   `json:"PROJECT_NAME"`
	Location    string   `json:"LOCATION"`
	Deployed    string   `json:"DEPLOYED"` // boolean-like string: "true"/"false"
	Repos       []string `json:"REPOS"`

	// Auxiliary repository roles. Optional; empty values mean the role is
	// not managed by this project.
	ThemeRepo       string `json:"THEME_REPO_NAME,omitempty"`
	LandingPageRepo string `json:"LANDING_PAGE_REPO_NAME,omitempty"`
	DocsBuilderRepo string `json:"DOCS_BUILDER_REPO_NAME,omitempty"`
	InfraRepo       string `json:"INFRASTRUCTURE_REPO_NAME,omitempty"`
	ManifestsRepo   string `json:"MANIFESTS_REPO_NAME,omitempty"`
	MkDocsRepo      string `json:"MKDOCS_REPO_NAME,omitempty"`
}

// IsDeployed interprets the boolean-like DEPLOYED flag.
func (m *Manifest) IsDeployed() bool {
	switch strings.ToLower(strings.TrimSpace(m.Deployed)) {
	case "true", "yes", "1":
		return true
	}
	return false
}

// ControlRepo returns the repository that owns the rendered CI workflow and
// receives the control-scope secret bundle. Defaults to the docs-builder role.
func (m *Manifest) ControlRepo() string {
	if m.DocsBuilderRepo != "" {
		return m.DocsBuilderRepo
	}
	return m.Repos[0]
}

// AuxiliaryRepos returns the non-empty auxiliary role repositories in a
// stable order.
func (m *Manifest) AuxiliaryRepos() []string {
	var out []string
	for _, r := range []string{
		m.ThemeRepo, m.LandingPageRepo, m.DocsBuilderRepo,
		m.InfraRepo, m.ManifestsRepo, m.MkDocsRepo,
	} {
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

// LoadManifest reads and validates the JSON manifest at path. The returned
// manifest is fully validated; callers never need to re-check required fields.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Cause: err}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &ConfigError{Path: path, Cause: fmt.Errorf("failed to parse JSON: %w", err)}
	}

	if err := m.validate(path); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate(path string) error {
	if strings.TrimSpace(m.ProjectName) == "" {
		return &ConfigError{Path: path, Field: "PROJECT_NAME", Cause: fmt.Errorf("must not be empty")}
	}
	if strings.TrimSpace(m.Location) == "" {
		return &ConfigError{Path: path, Field: "LOCATION", Cause: fmt.Errorf("must not be empty")}
	}
	if strings.TrimSpace(m.Deployed) == "" {
		return &ConfigError{Path: path, Field: "DEPLOYED", Cause: fmt.Errorf("must not be empty")}
	}
	if len(m.Repos) == 0 {
		return &ConfigError{Path: path, Field: "REPOS", Cause: fmt.Errorf("at least one repository is required")}
	}
	for i, r := range m.Repos {
		if strings.TrimSpace(r) == "" {
			return &ConfigError{Path: path, Field: "REPOS", Cause: fmt.Errorf("repository name at index %d is empty", i)}
		}
		if !isRepoName(r) {
			return &ConfigError{Path: path, Field: "REPOS", Cause: fmt.Errorf("repository name %q contains illegal characters", r)}
		}
	}
	auxiliary := map[string]string{
		"THEME_REPO_NAME":          m.ThemeRepo,
		"LANDING_PAGE_REPO_NAME":   m.LandingPageRepo,
		"DOCS_BUILDER_REPO_NAME":   m.DocsBuilderRepo,
		"INFRASTRUCTURE_REPO_NAME": m.InfraRepo,
		"MANIFESTS_REPO_NAME":      m.ManifestsRepo,
		"MKDOCS_REPO_NAME":         m.MkDocsRepo,
	}
	for field, name := range auxiliary {
		if name != "" && !isRepoName(name) {
			return &ConfigError{Path: path, Field: field, Cause: fmt.Errorf("repository name %q contains illegal characters", name)}
		}
	}
	return nil
}
