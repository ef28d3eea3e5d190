package naming

import (
	"regexp"
	"strings"
	"testing"
)

func TestStorageAccountName(t *testing.T) {
	valid := regexp.MustCompile(`^[a-z0-9]{1,24}$`)

	cases := []struct {
		project string
		want    string
	}{
		{"Xperts-Labs2", "xpertslabs2account"},
		{"docs", "docsaccount"},
		{"My_Very-Long.Project-Name-2024", "myverylongprojectname202"},
	}
	for _, c := range cases {
		got := StorageAccountName(c.project)
		if got != c.want {
			t.Errorf("StorageAccountName(%q) = %q, want %q", c.project, got, c.want)
		}
		if !valid.MatchString(got) {
			t.Errorf("StorageAccountName(%q) = %q, not a valid storage account name", c.project, got)
		}
	}
}

func TestStorageAccountNameIsPure(t *testing.T) {
	a := StorageAccountName("Xperts-Labs2")
	b := StorageAccountName("Xperts-Labs2")
	if a != b {
		t.Errorf("derivation not deterministic: %q vs %q", a, b)
	}
}

func TestContainerName(t *testing.T) {
	if got := ContainerName("Xperts-Labs2"); got != "xpertslabs2tfstate" {
		t.Errorf("ContainerName = %q, want xpertslabs2tfstate", got)
	}
}

func TestResourceGroupName(t *testing.T) {
	if got := ResourceGroupName("docs-platform"); got != "docs-platform-tfstate-rg" {
		t.Errorf("ResourceGroupName = %q", got)
	}
}

func TestSecretKeyFromRepo(t *testing.T) {
	cases := []struct {
		repo string
		want string
	}{
		{"hands-on-labs", "HANDS_ON_LABS_SSH_PRIVATE_KEY"},
		{"mkdocs", "MKDOCS_SSH_PRIVATE_KEY"},
		{"docs.builder", "DOCS_BUILDER_SSH_PRIVATE_KEY"},
		{"multi--dash", "MULTI_DASH_SSH_PRIVATE_KEY"},
	}
	for _, c := range cases {
		if got := SecretKeyFromRepo(c.repo); got != c.want {
			t.Errorf("SecretKeyFromRepo(%q) = %q, want %q", c.repo, got, c.want)
		}
	}
}

func TestValidateRepoNamesRejectsCollisions(t *testing.T) {
	err := ValidateRepoNames([]string{"hands-on-labs", "hands.on.labs"})
	if err == nil {
		t.Fatal("expected collision error for names normalizing to the same key")
	}
	if !strings.Contains(err.Error(), "HANDS_ON_LABS_SSH_PRIVATE_KEY") {
		t.Errorf("error should name the colliding key, got: %v", err)
	}

	if err := ValidateRepoNames([]string{"theme", "landing-page", "mkdocs"}); err != nil {
		t.Errorf("unexpected error for distinct names: %v", err)
	}

	// The same name listed twice is not a collision.
	if err := ValidateRepoNames([]string{"theme", "theme"}); err != nil {
		t.Errorf("duplicate identical names should pass: %v", err)
	}
}

func TestValidateProjectName(t *testing.T) {
	if err := ValidateProjectName("Xperts-Labs2"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, bad := range []string{"", "-leading", "has space", "under_score"} {
		if err := ValidateProjectName(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
