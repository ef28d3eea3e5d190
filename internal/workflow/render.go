// Package workflow renders the docs-builder CI workflow from its template and
// publishes the result to the control repository as a pull request.
package workflow

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xpertslabs/docstrap/internal/cloud/naming"
)

// Placeholder is the single line in the template replaced by the generated
// per-repository checkout steps.
const Placeholder = "# {{CHECKOUT_STEPS}}"

// FileName is the workflow file name inside .github/workflows.
const FileName = "docs-build.yml"

// DestPath is the repository-relative path the rendered workflow is written to.
const DestPath = ".github/workflows/" + FileName

//go:embed templates/docs-build.yml
var defaultTemplate string

// DefaultTemplate returns the embedded workflow template.
func DefaultTemplate() string {
	return defaultTemplate
}

// Render substitutes the placeholder line with one checkout block per
// repository, in list order, then collapses runs of blank lines. Rendering is
// deterministic and idempotent: the same template and repository list always
// produce byte-identical output.
func Render(template, owner string, repos []string) (string, error) {
	placeholderLines := 0
	var out []string
	for _, line := range strings.Split(template, "\n") {
		if strings.TrimSpace(line) == Placeholder {
			placeholderLines++
			indent := line[:strings.Index(line, "#")]
			for _, repo := range repos {
				out = append(out, checkoutBlock(indent, owner, repo)...)
			}
			continue
		}
		out = append(out, line)
	}
	if placeholderLines != 1 {
		return "", fmt.Errorf("template must contain exactly one placeholder line %q, found %d", Placeholder, placeholderLines)
	}
	return CollapseBlankLines(strings.Join(out, "\n")), nil
}

// checkoutBlock emits the fixed-shape steps for one repository: install its
// private key from the derived secret name, then clone over SSH to a
// deterministic local path.
func checkoutBlock(indent, owner, repo string) []string {
	secret := naming.SecretKeyFromRepo(repo)
	return []string{
		indent + "- name: Set up deploy key for " + repo,
		indent + "  run: |",
		indent + "    echo \"${{ secrets." + secret + " }}\" > ~/.ssh/" + repo,
		indent + "    chmod 600 ~/.ssh/" + repo,
		indent + "- name: Clone " + repo,
		indent + "  run: |",
		indent + "    GIT_SSH_COMMAND=\"ssh -i ~/.ssh/" + repo + " -o IdentitiesOnly=yes\" \\",
		indent + "      git clone git@github.com:" + owner + "/" + repo + ".git repos/" + repo,
		"",
	}
}

// CollapseBlankLines reduces every run of more than one consecutive blank
// line to exactly one. Lines containing only whitespace count as blank.
func CollapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
