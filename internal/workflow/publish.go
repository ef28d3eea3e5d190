package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/go-github/v71/github"
	git "gopkg.in/src-d/go-git.v4"
	gitconfig "gopkg.in/src-d/go-git.v4/config"
	"gopkg.in/src-d/go-git.v4/plumbing"
	"gopkg.in/src-d/go-git.v4/plumbing/object"
	githttp "gopkg.in/src-d/go-git.v4/plumbing/transport/http"

	"github.com/xpertslabs/docstrap/internal/githost"
	"github.com/xpertslabs/docstrap/internal/models"
)

// PublishResult reports what publishing did. Changed is false when the
// rendered workflow was already in place (idempotent re-render).
type PublishResult struct {
	Changed  bool
	Branch   string
	PRNumber int
	Merged   bool
}

// Publish writes the rendered workflow into a fresh clone of the control
// repository. When the working tree shows a change it commits on a new
// branch, pushes, opens a pull request and attempts to auto-merge it; when
// the tree is clean it does nothing.
func Publish(ctx context.Context, sess *githost.Session, controlRepo, rendered string) (*PublishResult, error) {
	workDir, err := os.MkdirTemp("", "docstrap-render-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	auth := &githttp.BasicAuth{Username: sess.Owner, Password: sess.Token}
	cloneURL := fmt.Sprintf("https://github.com/%s/%s.git", sess.Owner, controlRepo)

	repo, err := git.PlainCloneContext(ctx, workDir, false, &git.CloneOptions{
		URL:  cloneURL,
		Auth: auth,
	})
	if err != nil {
		return nil, &models.ProvisionError{Operation: "workflow-publish", Resource: controlRepo,
			Cause: fmt.Errorf("clone failed: %w", err)}
	}

	dest := filepath.Join(workDir, filepath.FromSlash(DestPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workflow directory: %w", err)
	}
	if err := os.WriteFile(dest, []byte(rendered), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write rendered workflow: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	changed, err := changedWorktree(wt.Status())
	if err != nil {
		return nil, &models.ProvisionError{Operation: "workflow-publish", Resource: controlRepo, Cause: err}
	}
	if !changed {
		fmt.Printf("✅ Workflow in '%s' already up to date, nothing to publish\n", controlRepo)
		return &PublishResult{Changed: false}, nil
	}

	branch := fmt.Sprintf("docstrap/render-%d", time.Now().Unix())
	if err := wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: true,
	}); err != nil {
		return nil, &models.ProvisionError{Operation: "workflow-publish", Resource: controlRepo,
			Cause: fmt.Errorf("checkout %s: %w", branch, err)}
	}
	if _, err := wt.Add(DestPath); err != nil {
		return nil, &models.ProvisionError{Operation: "workflow-publish", Resource: controlRepo,
			Cause: fmt.Errorf("stage %s: %w", DestPath, err)}
	}
	if _, err := wt.Commit("Update rendered docs-build workflow", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "docstrap",
			Email: "docstrap@users.noreply.github.com",
			When:  time.Now(),
		},
	}); err != nil {
		return nil, &models.ProvisionError{Operation: "workflow-publish", Resource: controlRepo,
			Cause: fmt.Errorf("commit: %w", err)}
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	if err := repo.PushContext(ctx, &git.PushOptions{Auth: auth, RefSpecs: []gitconfig.RefSpec{refSpec}}); err != nil {
		return nil, &models.ProvisionError{Operation: "workflow-publish", Resource: controlRepo,
			Cause: fmt.Errorf("push %s: %w", branch, err)}
	}
	fmt.Printf("🚀 Pushed rendered workflow on branch '%s'\n", branch)

	prNumber, merged, err := openAndMerge(ctx, sess, controlRepo, branch)
	if err != nil {
		return nil, err
	}
	return &PublishResult{Changed: true, Branch: branch, PRNumber: prNumber, Merged: merged}, nil
}

// changedWorktree decides whether the clone needs a commit. A status failure
// is surfaced rather than read as a clean tree, which would silently drop a
// changed workflow.
func changedWorktree(status git.Status, err error) (bool, error) {
	if err != nil {
		return false, fmt.Errorf("worktree status: %w", err)
	}
	return !status.IsClean(), nil
}

// resolveDefaultBranch asks GitHub for the repository's default branch,
// falling back to "main" when the lookup fails.
func resolveDefaultBranch(ctx context.Context, sess *githost.Session, repo string) string {
	if info, _, err := sess.Client.Repositories.Get(ctx, sess.Owner, repo); err == nil {
		if db := info.GetDefaultBranch(); db != "" {
			return db
		}
	}
	return "main"
}

func openAndMerge(ctx context.Context, sess *githost.Session, controlRepo, branch string) (int, bool, error) {
	base := resolveDefaultBranch(ctx, sess, controlRepo)

	pr, _, err := sess.Client.PullRequests.Create(ctx, sess.Owner, controlRepo, &github.NewPullRequest{
		Title: github.Ptr("Update rendered docs-build workflow"),
		Head:  github.Ptr(branch),
		Base:  github.Ptr(base),
		Body:  github.Ptr("Automated re-render of " + DestPath + " from the repository manifest."),
	})
	if err != nil {
		return 0, false, &models.ProvisionError{Operation: "workflow-publish", Resource: controlRepo,
			Cause: fmt.Errorf("open pull request: %w", err)}
	}
	fmt.Printf("📬 Opened pull request #%d in '%s'\n", pr.GetNumber(), controlRepo)

	_, _, err = sess.Client.PullRequests.Merge(ctx, sess.Owner, controlRepo, pr.GetNumber(),
		"Auto-merge rendered workflow", &github.PullRequestOptions{MergeMethod: "squash"})
	if err != nil {
		// Branch protection can block the auto-merge; the PR stays open for a
		// human reviewer.
		fmt.Printf("⚠️  Auto-merge of #%d failed: %v, merge it manually\n", pr.GetNumber(), err)
		return pr.GetNumber(), false, nil
	}
	fmt.Printf("✅ Merged pull request #%d\n", pr.GetNumber())
	return pr.GetNumber(), true, nil
}

// Trigger dispatches a run of the rendered workflow by file name. An empty
// ref dispatches on the repository's default branch.
func Trigger(ctx context.Context, sess *githost.Session, controlRepo, ref string) error {
	if ref == "" {
		ref = resolveDefaultBranch(ctx, sess, controlRepo)
	}
	_, err := sess.Client.Actions.CreateWorkflowDispatchEventByFileName(ctx, sess.Owner, controlRepo, FileName,
		github.CreateWorkflowDispatchEventRequest{Ref: ref})
	if err != nil {
		return &models.ProvisionError{Operation: "workflow-trigger", Resource: controlRepo, Cause: err}
	}
	fmt.Printf("▶️  Triggered workflow '%s' on '%s/%s'\n", FileName, sess.Owner, controlRepo)
	return nil
}
