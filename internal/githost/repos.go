package githost

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v71/github"

	"github.com/xpertslabs/docstrap/internal/models"
	"github.com/xpertslabs/docstrap/internal/prompts"
)

// SentinelKeyTitle identifies the single managed deploy key per repository.
// Rotation deletes any key with this title before uploading the fresh one.
const SentinelKeyTitle = "docstrap-managed-key"

// EnsureRepositories checks each repository and creates missing ones as
// private repositories after interactive confirmation. The prompt defaults to
// yes; declining aborts the run with RepoCreationDeclinedError.
func EnsureRepositories(ctx context.Context, sess *Session, repos []string) error {
	for _, repo := range repos {
		exists, err := repositoryExists(ctx, sess, repo)
		if err != nil {
			return err
		}
		if exists {
			fmt.Printf("✅ Repository '%s/%s' already exists\n", sess.Owner, repo)
			continue
		}

		if !prompts.Confirm(fmt.Sprintf("Repository '%s/%s' does not exist. Create it?", sess.Owner, repo), true) {
			return &models.RepoCreationDeclinedError{Repo: repo}
		}
		if err := createRepository(ctx, sess, repo); err != nil {
			return err
		}
	}
	return nil
}

// repositoryExists treats a 404 as the normal "absent" branch, not a failure.
func repositoryExists(ctx context.Context, sess *Session, repo string) (bool, error) {
	_, resp, err := sess.Client.Repositories.Get(ctx, sess.Owner, repo)
	if err == nil {
		return true, nil
	}
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, &models.ProvisionError{Operation: "repository", Resource: repo, Cause: err}
}

func createRepository(ctx context.Context, sess *Session, repo string) error {
	_, _, err := sess.Client.Repositories.Create(ctx, "", &github.Repository{
		Name:     github.Ptr(repo),
		Private:  github.Ptr(true),
		AutoInit: github.Ptr(true),
	})
	if err != nil {
		return &models.ProvisionError{Operation: "repository", Resource: repo, Cause: err}
	}
	fmt.Printf("✅ Created private repository '%s/%s'\n", sess.Owner, repo)
	return nil
}

// SyncDeployKey rotates the managed deploy key on a repository: any existing
// key carrying the sentinel title is deleted, then the fresh public key is
// uploaded under that title with write access. After the call exactly one
// sentinel-titled key exists and its material is publicKey.
func SyncDeployKey(ctx context.Context, sess *Session, repo string, publicKey []byte) error {
	opts := &github.ListOptions{PerPage: 100}
	for {
		existing, resp, err := sess.Client.Repositories.ListKeys(ctx, sess.Owner, repo, opts)
		if err != nil {
			return &models.ProvisionError{Operation: "deploy-key", Resource: repo,
				Cause: fmt.Errorf("list keys: %w", err)}
		}
		for _, key := range existing {
			if key.GetTitle() == SentinelKeyTitle {
				// A stale sentinel key that cannot be removed must abort the
				// rotation; uploading anyway would leave two sentinel keys.
				if _, derr := sess.Client.Repositories.DeleteKey(ctx, sess.Owner, repo, key.GetID()); derr != nil {
					return &models.ProvisionError{Operation: "deploy-key", Resource: repo,
						Cause: fmt.Errorf("delete key %d: %w", key.GetID(), derr)}
				}
				fmt.Printf("🔄 Removed previous deploy key from '%s'\n", repo)
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	_, _, err := sess.Client.Repositories.CreateKey(ctx, sess.Owner, repo, &github.Key{
		Title:    github.Ptr(SentinelKeyTitle),
		Key:      github.Ptr(strings.TrimSpace(string(publicKey))),
		ReadOnly: github.Ptr(false),
	})
	if err != nil {
		return &models.ProvisionError{Operation: "deploy-key", Resource: repo, Cause: err}
	}
	fmt.Printf("🔑 Uploaded deploy key to '%s/%s'\n", sess.Owner, repo)
	return nil
}
