// Package githost drives the GitHub side of bootstrap: repository existence,
// deploy-key rotation, and Actions secret/variable propagation. All calls go
// through an explicit Session rather than ambient CLI state.
package githost

import (
	"context"
	"fmt"
	"os"

	"github.com/google/go-github/v71/github"
	"golang.org/x/oauth2"

	"github.com/xpertslabs/docstrap/internal/models"
)

// Session is an authenticated GitHub API session for one account or
// organization.
type Session struct {
	Owner  string // authenticated login, the owner of every managed repository
	Token  string
	Client *github.Client
}

// TokenFromEnv resolves the GitHub token from the conventional variables.
func TokenFromEnv() string {
	for _, name := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// EnsureSession validates the token with a "who am I" probe and returns an
// authenticated session. Safe to call repeatedly.
func EnsureSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, &models.AuthError{System: "github", Operation: "login",
			Cause: fmt.Errorf("no token found, set GITHUB_TOKEN or GH_TOKEN")}
	}

	tc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client := github.NewClient(tc)

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, &models.AuthError{System: "github", Operation: "whoami", Cause: err}
	}
	login := user.GetLogin()
	if login == "" {
		return nil, &models.AuthError{System: "github", Operation: "whoami",
			Cause: fmt.Errorf("token resolved to no login")}
	}

	fmt.Printf("🔍 Authenticated to GitHub as '%s'\n", login)
	return &Session{Owner: login, Token: token, Client: client}, nil
}
