package githost

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/go-github/v71/github"
	"golang.org/x/crypto/nacl/box"

	"github.com/xpertslabs/docstrap/internal/models"
	"github.com/xpertslabs/docstrap/internal/retry"
)

// Propagator pushes named secrets and variables into repository secret
// stores, tolerating transient failures via the injected retry policy.
type Propagator struct {
	sess   *Session
	policy retry.Policy
}

// NewPropagator builds a propagator bound to one session.
func NewPropagator(sess *Session, policy retry.Policy) *Propagator {
	return &Propagator{sess: sess, policy: policy}
}

// Bundle is the fixed set of named values pushed to one repository: secrets
// are sealed-box encrypted, variables stay in cleartext.
type Bundle struct {
	Secrets   map[string]string
	Variables map[string]string
}

// Apply pushes every entry of the bundle to the target repository in sorted
// name order, so re-runs touch the store in a deterministic sequence.
func (p *Propagator) Apply(ctx context.Context, repo string, b Bundle) error {
	for _, name := range sortedKeys(b.Secrets) {
		if err := p.SetSecret(ctx, repo, name, b.Secrets[name]); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(b.Variables) {
		if err := p.SetVariable(ctx, repo, name, b.Variables[name]); err != nil {
			return err
		}
	}
	return nil
}

// SetSecret encrypts value against the repository's Actions public key and
// upserts it, retrying per the policy. On exhaustion the run fails with a
// SecretPropagationError naming the key and surfacing the last error.
func (p *Propagator) SetSecret(ctx context.Context, repo, name, value string) error {
	op := fmt.Sprintf("set secret %s on %s", name, repo)
	err := p.policy.Do(ctx, op, func() error {
		pubKey, _, err := p.sess.Client.Actions.GetRepoPublicKey(ctx, p.sess.Owner, repo)
		if err != nil {
			return fmt.Errorf("fetch public key: %w", err)
		}
		sealed, err := encryptSecret(value, pubKey.GetKey())
		if err != nil {
			return fmt.Errorf("encrypt: %w", err)
		}
		_, err = p.sess.Client.Actions.CreateOrUpdateRepoSecret(ctx, p.sess.Owner, repo, &github.EncryptedSecret{
			Name:           name,
			KeyID:          pubKey.GetKeyID(),
			EncryptedValue: sealed,
		})
		return err
	})
	if err != nil {
		return &models.SecretPropagationError{Repo: repo, Key: name, Attempts: p.policy.MaxAttempts, LastErr: err}
	}
	fmt.Printf("🔒 Set secret %s on '%s'\n", name, repo)
	return nil
}

// SetVariable upserts a repository Actions variable (non-secret value).
func (p *Propagator) SetVariable(ctx context.Context, repo, name, value string) error {
	op := fmt.Sprintf("set variable %s on %s", name, repo)
	v := &github.ActionsVariable{Name: name, Value: value}
	err := p.policy.Do(ctx, op, func() error {
		_, resp, gerr := p.sess.Client.Actions.GetRepoVariable(ctx, p.sess.Owner, repo, name)
		if gerr == nil {
			_, uerr := p.sess.Client.Actions.UpdateRepoVariable(ctx, p.sess.Owner, repo, v)
			return uerr
		}
		if resp != nil && resp.StatusCode != http.StatusNotFound {
			return gerr
		}
		_, cerr := p.sess.Client.Actions.CreateRepoVariable(ctx, p.sess.Owner, repo, v)
		return cerr
	})
	if err != nil {
		return &models.SecretPropagationError{Repo: repo, Key: name, Attempts: p.policy.MaxAttempts, LastErr: err}
	}
	fmt.Printf("📋 Set variable %s on '%s'\n", name, repo)
	return nil
}

// encryptSecret seals plaintext with NaCl's anonymous sealed box, the
// libsodium crypto_box_seal construction GitHub expects for Actions secrets.
func encryptSecret(plaintext, githubB64PublicKey string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(githubB64PublicKey)
	if err != nil {
		return "", fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("unexpected public key length: %d (want 32)", len(raw))
	}
	var pk [32]byte
	copy(pk[:], raw)

	sealed, err := box.SealAnonymous(nil, []byte(plaintext), &pk, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
