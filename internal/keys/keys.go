// Package keys manages the per-repository deploy key pairs. Keys are ed25519,
// written in OpenSSH format under ~/.docstrap/keys/, and never regenerated
// once present unless the operator explicitly confirms an overwrite.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"

	"github.com/xpertslabs/docstrap/internal/prompts"
)

// KeyPair holds one repository's deploy key material.
type KeyPair struct {
	Repo             string
	PrivateKeyPEM    []byte // OpenSSH PEM, pushed to the control repo's secret store
	PublicAuthorized []byte // authorized_keys line, uploaded as the deploy key
	Generated        bool   // false when an existing pair was reused
}

// Dir returns the directory holding generated key pairs.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".docstrap", "keys"), nil
}

// paths returns the deterministic private/public file paths for a repository.
func paths(dir, repo string) (string, string) {
	priv := filepath.Join(dir, repo)
	return priv, priv + ".pub"
}

// EnsureKeyPair loads the key pair for repo, generating it when absent. When a
// pair already exists the operator is asked whether to overwrite; the default
// is to keep the existing key.
func EnsureKeyPair(repo string) (*KeyPair, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return EnsureKeyPairIn(dir, repo)
}

// EnsureKeyPairIn is EnsureKeyPair with an explicit key directory.
func EnsureKeyPairIn(dir, repo string) (*KeyPair, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory %s: %w", dir, err)
	}

	privPath, pubPath := paths(dir, repo)
	if _, err := os.Stat(privPath); err == nil {
		if !prompts.Confirm(fmt.Sprintf("Deploy key for '%s' already exists at %s. Overwrite?", repo, privPath), false) {
			return load(repo, privPath, pubPath)
		}
	}

	return generate(repo, privPath, pubPath)
}

func load(repo, privPath, pubPath string) (*KeyPair, error) {
	privPEM, err := os.ReadFile(privPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %s: %w", privPath, err)
	}
	pub, err := os.ReadFile(pubPath)
	if err != nil {
		// Private half exists but public half is gone. Recover it rather
		// than regenerating the whole pair.
		signer, perr := ssh.ParsePrivateKey(privPEM)
		if perr != nil {
			return nil, fmt.Errorf("failed to recover public key for %s: %w", repo, perr)
		}
		pub = ssh.MarshalAuthorizedKey(signer.PublicKey())
		if werr := os.WriteFile(pubPath, pub, 0o644); werr != nil {
			return nil, fmt.Errorf("failed to rewrite public key %s: %w", pubPath, werr)
		}
	}
	fmt.Printf("🔑 Reusing existing deploy key for '%s'\n", repo)
	return &KeyPair{Repo: repo, PrivateKeyPEM: privPEM, PublicAuthorized: pub}, nil
}

func generate(repo, privPath, pubPath string) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair for %s: %w", repo, err)
	}

	block, err := ssh.MarshalPrivateKey(priv, "docstrap deploy key for "+repo)
	if err != nil {
		return nil, fmt.Errorf("failed to encode private key for %s: %w", repo, err)
	}
	privPEM := pem.EncodeToMemory(block)

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key for %s: %w", repo, err)
	}
	pubLine := ssh.MarshalAuthorizedKey(sshPub)

	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write private key %s: %w", privPath, err)
	}
	if err := os.WriteFile(pubPath, pubLine, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write public key %s: %w", pubPath, err)
	}

	fmt.Printf("🔑 Generated new deploy key for '%s'\n", repo)
	return &KeyPair{Repo: repo, PrivateKeyPEM: privPEM, PublicAuthorized: pubLine, Generated: true}, nil
}
