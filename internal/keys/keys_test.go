package keys

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/xpertslabs/docstrap/internal/prompts"
)

func TestMain(m *testing.M) {
	// Keep every prompt non-interactive and on its default answer.
	prompts.AssumeYes = true
	os.Exit(m.Run())
}

func TestEnsureKeyPairGenerates(t *testing.T) {
	dir := t.TempDir()
	kp, err := EnsureKeyPairIn(dir, "hands-on-labs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !kp.Generated {
		t.Error("expected a freshly generated pair")
	}
	if !strings.HasPrefix(string(kp.PublicAuthorized), "ssh-ed25519 ") {
		t.Errorf("public key not in authorized_keys format: %q", kp.PublicAuthorized)
	}
	if _, err := ssh.ParsePrivateKey(kp.PrivateKeyPEM); err != nil {
		t.Errorf("private key not parseable: %v", err)
	}

	// Both halves on disk with restrictive private permissions.
	privPath := filepath.Join(dir, "hands-on-labs")
	info, err := os.Stat(privPath)
	if err != nil {
		t.Fatalf("private key file missing: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("private key mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(privPath + ".pub"); err != nil {
		t.Errorf("public key file missing: %v", err)
	}
}

func TestEnsureKeyPairKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	first, err := EnsureKeyPairIn(dir, "mkdocs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Second run must keep the key (overwrite prompt defaults to no).
	second, err := EnsureKeyPairIn(dir, "mkdocs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Generated {
		t.Error("existing pair should not be regenerated")
	}
	if !bytes.Equal(first.PrivateKeyPEM, second.PrivateKeyPEM) {
		t.Error("private key changed across runs")
	}
	if !bytes.Equal(first.PublicAuthorized, second.PublicAuthorized) {
		t.Error("public key changed across runs")
	}
}

func TestEnsureKeyPairRecoversPublicHalf(t *testing.T) {
	dir := t.TempDir()
	first, err := EnsureKeyPairIn(dir, "theme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pubPath := filepath.Join(dir, "theme.pub")
	if err := os.Remove(pubPath); err != nil {
		t.Fatal(err)
	}

	second, err := EnsureKeyPairIn(dir, "theme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(first.PublicAuthorized, second.PublicAuthorized) {
		t.Error("recovered public key does not match original")
	}
	if _, err := os.Stat(pubPath); err != nil {
		t.Error("public key file was not rewritten")
	}
}
