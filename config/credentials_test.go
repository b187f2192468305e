package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

func TestCredentialStorePlainTextRoundTrip(t *testing.T) {
	dir := t.TempDir()

	store := NewCredentialStore(SecurityPlainText, "")
	store.Set("anthropic", "sk-test-123")
	if err := store.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(credentialsPath(dir))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("credentials file permissions = %o, want 0600", perm)
	}

	reloaded := NewCredentialStore(SecurityPlainText, "")
	if err := reloaded.Load(dir); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reloaded.Get("anthropic"); got != "sk-test-123" {
		t.Fatalf("Get = %q", got)
	}

	reloaded.Delete("anthropic")
	if got := reloaded.Get("anthropic"); got != "" {
		t.Fatalf("Get after delete = %q", got)
	}
}

func TestCredentialStoreSSHEncryptedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeTestSSHKey(t, dir)

	store := NewCredentialStore(SecuritySSHKey, keyPath)
	store.Set("openai", "sk-secret-456")
	if err := store.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// The key must not appear in the file on disk.
	data, err := os.ReadFile(encryptedCredentialsPath(dir))
	if err != nil {
		t.Fatalf("read encrypted credentials: %v", err)
	}
	if strings.Contains(string(data), "sk-secret-456") {
		t.Fatal("credential stored in the clear")
	}

	reloaded := NewCredentialStore(SecuritySSHKey, keyPath)
	if err := reloaded.Load(dir); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reloaded.Get("openai"); got != "sk-secret-456" {
		t.Fatalf("Get = %q", got)
	}
}

func TestCredentialStoreEmptyMethodFallsBack(t *testing.T) {
	store := NewCredentialStore("", "")
	if store.GetMethod() != SecurityPlainText {
		t.Fatalf("method = %s, want plaintext", store.GetMethod())
	}
}

func writeTestSSHKey(t *testing.T, dir string) string {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	keyPath := filepath.Join(dir, "id_ed25519")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return keyPath
}
