package serverreg

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFileDirect(path string, data []byte) error {
	return os.WriteFile(path, data, 0600)
}

func TestMachineSecretStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.key")
	s, err := NewMachineSecretStore(path, writeFileDirect)
	if err != nil {
		t.Fatalf("NewMachineSecretStore: %v", err)
	}
	if err := s.Store("1", "alice", "hunter2"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, ok := s.Lookup("1", "alice")
	if !ok || got != "hunter2" {
		t.Fatalf("expected (hunter2, true), got (%q, %v)", got, ok)
	}
	if _, ok := s.Lookup("1", "bob"); ok {
		t.Fatalf("expected no secret for unknown user")
	}
}

func TestMachineSecretStoreReusesPersistedSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.key")
	if _, err := NewMachineSecretStore(path, writeFileDirect); err != nil {
		t.Fatalf("NewMachineSecretStore: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read secret file: %v", err)
	}
	if _, err := NewMachineSecretStore(path, writeFileDirect); err != nil {
		t.Fatalf("NewMachineSecretStore reload: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read secret file: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("expected the on-disk secret to be reused across reloads, not regenerated")
	}
}
