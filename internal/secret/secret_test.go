package secret_test

import (
	"testing"

	"github.com/zalando/go-keyring"

	"workbench/internal/secret"
)

func exerciseStore(t *testing.T, s secret.SecretStore) {
	t.Helper()

	got, err := s.Get("conn:1")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty value for missing key, got %q", got)
	}

	if err := s.Set("conn:1", []byte("hunter2")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err = s.Get("conn:1")
	if err != nil || string(got) != "hunter2" {
		t.Fatalf("expected hunter2, got %q (%v)", got, err)
	}

	if err := s.Delete("conn:1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete("conn:1"); err != nil {
		t.Fatalf("delete of missing key should succeed: %v", err)
	}
	got, _ = s.Get("conn:1")
	if len(got) != 0 {
		t.Errorf("expected key to be gone, got %q", got)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, secret.NewMemoryStore())
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	exerciseStore(t, secret.NewKeyringStore(""))
}
