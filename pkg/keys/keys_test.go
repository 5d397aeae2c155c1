package keys

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "id.key")
	key, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if err := Save(path, key); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !bytes.Equal(loaded, key) {
		t.Fatalf("loaded key differs from saved key")
	}

	if err := Save(path, key); err == nil {
		t.Fatalf("Save overwrote an existing keypair")
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"not-hex": "zz",
		"short":   "abcd",
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.key")
	first, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	second, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("second call generated a new key")
	}
}
