package fileio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadMissing(t *testing.T) {
	text, exists, err := Read(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil || exists || text != "" {
		t.Fatalf("Read(missing) = %q, %v, %v", text, exists, err)
	}
}

func TestWriteAtomicCreatesAndReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "fr.json")

	if err := WriteAtomic(path, []byte("one"), 0o644); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := WriteAtomic(path, []byte("two"), 0o644); err != nil {
		t.Fatalf("WriteAtomic (replace): %v", err)
	}

	text, exists, err := Read(path)
	if err != nil || !exists || text != "two" {
		t.Fatalf("Read = %q, %v, %v", text, exists, err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want existing 0600 kept", fi.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("leftover temporary files: %v", entries)
	}
}
