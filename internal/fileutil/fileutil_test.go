package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureParentDir(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "a", "b", "file.txt")

	if err := EnsureParentDir(target); err != nil {
		t.Fatalf("EnsureParentDir() failed: %v", err)
	}

	info, err := os.Stat(filepath.Dir(target))
	if err != nil {
		t.Fatalf("parent dir was not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("parent path exists but is not a directory")
	}

	// Calling again on an existing dir should not error
	if err := EnsureParentDir(target); err != nil {
		t.Fatalf("EnsureParentDir() failed on existing dir: %v", err)
	}
}

func TestReplaceFileAtomically(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "target.txt")
	tmp := filepath.Join(base, "target.txt.tmp")

	if err := os.WriteFile(target, []byte("old"), 0600); err != nil {
		t.Fatalf("failed to write target: %v", err)
	}
	if err := os.WriteFile(tmp, []byte("new"), 0600); err != nil {
		t.Fatalf("failed to write temp: %v", err)
	}

	if err := ReplaceFileAtomically(tmp, target); err != nil {
		t.Fatalf("ReplaceFileAtomically() failed: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("failed to read target: %v", err)
	}
	if string(data) != "new" {
		t.Fatalf("target content = %q, want %q", string(data), "new")
	}

	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatal("temp file still exists after replace")
	}
}

func TestFlockExclusiveNonBlocking(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "lock")

	f1, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		t.Fatalf("failed to open lock file: %v", err)
	}
	defer f1.Close()

	if err := FlockExclusive(f1, true); err != nil {
		t.Fatalf("FlockExclusive() failed on free lock: %v", err)
	}

	f2, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		t.Fatalf("failed to open second handle: %v", err)
	}
	defer f2.Close()

	if err := FlockExclusive(f2, true); err == nil {
		t.Fatal("FlockExclusive() should fail while lock is held")
	}
}
