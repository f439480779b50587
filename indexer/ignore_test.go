package indexer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIgnoreMatcher_ConfigPatterns(t *testing.T) {
	root := t.TempDir()
	m := NewIgnoreMatcher(root, []string{"node_modules/", "*.log", "dist/"})

	if !m.ShouldIgnore("node_modules/pkg/index.js") {
		t.Error("node_modules content should be ignored")
	}
	if !m.ShouldIgnore("debug.log") {
		t.Error("*.log should be ignored")
	}
	if m.ShouldIgnore("main.go") {
		t.Error("main.go should not be ignored")
	}
	if !m.ShouldSkipDir("dist") {
		t.Error("dist directory should be skipped")
	}
	if m.ShouldSkipDir("src") {
		t.Error("src directory should not be skipped")
	}
}

func TestIgnoreMatcher_ReadsGitignore(t *testing.T) {
	root := t.TempDir()
	gitignore := "build/\nsecret.env\n"
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte(gitignore), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewIgnoreMatcher(root, nil)
	if !m.ShouldIgnore("secret.env") {
		t.Error("gitignore entry should be respected")
	}
	if !m.ShouldSkipDir("build") {
		t.Error("gitignored directory should be skipped")
	}
	if m.ShouldIgnore("main.go") {
		t.Error("unlisted file should not be ignored")
	}
}

func TestAddToGitignore(t *testing.T) {
	root := t.TempDir()

	if err := AddToGitignore(root, ".semdex/"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(data), ".semdex/") {
		t.Error("pattern missing from .gitignore")
	}

	// Second add must not duplicate the entry.
	if err := AddToGitignore(root, ".semdex/"); err != nil {
		t.Fatalf("second add failed: %v", err)
	}
	data, _ = os.ReadFile(filepath.Join(root, ".gitignore"))
	if strings.Count(string(data), ".semdex/") != 1 {
		t.Errorf("pattern duplicated: %q", string(data))
	}
}
