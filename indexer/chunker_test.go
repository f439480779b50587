package indexer

import (
	"strings"
	"testing"
)

func TestBlockID_Deterministic(t *testing.T) {
	a := BlockID("main.go", 10, 20, "func main() {}")
	b := BlockID("main.go", 10, 20, "func main() {}")
	if a != b {
		t.Errorf("same inputs produced different ids: %s vs %s", a, b)
	}
}

func TestBlockID_SensitiveToEveryField(t *testing.T) {
	base := BlockID("main.go", 10, 20, "content")
	variants := []string{
		BlockID("other.go", 10, 20, "content"),
		BlockID("main.go", 11, 20, "content"),
		BlockID("main.go", 10, 21, "content"),
		BlockID("main.go", 10, 20, "changed"),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collided with base id", i)
		}
	}
}

func TestChunker_EmptyContent(t *testing.T) {
	chunker := NewChunker(4, 50, 2000)
	if blocks := chunker.Chunk("empty.go", ""); len(blocks) != 0 {
		t.Errorf("expected 0 blocks for empty content, got %d", len(blocks))
	}
	if blocks := chunker.Chunk("ws.go", "   \n\n\t\t\n   "); len(blocks) != 0 {
		t.Errorf("expected 0 blocks for whitespace-only content, got %d", len(blocks))
	}
}

func TestChunker_StructuralGoFunction(t *testing.T) {
	chunker := NewChunker(4, 50, 2000)

	content := `package main

func Greet(name string) string {
	message := "hello, " + name
	message += "!"
	return message
}
`
	blocks := chunker.Chunk("greet.go", content)
	if len(blocks) == 0 {
		t.Fatal("expected at least one block")
	}

	var found *CodeBlock
	for i := range blocks {
		if blocks[i].Type == BlockFunction {
			found = &blocks[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("no function block extracted, got %d blocks", len(blocks))
	}
	if found.Name != "Greet" {
		t.Errorf("expected name Greet, got %q", found.Name)
	}
	if found.Language != "go" {
		t.Errorf("expected language go, got %q", found.Language)
	}
	if found.StartLine != 3 {
		t.Errorf("expected start line 3, got %d", found.StartLine)
	}
	if found.Metadata.Method != "tree-sitter" {
		t.Errorf("expected tree-sitter method, got %q", found.Metadata.Method)
	}
}

func TestChunker_MinLinesFilter(t *testing.T) {
	chunker := NewChunker(4, 10, 2000)

	// Three-line function falls below the four-line minimum.
	content := `package main

func tiny() int {
	return 42
}
`
	blocks := chunker.Chunk("tiny.go", content)
	for _, b := range blocks {
		if b.Type == BlockFunction && b.Name == "tiny" && b.Metadata.Method == "tree-sitter" {
			t.Errorf("three-line function should have been filtered out")
		}
	}
}

func TestChunker_FallbackLanguageUsesLines(t *testing.T) {
	chunker := NewChunker(4, 10, 100)

	content := strings.Repeat("let x = compute_something_interesting();\n", 20)
	blocks := chunker.Chunk("lib.rs", content)
	if len(blocks) == 0 {
		t.Fatal("expected line-based blocks for rust")
	}
	for i, b := range blocks {
		if b.Metadata.Method != "lines" {
			t.Errorf("block %d: expected lines method, got %q", i, b.Metadata.Method)
		}
		if b.Language != "rust" {
			t.Errorf("block %d: expected language rust, got %q", i, b.Language)
		}
		if len(b.Content) > 100+41 {
			t.Errorf("block %d: content length %d exceeds ceiling plus one line", i, len(b.Content))
		}
	}
}

func TestChunker_LineChunkBounds(t *testing.T) {
	chunker := NewChunker(4, 10, 50)

	lines := []string{
		"first line of content here",
		"second line of content here",
		"third line of content here",
	}
	blocks := chunker.Chunk("notes.rs", strings.Join(lines, "\n"))

	if len(blocks) < 2 {
		t.Fatalf("expected content to split, got %d blocks", len(blocks))
	}
	if blocks[0].StartLine != 1 {
		t.Errorf("first block should start at line 1, got %d", blocks[0].StartLine)
	}
	for i := 1; i < len(blocks); i++ {
		if blocks[i].StartLine != blocks[i-1].EndLine+1 {
			t.Errorf("block %d starts at %d, previous ended at %d", i, blocks[i].StartLine, blocks[i-1].EndLine)
		}
	}
}

func TestChunker_SingleOversizedLine(t *testing.T) {
	chunker := NewChunker(4, 10, 50)

	long := strings.Repeat("x", 200)
	blocks := chunker.Chunk("big.rs", long)
	if len(blocks) != 1 {
		t.Fatalf("expected one block for a single long line, got %d", len(blocks))
	}
	if blocks[0].Content != long {
		t.Error("oversized line must not be split")
	}
}

func TestChunker_Markdown(t *testing.T) {
	chunker := NewChunker(4, 10, 2000)

	content := `# Overview

This project does semantic code search over a local repository.

## Installation

Install with the usual go install workflow and configure a provider.
`
	blocks := chunker.Chunk("README.md", content)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 heading blocks, got %d", len(blocks))
	}
	if blocks[0].Name != "Overview" {
		t.Errorf("expected first block named Overview, got %q", blocks[0].Name)
	}
	if blocks[1].Name != "Installation" {
		t.Errorf("expected second block named Installation, got %q", blocks[1].Name)
	}
	for i, b := range blocks {
		if b.Metadata.Method != "markdown" {
			t.Errorf("block %d: expected markdown method, got %q", i, b.Metadata.Method)
		}
		if b.Language != "markdown" {
			t.Errorf("block %d: expected language markdown, got %q", i, b.Language)
		}
	}
}

func TestLanguage(t *testing.T) {
	cases := map[string]string{
		"a/b/main.go":  "go",
		"app.ts":       "typescript",
		"script.py":    "python",
		"lib.rs":       "rust",
		"README.md":    "markdown",
		"data.unknown": "text",
	}
	for path, want := range cases {
		if got := Language(path); got != want {
			t.Errorf("Language(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestSupportedExtensions(t *testing.T) {
	for _, ext := range []string{".go", ".ts", ".py", ".rs", ".md"} {
		if !SupportedExtensions[ext] {
			t.Errorf("expected %s to be supported", ext)
		}
	}
	if SupportedExtensions[".exe"] {
		t.Error(".exe should not be supported")
	}
}
