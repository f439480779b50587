package indexer

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoreMatcher evaluates glob-style exclude patterns against paths relative
// to the project root.
type IgnoreMatcher struct {
	root     string
	matcher  *ignore.GitIgnore
	patterns []string
}

// NewIgnoreMatcher compiles exclude patterns for a project root. The
// project's own .gitignore, when present, is honored in addition to the
// configured patterns.
func NewIgnoreMatcher(root string, patterns []string) *IgnoreMatcher {
	lines := make([]string, 0, len(patterns))
	lines = append(lines, patterns...)

	gitignorePath := filepath.Join(root, ".gitignore")
	if data, err := os.ReadFile(gitignorePath); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			lines = append(lines, trimmed)
		}
	}

	return &IgnoreMatcher{
		root:     root,
		matcher:  ignore.CompileIgnoreLines(lines...),
		patterns: patterns,
	}
}

// ShouldIgnore reports whether a root-relative path matches any exclude
// pattern.
func (m *IgnoreMatcher) ShouldIgnore(relPath string) bool {
	normalized := filepath.ToSlash(relPath)
	if normalized == "." || normalized == "" {
		return false
	}
	return m.matcher.MatchesPath(normalized) || m.matcher.MatchesPath(normalized+"/")
}

// ShouldSkipDir reports whether a directory subtree can be pruned entirely.
func (m *IgnoreMatcher) ShouldSkipDir(relPath string) bool {
	return m.ShouldIgnore(relPath)
}

// AddToGitignore appends a pattern to the project's .gitignore if not
// already present.
func AddToGitignore(projectRoot string, pattern string) error {
	gitignorePath := filepath.Join(projectRoot, ".gitignore")

	if exists, err := patternExists(gitignorePath, pattern); err != nil {
		return err
	} else if exists {
		return nil
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	if info.Size() > 0 {
		content, err := os.ReadFile(gitignorePath)
		if err != nil {
			return err
		}
		if len(content) > 0 && content[len(content)-1] != '\n' {
			if _, err := f.WriteString("\n"); err != nil {
				return err
			}
		}
	}

	if _, err := f.WriteString(pattern + "\n"); err != nil {
		return err
	}

	return nil
}

func patternExists(gitignorePath string, pattern string) (bool, error) {
	f, err := os.Open(gitignorePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == pattern {
			return true, nil
		}
	}

	return false, scanner.Err()
}
