// Package ingestion turns Java source files into analysis results: one file
// at a time, a whole directory tree, or continuously while files change.
package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"gitlab.com/tozd/go/errors"
)

// FileEntry represents a file to be processed.
type FileEntry struct {
	// Path is the absolute file path.
	Path string

	// RelPath is the path relative to the walk root.
	RelPath string

	// Content is the file content.
	Content []byte

	// SHA256 is the hash of the file content.
	SHA256 string
}

// Default patterns to ignore (in addition to .gitignore).
var defaultIgnorePatterns = []string{
	".git/",
	".classgraph/",
	".gradle/",
	".idea/",
	".mvn/",
	"target/",
	"build/",
	"out/",
	"node_modules/",
	"*.class",
	".DS_Store",
}

// WalkSources walks root and returns every Java source file that is not
// ignored, ordered by relative path.
func WalkSources(root string, patterns []gitignore.Pattern) ([]FileEntry, error) {
	var entries []FileEntry

	allPatterns := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns)+len(patterns))
	for _, p := range defaultIgnorePatterns {
		allPatterns = append(allPatterns, gitignore.ParsePattern(p, nil))
	}
	allPatterns = append(allPatterns, patterns...)

	matcher := gitignore.NewMatcher(allPatterns)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && shouldSkipDir(d.Name(), path, root, matcher) {
				return filepath.SkipDir
			}
			return nil
		}

		if !isJavaFile(d.Name()) {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if matcher.Match(splitPath(relPath), false) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		entries = append(entries, FileEntry{
			Path:    path,
			RelPath: relPath,
			Content: content,
			SHA256:  hashContent(content),
		})

		return nil
	})
	if err != nil {
		return nil, errors.Errorf("walking %s: %w", root, err)
	}

	return entries, nil
}

// loadGitignore loads .gitignore patterns from the walk root.
func loadGitignore(root string) ([]gitignore.Pattern, error) {
	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Errorf("reading .gitignore: %w", err)
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}

	return patterns, nil
}

// isJavaFile checks if a file has the .java extension.
func isJavaFile(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".java")
}

// shouldSkipDir checks if a directory should be skipped.
func shouldSkipDir(name, path, root string, matcher gitignore.Matcher) bool {
	if name == ".git" {
		return true
	}

	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return matcher.Match(splitPath(relPath), true)
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	return strings.Split(path, string(filepath.Separator))
}

// hashContent returns the hex SHA-256 of content.
func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
