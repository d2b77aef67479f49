package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(root, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
	}
}

func relPaths(entries []FileEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, filepath.ToSlash(e.RelPath))
	}
	return out
}

func TestWalkSources(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"Main.java":                         "class Main {}",
		"src/main/java/demo/Counter.java":   "class Counter {}",
		"src/test/java/demo/CounterIT.java": "class CounterIT {}",
		"generated/Gen.java":                "class Gen {}",
		"target/classes/Main.class":         "binary",
		"target/Stale.java":                 "class Stale {}",
		"README.md":                         "# README",
		".gitignore":                        "generated/\n# comment\n\n",
	})

	t.Run("DefaultIgnores", func(t *testing.T) {
		entries, err := WalkSources(tmpDir, nil)
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{
			"Main.java",
			"generated/Gen.java",
			"src/main/java/demo/Counter.java",
			"src/test/java/demo/CounterIT.java",
		}, relPaths(entries))
	})

	t.Run("RespectGitignore", func(t *testing.T) {
		patterns, err := loadGitignore(tmpDir)
		require.NoError(t, err)
		require.Len(t, patterns, 1)

		entries, err := WalkSources(tmpDir, patterns)
		require.NoError(t, err)
		assert.NotContains(t, relPaths(entries), "generated/Gen.java")
		assert.Len(t, entries, 3)
	})

	t.Run("HashAndContent", func(t *testing.T) {
		entries, err := WalkSources(tmpDir, nil)
		require.NoError(t, err)

		for _, e := range entries {
			sum := sha256.Sum256(e.Content)
			assert.Equal(t, hex.EncodeToString(sum[:]), e.SHA256)
			assert.True(t, filepath.IsAbs(e.Path))
		}
	})

	t.Run("MissingRoot", func(t *testing.T) {
		_, err := WalkSources(filepath.Join(tmpDir, "absent"), nil)
		assert.Error(t, err)
	})
}

func TestLoadGitignore_Missing(t *testing.T) {
	t.Parallel()

	patterns, err := loadGitignore(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, patterns)
}

func TestIsJavaFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"Counter.java", true},
		{"LEGACY.JAVA", true},
		{"Counter.class", false},
		{"java", false},
		{"notes.java.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isJavaFile(tt.name))
		})
	}
}
