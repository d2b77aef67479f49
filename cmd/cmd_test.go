package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/classgraph/internal/config"
)

const counterSource = `
package demo;

public class Counter {
    private int count;
    private int limit;

    public Counter(int limit) {
        this.limit = limit;
    }

    public void increment() {
        if (count < limit) {
            count++;
        }
        notifyListeners();
    }

    public void reset() {
        count = 0;
        increment();
    }
}
`

// testEnv is a scratch workspace with its own config, cache and output dir.
type testEnv struct {
	dir     string
	outDir  string
	globals *Globals
	stdout  *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.LogLevel = "error"

	cfgPath := filepath.Join(dir, config.DefaultFile)
	require.NoError(t, cfg.Save(cfgPath))

	stdout := &bytes.Buffer{}
	return &testEnv{
		dir:     dir,
		outDir:  cfg.OutputDir,
		globals: &Globals{Config: cfgPath, Stdout: stdout},
		stdout:  stdout,
	}
}

func (e *testEnv) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAnalyzeCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("RendersHTML", func(t *testing.T) {
		env := newTestEnv(t)
		file := env.write(t, "Counter.java", counterSource)

		cmd := &AnalyzeCmd{File: file}
		require.NoError(t, cmd.Run(env.globals))

		_, err := os.Stat(filepath.Join(env.outDir, "Counter.html"))
		assert.NoError(t, err)

		out := env.stdout.String()
		assert.Contains(t, out, "(package demo)")
		assert.Contains(t, out, "Fields (2):")
		assert.Contains(t, out, "Methods (3):")
		assert.Contains(t, out, "  Constructor\n    reads:  limit\n    writes: limit")
		assert.Contains(t, out, "method 'notifyListeners' (called by increment) is not declared")
		assert.Contains(t, out, "Counter.html")
	})

	t.Run("JSONWithOverrides", func(t *testing.T) {
		env := newTestEnv(t)
		file := env.write(t, "Counter.java", counterSource)
		out := filepath.Join(env.dir, "elsewhere")

		cmd := &AnalyzeCmd{
			File: file,
			OutputFlags: OutputFlags{
				Format:           config.FormatJSON,
				Out:              out,
				ConstructorLabel: "new Counter()",
				NoCache:          true,
			},
		}
		require.NoError(t, cmd.Run(env.globals))

		data, err := os.ReadFile(filepath.Join(out, "Counter.json"))
		require.NoError(t, err)
		assert.Contains(t, string(data), `"new Counter()"`)
		assert.Contains(t, env.stdout.String(), "  new Counter()\n    reads:  limit\n    writes: limit")

		_, err = os.Stat(filepath.Join(env.dir, "cache"))
		assert.True(t, os.IsNotExist(err), "--no-cache must not create the cache")
	})

	t.Run("SecondRunIsCached", func(t *testing.T) {
		env := newTestEnv(t)
		file := env.write(t, "Counter.java", counterSource)

		require.NoError(t, (&AnalyzeCmd{File: file}).Run(env.globals))
		assert.NotContains(t, env.stdout.String(), "[cached]")

		env.stdout.Reset()
		require.NoError(t, (&AnalyzeCmd{File: file}).Run(env.globals))
		assert.Contains(t, env.stdout.String(), "[cached]")
	})

	t.Run("InvalidFormat", func(t *testing.T) {
		env := newTestEnv(t)
		file := env.write(t, "Counter.java", counterSource)

		cmd := &AnalyzeCmd{File: file, OutputFlags: OutputFlags{Format: "svg"}}
		err := cmd.Run(env.globals)
		assert.ErrorIs(t, err, config.ErrInvalid)
	})

	t.Run("InvalidLogLevel", func(t *testing.T) {
		env := newTestEnv(t)
		file := env.write(t, "Counter.java", counterSource)
		env.globals.LogLevel = "loud"

		err := (&AnalyzeCmd{File: file}).Run(env.globals)
		assert.ErrorIs(t, err, config.ErrInvalid)
	})

	t.Run("SyntaxError", func(t *testing.T) {
		env := newTestEnv(t)
		file := env.write(t, "Broken.java", "class Broken { void m( }")

		err := (&AnalyzeCmd{File: file, OutputFlags: OutputFlags{NoCache: true}}).Run(env.globals)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Broken.java")

		_, statErr := os.Stat(env.outDir)
		assert.True(t, os.IsNotExist(statErr), "nothing is rendered on a parse failure")
	})
}

func TestBatchCmd_Run(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.write(t, "src/demo/Counter.java", counterSource)
	env.write(t, "src/other/Counter.java", counterSource)
	env.write(t, "src/Broken.java", "class Broken {")
	env.write(t, "target/Generated.java", counterSource)

	cmd := &BatchCmd{Dir: filepath.Join(env.dir, "src")}
	require.NoError(t, cmd.Run(env.globals))

	out := env.stdout.String()
	assert.Contains(t, out, "Classes:      2")
	assert.Contains(t, out, "1 files failed to parse")
	assert.Contains(t, out, "Broken.java")

	for _, rel := range []string{"demo/Counter.html", "other/Counter.html"} {
		_, err := os.Stat(filepath.Join(env.outDir, rel))
		assert.NoError(t, err, rel)
	}
}

func TestASTCmd_Run(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	file := env.write(t, "Counter.java", counterSource)

	require.NoError(t, (&ASTCmd{File: file}).Run(env.globals))

	out := env.stdout.String()
	assert.Contains(t, out, "CompilationUnit")
	assert.Contains(t, out, "MethodDeclaration")
	assert.Contains(t, out, `"increment"`)
}

func TestCacheCmds(t *testing.T) {
	t.Parallel()

	t.Run("NoCacheYet", func(t *testing.T) {
		env := newTestEnv(t)

		require.NoError(t, (&CacheListCmd{}).Run(env.globals))
		assert.Contains(t, env.stdout.String(), "No cached results")

		env.stdout.Reset()
		require.NoError(t, (&CacheCleanCmd{Force: true}).Run(env.globals))
		assert.Contains(t, env.stdout.String(), "Nothing to clean")
	})

	t.Run("ListRemoveClear", func(t *testing.T) {
		env := newTestEnv(t)
		counter := env.write(t, "Counter.java", counterSource)
		other := env.write(t, "Other.java", "class Other { int x; void touch() { x = 1; } }")

		require.NoError(t, (&AnalyzeCmd{File: counter}).Run(env.globals))
		require.NoError(t, (&AnalyzeCmd{File: other}).Run(env.globals))

		env.stdout.Reset()
		require.NoError(t, (&CacheListCmd{}).Run(env.globals))
		out := env.stdout.String()
		assert.Contains(t, out, "Cached results (2)")
		assert.Contains(t, out, counter)
		assert.Contains(t, out, other)

		env.stdout.Reset()
		require.NoError(t, (&CacheCleanCmd{Path: counter}).Run(env.globals))
		assert.Contains(t, env.stdout.String(), "Removed "+counter)

		env.stdout.Reset()
		require.NoError(t, (&CacheCleanCmd{Path: counter}).Run(env.globals))
		assert.Contains(t, env.stdout.String(), "is not cached")

		env.stdout.Reset()
		require.NoError(t, (&CacheCleanCmd{Force: true}).Run(env.globals))
		assert.Contains(t, env.stdout.String(), "Removed 1 cached results")

		env.stdout.Reset()
		require.NoError(t, (&CacheListCmd{}).Run(env.globals))
		assert.Contains(t, env.stdout.String(), "No cached results")
	})
}

func TestOpenCache(t *testing.T) {
	t.Parallel()

	t.Run("Disabled", func(t *testing.T) {
		cfg := config.Default()
		cfg.CacheDir = filepath.Join(t.TempDir(), "cache")

		store, err := openCache(cfg, true)
		require.NoError(t, err)
		assert.Nil(t, store)
	})

	t.Run("EmptyDirDisables", func(t *testing.T) {
		cfg := config.Default()
		cfg.CacheDir = ""

		store, err := openCache(cfg, false)
		require.NoError(t, err)
		assert.Nil(t, store)
	})

	t.Run("Opens", func(t *testing.T) {
		cfg := config.Default()
		cfg.CacheDir = filepath.Join(t.TempDir(), "nested", "cache")

		store, err := openCache(cfg, false)
		require.NoError(t, err)
		require.NotNil(t, store)
		assert.NoError(t, store.Close())
	})
}

func TestCLI_Execute(t *testing.T) {
	t.Parallel()

	t.Run("Analyze", func(t *testing.T) {
		env := newTestEnv(t)
		file := env.write(t, "Counter.java", counterSource)
		out := filepath.Join(env.dir, "cli-out")

		cli := NewCLI()
		cli.Stdout = env.stdout
		err := cli.Execute([]string{"--config", env.globals.Config, "analyze", file, "-f", "json", "-o", out, "--no-cache"})
		require.NoError(t, err)

		_, err = os.Stat(filepath.Join(out, "Counter.json"))
		assert.NoError(t, err)
	})

	t.Run("UnknownCommand", func(t *testing.T) {
		err := NewCLI().Execute([]string{"frobnicate"})
		assert.Error(t, err)
	})

	t.Run("MissingFile", func(t *testing.T) {
		err := NewCLI().Execute([]string{"analyze", filepath.Join(t.TempDir(), "Nope.java")})
		assert.Error(t, err)
	})
}
