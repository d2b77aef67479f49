package render

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/classgraph/internal/config"
	"github.com/Benny93/classgraph/internal/ingestion"
	"github.com/Benny93/classgraph/internal/logging"
)

const counterSource = `class Counter {
    private int count;

    Counter() { count = 0; }

    void increment() { count = count + 1; }

    void run() { increment(); }
}
`

func analyze(t *testing.T) *ingestion.Result {
	t.Helper()
	res, err := ingestion.NewAnalyzer(nil, ingestion.Options{}).
		AnalyzeSource(logging.Discard(t.Context()), "demo/Counter.java", []byte(counterSource))
	require.NoError(t, err)
	return res
}

// visData pulls the JSON array passed to the named vis.DataSet.
func visData(t *testing.T, page, name string) []map[string]any {
	t.Helper()
	marker := "var " + name + " = new vis.DataSet("
	start := strings.Index(page, marker)
	require.NotEqual(t, -1, start, "missing %s", name)
	rest := page[start+len(marker):]
	end := strings.Index(rest, ");\n")
	require.NotEqual(t, -1, end)

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(rest[:end]), &out))
	return out
}

func TestHTML(t *testing.T) {
	t.Parallel()

	res := analyze(t)
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, res.KnowledgeGraph(), "Counter.java"))
	page := buf.String()

	t.Run("FullscreenCanvas", func(t *testing.T) {
		assert.Contains(t, page, "<title>Counter.java</title>")
		assert.Contains(t, page, "width: 100vw; height: 100vh;")
		assert.Contains(t, page, "window.addEventListener('resize'")
	})

	t.Run("Nodes", func(t *testing.T) {
		nodes := visData(t, page, "nodes")
		require.Len(t, nodes, 4)

		byID := map[string]map[string]any{}
		for _, n := range nodes {
			byID[n["id"].(string)] = n
		}
		assert.Equal(t, "box", byID["count"]["shape"])
		assert.Equal(t, "ellipse", byID["increment"]["shape"])
		assert.Equal(t, "Constructor", byID["<init>"]["label"])
	})

	t.Run("EdgeTags", func(t *testing.T) {
		edges := visData(t, page, "edges")

		tags := map[string]string{}
		for _, e := range edges {
			tags[e["id"].(string)] = e["label"].(string)
		}
		assert.Equal(t, map[string]string{
			"read:increment->count":  "R",
			"write:increment->count": "W",
			"write:<init>->count":    "W",
			"call:run->increment":    "C",
		}, tags)
	})
}

func TestJSON(t *testing.T) {
	t.Parallel()

	res := analyze(t)
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, res))

	var decoded ingestion.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, res.Declarations, decoded.Declarations)
	assert.Equal(t, res.Graph, decoded.Graph)
	assert.Contains(t, buf.String(), `"reads": [`)
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	res := analyze(t)

	for _, format := range config.Formats {
		t.Run(format, func(t *testing.T) {
			t.Parallel()
			dir := filepath.Join(t.TempDir(), "out")

			path, size, err := WriteFile(dir, format, res)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, "Counter."+format), path)

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, info.Size(), size)
			assert.Positive(t, size)
		})
	}

	t.Run("UnknownFormat", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		_, _, err := WriteFile(dir, "svg", res)
		assert.ErrorIs(t, err, ErrUnknownFormat)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
