package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/classgraph/internal/graph"
	"github.com/Benny93/classgraph/internal/logging"
	"github.com/Benny93/classgraph/internal/parsers"
	"github.com/Benny93/classgraph/internal/storage"
	"github.com/Benny93/classgraph/internal/syntax"
)

const accountSource = `package bank;

public class Account {
    private int balance;
    private int limit;
    private String owner;
    private int audits;

    public Account(String owner) {
        this.owner = owner;
        balance = 0;
    }

    public void deposit(int amount) {
        balance = balance + amount;
        audit();
    }

    public void tick() {
        audits++;
    }

    public boolean overLimit() {
        return balance > limit;
    }

    private void audit() {
        audits += 1;
    }

    public void notifyOwner() {
        externalLib.doThing();
    }
}
`

func testContext(t *testing.T) context.Context {
	t.Helper()
	return logging.Discard(t.Context())
}

func TestAnalyzer_AnalyzeSource(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	res, err := NewAnalyzer(nil, Options{}).AnalyzeSource(ctx, "bank/Account.java", []byte(accountSource))
	require.NoError(t, err)

	t.Run("Declarations", func(t *testing.T) {
		assert.Equal(t, "bank", res.Package)
		assert.ElementsMatch(t, []string{"balance", "limit", "owner", "audits"}, res.Declarations.Fields)
		assert.ElementsMatch(t,
			[]string{syntax.ConstructorName, "deposit", "tick", "overLimit", "audit", "notifyOwner"},
			res.Declarations.Methods)
	})

	t.Run("RecordForEveryMethod", func(t *testing.T) {
		for _, m := range res.Declarations.Methods {
			assert.Contains(t, res.Relationships, m)
		}
	})

	t.Run("AssignmentReadsAndWrites", func(t *testing.T) {
		rec := res.Relationships["deposit"]
		assert.True(t, rec.Reads.Has("balance"))
		assert.True(t, rec.Writes.Has("balance"))
		assert.True(t, rec.Calls.Has("audit"))
	})

	t.Run("IncrementReadsAndWrites", func(t *testing.T) {
		rec := res.Relationships["tick"]
		assert.Equal(t, []string{"audits"}, rec.Reads.Sorted())
		assert.Equal(t, []string{"audits"}, rec.Writes.Sorted())
	})

	t.Run("ComparisonReads", func(t *testing.T) {
		rec := res.Relationships["overLimit"]
		assert.Equal(t, []string{"balance", "limit"}, rec.Reads.Sorted())
		assert.Empty(t, rec.Writes)
	})

	t.Run("CompoundAssignmentWrites", func(t *testing.T) {
		rec := res.Relationships["audit"]
		assert.Empty(t, rec.Reads)
		assert.Equal(t, []string{"audits"}, rec.Writes.Sorted())
	})

	t.Run("ConstructorWritesThroughThis", func(t *testing.T) {
		rec := res.Relationships[syntax.ConstructorName]
		assert.Equal(t, []string{"balance", "owner"}, rec.Writes.Sorted())
	})

	t.Run("QualifiedExternalCall", func(t *testing.T) {
		assert.True(t, res.Relationships["notifyOwner"].Calls.Has("doThing"))

		g := res.KnowledgeGraph()
		assert.Nil(t, g.GetNode("doThing"))
		assert.Empty(t, g.GetOutgoing("notifyOwner"))
	})

	t.Run("Diagnostics", func(t *testing.T) {
		assert.Equal(t, []graph.Diagnostic{
			{Kind: graph.DiagUnresolvedRead, Method: "deposit", Target: "amount"},
			{Kind: graph.DiagUnresolvedCall, Method: "notifyOwner", Target: "doThing"},
		}, res.Diagnostics)
	})

	t.Run("Graph", func(t *testing.T) {
		g := res.KnowledgeGraph()
		assert.Equal(t, 10, g.NodeCount())
		assert.Equal(t, graph.ConstructorLabel, g.GetNode(syntax.ConstructorName).Name)

		writes := g.GetIncoming("audits", graph.RelWrite)
		assert.Len(t, writes, 2)
		assert.Len(t, g.GetIncoming("audit", graph.RelCall), 1)
	})

	t.Run("Unused", func(t *testing.T) {
		assert.Equal(t, []string{"deposit", "notifyOwner", "overLimit", "tick"}, res.Unused)
	})
}

const bufferSource = `public class Buffer {
    private int[] data;
    private int pos;
    private int size;

    public void put(int v) {
        data[pos] = v;
        this.data[0] = v;
    }

    public void bumpFirst() {
        data[0]++;
    }

    public int size() {
        return size;
    }

    public void grow() {
        size = size * 2;
    }
}
`

func TestAnalyzer_ArrayElementWrites(t *testing.T) {
	t.Parallel()

	res, err := NewAnalyzer(nil, Options{}).AnalyzeSource(testContext(t), "Buffer.java", []byte(bufferSource))
	require.NoError(t, err)

	put := res.Relationships["put"]
	assert.True(t, put.Writes.Has("data"))
	assert.Equal(t, []string{"pos", "v"}, put.Reads.Sorted())

	bump := res.Relationships["bumpFirst"]
	assert.True(t, bump.Writes.Has("data"))
	assert.True(t, bump.Reads.Has("data"))

	g := res.KnowledgeGraph()
	writers := g.GetIncoming("data", graph.RelWrite)
	require.Len(t, writers, 2)
	assert.ElementsMatch(t, []string{"bumpFirst", "put"}, []string{writers[0].Source, writers[1].Source})
}

func TestAnalyzer_GetterNamedLikeField(t *testing.T) {
	t.Parallel()

	res, err := NewAnalyzer(nil, Options{}).AnalyzeSource(testContext(t), "Buffer.java", []byte(bufferSource))
	require.NoError(t, err)

	g := res.KnowledgeGraph()
	assert.Equal(t, 3, g.CountNodesByLabel(graph.NodeField))
	assert.Equal(t, graph.NodeMethod, g.GetNode("size").Label)

	writes := g.GetOutgoing("grow", graph.RelWrite)
	require.Len(t, writes, 1)
	assert.Equal(t, graph.FieldNodeID("size"), writes[0].Target)
	assert.Empty(t, g.GetIncoming("size"))

	assert.Contains(t, res.Diagnostics,
		graph.Diagnostic{Kind: graph.DiagNameCollision, Method: "size", Target: graph.FieldNodeID("size")})
}

func TestAnalyzer_ConstructorLabel(t *testing.T) {
	t.Parallel()

	res, err := NewAnalyzer(nil, Options{ConstructorLabel: "new Account"}).
		AnalyzeSource(testContext(t), "Account.java", []byte(accountSource))
	require.NoError(t, err)
	assert.Equal(t, "new Account", res.KnowledgeGraph().GetNode(syntax.ConstructorName).Name)
}

func TestAnalyzer_ParallelMatchesSequential(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	seq, err := NewAnalyzer(nil, Options{}).AnalyzeSource(ctx, "Account.java", []byte(accountSource))
	require.NoError(t, err)
	par, err := NewAnalyzer(nil, Options{Parallel: true, Workers: 3}).AnalyzeSource(ctx, "Account.java", []byte(accountSource))
	require.NoError(t, err)

	assert.Equal(t, seq, par)
}

func TestAnalyzer_ParseError(t *testing.T) {
	t.Parallel()

	_, err := NewAnalyzer(nil, Options{}).AnalyzeSource(testContext(t), "Broken.java", []byte("class Broken { void m( }"))
	require.Error(t, err)
	assert.ErrorIs(t, err, parsers.ErrParseFailed)

	var perr *parsers.ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestAnalyzer_AnalyzeFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "Account.java")
	require.NoError(t, os.WriteFile(path, []byte(accountSource), 0o644))

	a := NewAnalyzer(nil, Options{})
	res, err := a.AnalyzeFile(testContext(t), path)
	require.NoError(t, err)
	assert.Equal(t, path, res.Path)
	assert.Equal(t, hashContent([]byte(accountSource)), res.SHA256)

	_, err = a.AnalyzeFile(testContext(t), filepath.Join(dir, "Missing.java"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAnalyzer_Cache(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	store := storage.NewMemoryBackend()
	a := NewAnalyzer(store, Options{})

	fresh, err := a.AnalyzeSource(ctx, "Account.java", []byte(accountSource))
	require.NoError(t, err)
	assert.False(t, fresh.Cached)

	t.Run("HitEqualsFresh", func(t *testing.T) {
		cached, err := a.AnalyzeSource(ctx, "Account.java", []byte(accountSource))
		require.NoError(t, err)
		assert.True(t, cached.Cached)

		cached.Cached = false
		assert.Equal(t, fresh, cached)
	})

	t.Run("SameContentOtherPath", func(t *testing.T) {
		moved, err := a.AnalyzeSource(ctx, "moved/Account.java", []byte(accountSource))
		require.NoError(t, err)
		assert.True(t, moved.Cached)
		assert.Equal(t, "moved/Account.java", moved.Path)

		entries, err := store.ListResults(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("OtherConstructorLabelMisses", func(t *testing.T) {
		other := NewAnalyzer(store, Options{ConstructorLabel: "ctor"})
		res, err := other.AnalyzeSource(ctx, "Account.java", []byte(accountSource))
		require.NoError(t, err)
		assert.False(t, res.Cached)
	})
}

func TestAnalyzer_AnalyzeTree(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/bank/Account.java": accountSource,
		"src/bank/Broken.java":  "class Broken {",
		"src/util/Empty.java":   "class Empty {}",
		"target/Account.java":   accountSource,
	})

	var mu sync.Mutex
	var last float64
	progress := func(phase string, p float64) {
		mu.Lock()
		defer mu.Unlock()
		if phase == "Analyzing classes" {
			last = p
		}
	}

	tree, err := NewAnalyzer(nil, Options{Workers: 2}).AnalyzeTree(testContext(t), root, progress)
	require.NoError(t, err)

	require.Len(t, tree.Results, 2)
	assert.Equal(t, filepath.Join("src", "bank", "Account.java"), tree.Results[0].Path)
	assert.Equal(t, filepath.Join("src", "util", "Empty.java"), tree.Results[1].Path)
	assert.Empty(t, tree.Results[1].Declarations.Fields)

	require.Len(t, tree.Failed, 1)
	assert.Equal(t, filepath.Join("src", "bank", "Broken.java"), tree.Failed[0].Path)
	assert.ErrorIs(t, tree.Failed[0].Err, parsers.ErrParseFailed)

	assert.InDelta(t, 1.0, last, 1e-9)
	assert.Zero(t, tree.Cached)
}

func TestAnalyzer_AnalyzeTreeCanceled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"A.java": accountSource})

	ctx, cancel := context.WithCancel(testContext(t))
	cancel()

	_, err := NewAnalyzer(nil, Options{}).AnalyzeTree(ctx, root, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
