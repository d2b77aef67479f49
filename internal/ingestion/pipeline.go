package ingestion

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Benny93/classgraph/internal/analysis"
	"github.com/Benny93/classgraph/internal/graph"
	"github.com/Benny93/classgraph/internal/parsers"
	"github.com/Benny93/classgraph/internal/storage"
)

// DefaultDebounce is how long Watch waits for writes to settle.
const DefaultDebounce = 300 * time.Millisecond

// Result is the outcome of analyzing one source file.
type Result struct {
	// Path is the analyzed file as given by the caller.
	Path string `json:"path"`

	// SHA256 is the hex digest of the source.
	SHA256 string `json:"sha256"`

	// Package is the declared Java package, if any.
	Package string `json:"package,omitempty"`

	// ConstructorLabel is the display label used for constructor nodes.
	ConstructorLabel string `json:"constructor_label"`

	Declarations  analysis.Declarations  `json:"declarations"`
	Relationships analysis.Relationships `json:"relationships"`
	Graph         graph.Snapshot         `json:"graph"`
	Diagnostics   []graph.Diagnostic     `json:"diagnostics"`

	// Unused lists members nothing in the class refers to.
	Unused []string `json:"unused"`

	// Cached is set when the result came from the cache.
	Cached bool `json:"-"`
}

// KnowledgeGraph rebuilds the member graph from the snapshot.
func (r *Result) KnowledgeGraph() *graph.KnowledgeGraph {
	return graph.FromSnapshot(r.Graph)
}

// Options controls an Analyzer.
type Options struct {
	// ConstructorLabel is the display label of constructor nodes.
	ConstructorLabel string

	// Parallel classifies the methods of a file concurrently.
	Parallel bool

	// Workers bounds concurrency in parallel classification and in
	// AnalyzeTree. Zero means one per CPU.
	Workers int

	// Debounce is the quiet period Watch waits for before re-analyzing.
	Debounce time.Duration
}

// Analyzer runs the parse, classify and assemble phases for Java files.
type Analyzer struct {
	parser parsers.Parser
	store  storage.Backend
	opts   Options
}

// NewAnalyzer creates an analyzer. store may be nil to disable caching.
func NewAnalyzer(store storage.Backend, opts Options) *Analyzer {
	if opts.ConstructorLabel == "" {
		opts.ConstructorLabel = graph.ConstructorLabel
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Analyzer{
		parser: parsers.NewJavaParser(),
		store:  store,
		opts:   opts,
	}
}

// AnalyzeFile reads path and analyzes it.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading %s: %w", path, err)
	}
	return a.AnalyzeSource(ctx, path, content)
}

// AnalyzeSource analyzes Java source text. A syntax error in src is returned
// as a *parsers.ParseError. Unresolved names never fail the analysis; they are
// reported in Result.Diagnostics and logged at warn level.
func (a *Analyzer) AnalyzeSource(ctx context.Context, path string, src []byte) (*Result, error) {
	ctx = slogctx.With(ctx, slog.String("file", path))
	digest := hashContent(src)

	if res := a.loadCached(ctx, path, digest); res != nil {
		return res, nil
	}

	start := time.Now()
	unit, err := a.parser.Parse(ctx, path, src)
	if err != nil {
		return nil, err
	}

	decls := analysis.ExtractDeclarations(unit)
	rels, err := analysis.ExtractRelationships(ctx, unit, analysis.Options{
		Parallel: a.opts.Parallel,
		Workers:  a.opts.Workers,
	})
	if err != nil {
		return nil, errors.Errorf("classifying %s: %w", path, err)
	}

	g, diags := graph.Assemble(decls, rels, graph.AssembleOptions{ConstructorLabel: a.opts.ConstructorLabel})
	for _, d := range diags {
		slogctx.Warn(ctx, d.String(),
			slog.String("kind", string(d.Kind)),
			slog.String("method", d.Method),
			slog.String("target", d.Target),
		)
	}

	res := &Result{
		Path:             path,
		SHA256:           digest,
		Package:          unit.Package,
		ConstructorLabel: a.opts.ConstructorLabel,
		Declarations:     decls,
		Relationships:    rels,
		Graph:            g.Snapshot(),
		Diagnostics:      diags,
		Unused:           FindUnused(g),
	}

	slogctx.Debug(ctx, "analyzed",
		slog.Int("fields", len(decls.Fields)),
		slog.Int("methods", len(decls.Methods)),
		slog.Int("relationships", g.RelationshipCount()),
		slog.Duration("took", time.Since(start)),
	)

	a.saveCached(ctx, res)
	return res, nil
}

// loadCached returns a cached result for digest, or nil on a miss. Cache
// failures are logged and treated as misses.
func (a *Analyzer) loadCached(ctx context.Context, path, digest string) *Result {
	if a.store == nil {
		return nil
	}

	entry, err := a.store.LoadResult(ctx, digest)
	if err != nil {
		slogctx.Warn(ctx, "cache lookup failed", slog.Any("error", err))
		return nil
	}
	if entry == nil {
		return nil
	}

	var res Result
	if err := json.Unmarshal(entry.Result, &res); err != nil {
		slogctx.Warn(ctx, "cache entry unreadable", slog.Any("error", err))
		return nil
	}
	if res.ConstructorLabel != a.opts.ConstructorLabel {
		return nil
	}

	res.Path = path
	res.Cached = true
	slogctx.Debug(ctx, "cache hit", slog.String("sha256", digest))

	if entry.Path != path {
		a.saveCached(ctx, &res)
	}
	return &res
}

func (a *Analyzer) saveCached(ctx context.Context, res *Result) {
	if a.store == nil {
		return
	}

	data, err := json.Marshal(res)
	if err != nil {
		slogctx.Warn(ctx, "encoding cache entry failed", slog.Any("error", err))
		return
	}

	entry := &storage.Entry{Path: res.Path, SHA256: res.SHA256, Result: data}
	if err := a.store.SaveResult(ctx, entry); err != nil {
		slogctx.Warn(ctx, "cache write failed", slog.Any("error", err))
	}
}

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// FileError records a file AnalyzeTree could not analyze.
type FileError struct {
	Path string
	Err  error
}

// TreeResult summarizes an AnalyzeTree run.
type TreeResult struct {
	// Results holds one result per analyzed file, ordered by path.
	Results []*Result

	// Failed lists files that did not parse, ordered by path.
	Failed []FileError

	// Cached counts results served from the cache.
	Cached int

	Duration time.Duration
}

// AnalyzeTree analyzes every Java file under root. A file that fails to
// parse is recorded in Failed and does not stop the run; cancellation does.
func (a *Analyzer) AnalyzeTree(ctx context.Context, root string, progress ProgressCallback) (*TreeResult, error) {
	start := time.Now()
	report := func(phase string, p float64) {
		if progress != nil {
			progress(phase, p)
		}
	}

	report("Walking files", 0.0)
	patterns, err := loadGitignore(root)
	if err != nil {
		return nil, err
	}
	entries, err := WalkSources(root, patterns)
	if err != nil {
		return nil, err
	}
	report("Walking files", 1.0)

	results := make([]*Result, len(entries))
	failures := make([]error, len(entries))

	var mu sync.Mutex
	done := 0

	report("Analyzing classes", 0.0)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i, entry := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res, err := a.AnalyzeSource(gctx, entry.RelPath, entry.Content)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failures[i] = err
			}
			results[i] = res

			mu.Lock()
			done++
			report("Analyzing classes", float64(done)/float64(len(entries)))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		report("Analyzing classes", 1.0)
	}

	tree := &TreeResult{}
	for i, entry := range entries {
		if failures[i] != nil {
			slogctx.Warn(ctx, "skipping file", slog.String("file", entry.RelPath), slog.Any("error", failures[i]))
			tree.Failed = append(tree.Failed, FileError{Path: entry.RelPath, Err: failures[i]})
			continue
		}
		if results[i].Cached {
			tree.Cached++
		}
		tree.Results = append(tree.Results, results[i])
	}
	sort.Slice(tree.Results, func(i, j int) bool { return tree.Results[i].Path < tree.Results[j].Path })
	sort.Slice(tree.Failed, func(i, j int) bool { return tree.Failed[i].Path < tree.Failed[j].Path })
	tree.Duration = time.Since(start)

	return tree, nil
}
