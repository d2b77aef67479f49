// Package cmd provides CLI command implementations for classgraph.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/k0kubun/pp/v3"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"

	"github.com/Benny93/classgraph/internal/config"
	"github.com/Benny93/classgraph/internal/ingestion"
	"github.com/Benny93/classgraph/internal/logging"
	"github.com/Benny93/classgraph/internal/parsers"
	"github.com/Benny93/classgraph/internal/render"
	"github.com/Benny93/classgraph/internal/storage"
	"github.com/Benny93/classgraph/internal/syntax"
	"github.com/Benny93/classgraph/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Globals holds the flags shared by every command.
type Globals struct {
	Config   string           `short:"c" default:"${config_file}" help:"Config file; a missing file means defaults"`
	LogLevel string           `help:"Log level: debug, info, warn, error"`
	NoColor  bool             `help:"Disable colored output"`
	Version  kong.VersionFlag `help:"Show version information"`

	// Stdout receives command output. Defaults to os.Stdout.
	Stdout io.Writer `kong:"-"`
}

func (g *Globals) out() io.Writer {
	if g.Stdout != nil {
		return g.Stdout
	}
	return os.Stdout
}

// setup loads the config file, applies the global flag overrides and
// installs the logger. The returned context carries the logger.
func (g *Globals) setup(ctx context.Context) (context.Context, config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return ctx, cfg, err
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return ctx, cfg, err
	}

	if g.NoColor {
		color.NoColor = true
	}
	ctx, err = logging.Setup(ctx, os.Stderr, cfg.LogLevel, !color.NoColor)
	if err != nil {
		return ctx, cfg, err
	}
	return ctx, cfg, nil
}

// OutputFlags override where and how graphs are rendered.
type OutputFlags struct {
	Format           string `short:"f" help:"Output format: html or json"`
	Out              string `short:"o" help:"Output directory" type:"path"`
	ConstructorLabel string `help:"Display label of constructor nodes"`
	NoCache          bool   `help:"Do not read or write the analysis cache"`
}

func (o OutputFlags) apply(cfg *config.Config) error {
	if o.Format != "" {
		cfg.Format = o.Format
	}
	if o.Out != "" {
		cfg.OutputDir = o.Out
	}
	if o.ConstructorLabel != "" {
		cfg.ConstructorLabel = o.ConstructorLabel
	}
	return cfg.Validate()
}

// AnalyzeCmd analyzes one Java class and renders its member graph.
type AnalyzeCmd struct {
	File     string `arg:"" type:"existingfile" help:"Java source file"`
	Parallel bool   `help:"Classify methods concurrently"`
	OutputFlags
}

// Run executes the analyze command.
func (c *AnalyzeCmd) Run(g *Globals) error {
	ctx, cfg, err := g.setup(context.Background())
	if err != nil {
		return err
	}
	if err := c.apply(&cfg); err != nil {
		return err
	}
	cfg.Parallel = cfg.Parallel || c.Parallel

	store, err := openCache(cfg, c.NoCache)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	analyzer := newAnalyzer(store, cfg)
	res, err := analyzer.AnalyzeFile(ctx, c.File)
	if err != nil {
		return errors.Errorf("analyzing %s: %w", c.File, err)
	}

	w := g.out()
	printResult(w, res)

	path, size, err := render.WriteFile(cfg.OutputDir, cfg.Format, res)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(w, "\n✓ Wrote %s (%s)\n", path, humanize.Bytes(uint64(size)))

	return nil
}

// BatchCmd analyzes every Java file under a directory.
type BatchCmd struct {
	Dir string `arg:"" optional:"" default:"." type:"existingdir" help:"Directory to scan"`
	OutputFlags
}

// Run executes the batch command.
func (c *BatchCmd) Run(g *Globals) error {
	ctx, cfg, err := g.setup(context.Background())
	if err != nil {
		return err
	}
	if err := c.apply(&cfg); err != nil {
		return err
	}

	store, err := openCache(cfg, c.NoCache)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	w := g.out()
	color.New(color.FgGreen).Fprintf(w, "Analyzing %s\n", c.Dir)

	progress := func(phase string, pct float64) {
		fmt.Fprintf(os.Stderr, "\r\033[K%s (%.0f%%)", phase, pct*100)
	}

	tree, err := newAnalyzer(store, cfg).AnalyzeTree(ctx, c.Dir, progress)
	fmt.Fprintln(os.Stderr) // Newline after progress
	if err != nil {
		return errors.Errorf("analyzing %s: %w", c.Dir, err)
	}

	var total int64
	diagnostics := 0
	for _, res := range tree.Results {
		dir := filepath.Join(cfg.OutputDir, filepath.Dir(res.Path))
		_, size, err := render.WriteFile(dir, cfg.Format, res)
		if err != nil {
			return err
		}
		total += size
		diagnostics += len(res.Diagnostics)
	}

	color.New(color.FgGreen).Fprintln(w, "\n✓ Analysis complete")
	fmt.Fprintf(w, "  Classes:      %d\n", len(tree.Results))
	fmt.Fprintf(w, "  From cache:   %d\n", tree.Cached)
	fmt.Fprintf(w, "  Diagnostics:  %d\n", diagnostics)
	fmt.Fprintf(w, "  Output:       %s (%s)\n", cfg.OutputDir, humanize.Bytes(uint64(total)))
	fmt.Fprintf(w, "  Duration:     %.2fs\n", tree.Duration.Seconds())

	if len(tree.Failed) > 0 {
		color.New(color.FgYellow).Fprintf(w, "\n%d files failed to parse:\n", len(tree.Failed))
		for _, f := range tree.Failed {
			fmt.Fprintf(w, "  %s: %v\n", f.Path, f.Err)
		}
	}

	return nil
}

// WatchCmd re-renders Java classes whenever they change.
type WatchCmd struct {
	Files []string `arg:"" type:"existingfile" help:"Java source files to watch"`
	OutputFlags
}

// Run executes the watch command.
func (c *WatchCmd) Run(g *Globals) error {
	ctx, cfg, err := g.setup(context.Background())
	if err != nil {
		return err
	}
	if err := c.apply(&cfg); err != nil {
		return err
	}

	store, err := openCache(cfg, c.NoCache)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-osSignalChannel():
			cancel()
		case <-ctx.Done():
		}
	}()

	w := g.out()
	color.New(color.FgGreen).Fprintf(w, "Watching %s\n", strings.Join(c.Files, ", "))
	fmt.Fprintln(w, "Press Ctrl+C to stop")

	err = newAnalyzer(store, cfg).Watch(ctx, c.Files, func(res *ingestion.Result, err error) {
		if err != nil {
			color.New(color.FgRed).Fprintf(w, "✗ %v\n", err)
			return
		}
		path, _, err := render.WriteFile(cfg.OutputDir, cfg.Format, res)
		if err != nil {
			slogctx.Error(ctx, "rendering failed", slog.String("file", res.Path), slog.Any("error", err))
			return
		}
		fmt.Fprintf(w, "[%s] %s: %d edges, %d diagnostics -> %s\n",
			time.Now().Format("15:04:05"), res.Path,
			len(res.Graph.Relationships), len(res.Diagnostics), path)
	})
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(w, "\nStopped watching")
		return nil
	}
	return err
}

// ASTCmd dumps the syntax model of a Java file.
type ASTCmd struct {
	File string `arg:"" type:"existingfile" help:"Java source file"`
}

// Run executes the ast command.
func (c *ASTCmd) Run(g *Globals) error {
	ctx, _, err := g.setup(context.Background())
	if err != nil {
		return err
	}

	parser, err := parsers.ForFile(c.File)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(c.File)
	if err != nil {
		return errors.Errorf("reading %s: %w", c.File, err)
	}
	unit, err := parser.Parse(ctx, c.File, content)
	if err != nil {
		return err
	}

	printer := pp.New()
	printer.SetColoringEnabled(!color.NoColor)
	printer.SetExportedOnly(true)
	_, err = printer.Fprintln(g.out(), unit)
	return err
}

// CacheCmd manages the analysis cache.
type CacheCmd struct {
	List  CacheListCmd  `cmd:"" help:"List cached analysis results"`
	Clean CacheCleanCmd `cmd:"" help:"Remove cached analysis results"`
}

// CacheListCmd lists cached results.
type CacheListCmd struct{}

// Run executes the cache list command.
func (c *CacheListCmd) Run(g *Globals) error {
	ctx, cfg, err := g.setup(context.Background())
	if err != nil {
		return err
	}

	w := g.out()
	if _, err := os.Stat(cfg.CacheDir); os.IsNotExist(err) {
		fmt.Fprintln(w, "No cached results")
		return nil
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(cfg.CacheDir, true); err != nil {
		return errors.Errorf("opening cache: %w", err)
	}
	defer func() { _ = store.Close() }()

	entries, err := store.ListResults(ctx)
	if err != nil {
		return errors.Errorf("listing cache: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No cached results")
		return nil
	}

	color.New(color.FgGreen).Fprintf(w, "Cached results (%d):\n\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(w, "  %s\n", e.Path)
		fmt.Fprintf(w, "    SHA256: %s\n", shortHash(e.SHA256))
		fmt.Fprintf(w, "    Saved:  %s\n", humanize.Time(e.SavedAt))
		fmt.Fprintf(w, "    Size:   %s\n", humanize.Bytes(uint64(e.Size())))
	}

	return nil
}

// CacheCleanCmd removes one cached path, or everything.
type CacheCleanCmd struct {
	Path  string `arg:"" optional:"" help:"Only remove the entry for this path"`
	Force bool   `short:"f" help:"Skip confirmation"`
}

// Run executes the cache clean command.
func (c *CacheCleanCmd) Run(g *Globals) error {
	ctx, cfg, err := g.setup(context.Background())
	if err != nil {
		return err
	}

	w := g.out()
	if _, err := os.Stat(cfg.CacheDir); os.IsNotExist(err) {
		fmt.Fprintf(w, "No cache at %s. Nothing to clean\n", cfg.CacheDir)
		return nil
	}

	if c.Path == "" && !c.Force {
		fmt.Fprintf(w, "Delete all cached results in %s? [y/N] ", cfg.CacheDir)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(w, "Aborted")
			return nil
		}
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(cfg.CacheDir, false); err != nil {
		return errors.Errorf("opening cache: %w", err)
	}
	defer func() { _ = store.Close() }()

	if c.Path != "" {
		removed, err := store.RemoveResult(ctx, c.Path)
		if err != nil {
			return errors.Errorf("removing %s: %w", c.Path, err)
		}
		if !removed {
			fmt.Fprintf(w, "%s is not cached\n", c.Path)
			return nil
		}
		color.New(color.FgGreen).Fprintf(w, "Removed %s\n", c.Path)
		return nil
	}

	n, err := store.Clear(ctx)
	if err != nil {
		return errors.Errorf("clearing cache: %w", err)
	}
	color.New(color.FgGreen).Fprintf(w, "Removed %d cached results\n", n)
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct {
	SDK     bool `help:"Serve through the go-sdk stdio transport"`
	NoCache bool `help:"Do not read or write the analysis cache"`
}

// Run executes the mcp command.
func (c *MCPCmd) Run(g *Globals) error {
	g.NoColor = true
	ctx, cfg, err := g.setup(context.Background())
	if err != nil {
		return err
	}

	store, err := openCache(cfg, c.NoCache)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	server := mcp.NewServer(newAnalyzer(store, cfg))

	// Logs go to stderr; stdout carries JSON-RPC only.
	if c.SDK {
		return server.RunSDK(ctx)
	}
	return server.Run(ctx, os.Stdin, os.Stdout)
}

// Helper functions

// osSignalChannel returns a channel that receives OS signals for graceful shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

// openCache opens the badger cache at cfg.CacheDir. It returns a nil
// backend when caching is disabled.
func openCache(cfg config.Config, disabled bool) (storage.Backend, error) {
	if disabled || cfg.CacheDir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, errors.Errorf("creating cache directory: %w", err)
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(cfg.CacheDir, false); err != nil {
		return nil, errors.Errorf("initializing cache: %w", err)
	}

	return store, nil
}

func newAnalyzer(store storage.Backend, cfg config.Config) *ingestion.Analyzer {
	return ingestion.NewAnalyzer(store, ingestion.Options{
		ConstructorLabel: cfg.ConstructorLabel,
		Parallel:         cfg.Parallel,
		Workers:          cfg.Workers,
	})
}

// printResult writes the member summary, the raw relationship records and
// the diagnostic transcript.
func printResult(w io.Writer, res *ingestion.Result) {
	bold := color.New(color.Bold)
	label := func(id string) string {
		if id == syntax.ConstructorName {
			return res.ConstructorLabel
		}
		return id
	}

	bold.Fprintf(w, "%s", res.Path)
	if res.Package != "" {
		fmt.Fprintf(w, " (package %s)", res.Package)
	}
	if res.Cached {
		fmt.Fprint(w, " [cached]")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\nFields (%d): %s\n", len(res.Declarations.Fields), strings.Join(res.Declarations.Fields, ", "))
	methods := make([]string, len(res.Declarations.Methods))
	for i, m := range res.Declarations.Methods {
		methods[i] = label(m)
	}
	fmt.Fprintf(w, "Methods (%d): %s\n", len(methods), strings.Join(methods, ", "))

	bold.Fprintln(w, "\nRelationships:")
	for _, name := range res.Relationships.Names() {
		rec := res.Relationships[name]
		fmt.Fprintf(w, "  %s\n", label(name))
		printSet(w, "reads", rec.Reads.Sorted())
		printSet(w, "writes", rec.Writes.Sorted())
		printSet(w, "calls", rec.Calls.Sorted())
	}

	if len(res.Diagnostics) > 0 {
		warn := color.New(color.FgYellow)
		warn.Fprintf(w, "\nDiagnostics (%d):\n", len(res.Diagnostics))
		for _, d := range res.Diagnostics {
			warn.Fprintf(w, "  ⚠ %s\n", d.String())
		}
	}

	if len(res.Unused) > 0 {
		fmt.Fprintf(w, "\nUnused: %s\n", strings.Join(res.Unused, ", "))
	}
}

func printSet(w io.Writer, name string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(w, "    %-7s %s\n", name+":", strings.Join(values, ", "))
}

func shortHash(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}

// CLI represents the command-line interface.
type CLI struct {
	Globals

	// Commands
	Analyze AnalyzeCmd `cmd:"" help:"Analyze one Java class and render its member graph"`
	Batch   BatchCmd   `cmd:"" help:"Analyze every Java file under a directory"`
	Watch   WatchCmd   `cmd:"" help:"Re-render Java classes when they change"`
	AST     ASTCmd     `cmd:"" name:"ast" help:"Dump the syntax model of a Java file"`
	Cache   CacheCmd   `cmd:"" help:"Manage the analysis cache"`
	MCP     MCPCmd     `cmd:"" name:"mcp" help:"Start MCP server (stdio transport)"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("classgraph"),
		kong.Description("Field access and call graphs for Java classes"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":     Version,
			"config_file": config.DefaultFile,
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	return kongCtx.Run(&c.Globals)
}
