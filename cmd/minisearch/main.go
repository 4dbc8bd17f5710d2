package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/minisearch"
	"github.com/fwojciec/minisearch/bert"
	"github.com/fwojciec/minisearch/crawl"
	"github.com/fwojciec/minisearch/goquery"
	"github.com/fwojciec/minisearch/html"
	mshttp "github.com/fwojciec/minisearch/http"
	"github.com/fwojciec/minisearch/ingest"
	"github.com/fwojciec/minisearch/openai"
	"github.com/fwojciec/minisearch/search"
	msslog "github.com/fwojciec/minisearch/slog"
	"github.com/fwojciec/minisearch/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Index directory used when neither --index nor MINISEARCH_INDEX is set.
	IndexDir string

	// Model directory used when neither --model nor MINISEARCH_MODEL is set.
	// A missing default model means a lexical-only index.
	ModelDir string

	// SQLite database holding the index and run history.
	DB *sqlite.DB

	// HTTP fetcher, set for crawls.
	Fetcher *mshttp.Fetcher
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	home := defaultHome()
	return &Main{
		IndexDir: filepath.Join(home, "index"),
		ModelDir: filepath.Join(home, "model"),
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	var errs []error
	if m.Fetcher != nil {
		errs = append(errs, m.Fetcher.Close())
	}
	if m.DB != nil {
		errs = append(errs, m.DB.Close())
	}
	return errors.Join(errs...)
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("minisearch"),
		kong.Description("Crawl a site into a local hybrid search index and query it."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'minisearch --help' to see available commands")
	}

	if cmd := args[0]; cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if cli.Verbose {
		level = slog.LevelDebug
	}
	deps.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	dir := cli.Index
	if dir == "" {
		dir = m.IndexDir
	}
	m.DB = sqlite.NewDB(dir)
	defer m.Close()

	switch command := strings.Fields(kongCtx.Command()); command[0] {
	case "crawl":
		err = m.wireCrawl(deps, cli)
	case "search":
		err = m.wireSearch(deps, cli)
	case "runs":
		err = m.wireRuns(deps)
	}
	if err != nil {
		return err
	}

	return kongCtx.Run(deps)
}

// wireCrawl opens the index for writing and assembles the ingestion pipeline.
func (m *Main) wireCrawl(deps *Dependencies, cli *CLI) error {
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(deps.Stderr, "Hint: Set MINISEARCH_INDEX to use a different index directory\n")
		return fmt.Errorf("failed to open index at %q: %w", m.DB.Dir(), err)
	}

	embedder, err := m.openEmbedder(deps, cli)
	if err != nil {
		return err
	}
	if embedder == nil {
		fmt.Fprintf(deps.Stderr, "No embedding model found; building a lexical-only index\n")
	}

	c := cli.Crawl
	logger := deps.Logger
	m.Fetcher = mshttp.NewFetcher()

	crawler := &crawl.Crawler{
		Fetcher:      msslog.NewLoggingFetcher(m.Fetcher, logger),
		LinkSelector: msslog.NewLoggingLinkSelector(goquery.NewLinkSelector(), logger),
		RateLimiter:  crawl.NewDomainLimiter(c.RPS),
		Concurrency:  c.Workers,
		Budget:       c.Budget,
		PathPrefix:   c.Prefix,
		MaxDepth:     c.Depth,
		Progress: func(event crawl.ProgressEvent) {
			if event.Type == crawl.ProgressFailed {
				fmt.Fprintf(deps.Stderr, "  skip %s: %v\n", crawl.TruncateURL(event.URL, 80), event.Error)
			}
		},
		Logger: logger,
	}
	if c.Sitemap {
		crawler.Sitemaps = msslog.NewLoggingSitemapService(mshttp.NewSitemapService(m.Fetcher.Client(), mshttp.WithMaxURLs(c.Budget)), logger)
	}

	var opts []sqlite.WriterOption
	if !c.Append {
		opts = append(opts, sqlite.WithReset())
	}

	deps.Pipeline = &ingest.Pipeline{
		Crawler:     crawler,
		Extractor:   html.NewExtractor(),
		Embedder:    embedder,
		Index:       sqlite.NewWriter(m.DB, opts...),
		Runs:        sqlite.NewRunService(m.DB),
		BatchSize:   c.BatchSize,
		CommitEvery: c.CommitEvery,
		Logger:      logger,
	}
	return nil
}

// wireSearch opens an existing index and the query engine over it.
func (m *Main) wireSearch(deps *Dependencies, cli *CLI) error {
	if err := m.DB.OpenExisting(); err != nil {
		return err
	}

	embedder, err := m.openEmbedder(deps, cli)
	if err != nil {
		// Lexical search still works without a query embedding.
		deps.Logger.Warn("embedding model unavailable", "err", err)
		embedder = nil
	}

	deps.Searcher = search.NewEngine(sqlite.NewReader(m.DB), embedder, deps.Logger)
	return nil
}

func (m *Main) wireRuns(deps *Dependencies) error {
	if err := m.DB.OpenExisting(); err != nil {
		return err
	}
	deps.Runs = sqlite.NewRunService(m.DB)
	return nil
}

// openEmbedder returns the configured embedder, or nil if none is
// configured and no model sits in the default location.
func (m *Main) openEmbedder(deps *Dependencies, cli *CLI) (minisearch.Embedder, error) {
	if cli.EmbeddingsURL != "" {
		var opts []openai.Option
		if cli.EmbeddingsModel != "" {
			opts = append(opts, openai.WithModel(cli.EmbeddingsModel))
		}
		if token := os.Getenv("OPENAI_API_KEY"); token != "" {
			opts = append(opts, openai.WithToken(token))
		}
		e, err := openai.NewEmbedder(cli.EmbeddingsURL, opts...)
		if err != nil {
			return nil, err
		}
		return msslog.NewLoggingEmbedder(e, deps.Logger), nil
	}

	dir := cli.Model
	if dir == "" {
		dir = m.ModelDir
		if !bert.Exists(dir) {
			return nil, nil
		}
	}

	e, err := bert.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedding model from %q: %w", dir, err)
	}
	return msslog.NewLoggingEmbedder(e, deps.Logger), nil
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".minisearch"
	}
	return filepath.Join(home, ".minisearch")
}
