package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/fwojciec/minisearch"
	"github.com/fwojciec/minisearch/ingest"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx      context.Context
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   *slog.Logger
	Pipeline *ingest.Pipeline
	Searcher minisearch.Searcher
	Runs     minisearch.RunService
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Index           string `short:"i" env:"MINISEARCH_INDEX" help:"Index directory (default ~/.minisearch/index)"`
	Model           string `env:"MINISEARCH_MODEL" help:"Local embedding model directory (default ~/.minisearch/model)"`
	EmbeddingsURL   string `name:"embeddings-url" env:"MINISEARCH_EMBEDDINGS_URL" help:"OpenAI-compatible embeddings API used instead of the local model"`
	EmbeddingsModel string `name:"embeddings-model" env:"MINISEARCH_EMBEDDINGS_MODEL" help:"Model requested from the embeddings API"`
	Verbose         bool   `short:"v" help:"Log debug output to stderr"`

	Crawl  CrawlCmd  `cmd:"" help:"Crawl a site and build the search index"`
	Search SearchCmd `cmd:"" help:"Search the index"`
	Runs   RunsCmd   `cmd:"" help:"List crawl runs"`
}

// CrawlCmd is the "crawl" subcommand.
type CrawlCmd struct {
	URL         string  `arg:"" help:"Seed URL"`
	Budget      int     `short:"b" default:"10000" help:"Maximum number of pages to fetch"`
	Workers     int     `short:"w" default:"10" help:"Concurrent fetch limit"`
	Prefix      string  `help:"Preferred URL path prefix (default derived from the seed)"`
	Depth       int     `help:"Maximum link depth (0 for unlimited)"`
	RPS         float64 `name:"rps" default:"2" help:"Requests per second per host (0 for unlimited)"`
	Sitemap     bool    `help:"Seed the crawl from the site's sitemaps"`
	BatchSize   int     `name:"batch-size" default:"16" help:"Documents per embedding batch"`
	CommitEvery int     `name:"commit-every" default:"500" help:"Documents per index commit"`
	Append      bool    `help:"Add to the existing index instead of replacing it"`
}

// SearchCmd is the "search" subcommand.
type SearchCmd struct {
	Query          string  `arg:"" help:"Search query"`
	Limit          int     `short:"k" name:"limit" default:"10" help:"Number of results"`
	Mode           string  `default:"hybrid" enum:"hybrid,lexical,semantic" help:"Ranking signals (hybrid, lexical, semantic)"`
	LexicalWeight  float64 `name:"lexical-weight" default:"0.5" help:"Weight of the lexical score in hybrid mode"`
	SemanticWeight float64 `name:"semantic-weight" default:"0.5" help:"Weight of the semantic score in hybrid mode"`
}

// RunsCmd is the "runs" subcommand.
type RunsCmd struct {
	Limit  int    `short:"n" default:"20" help:"Number of runs to show"`
	Status string `help:"Only show runs with this status"`
}
