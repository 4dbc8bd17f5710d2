package main_test

import (
	"bytes"
	"testing"

	"github.com/alecthomas/kong"
	main "github.com/fwojciec/minisearch/cmd/minisearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLI_HelpShowsAllCommands(t *testing.T) {
	t.Parallel()

	cli := &main.CLI{}
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	parser, err := kong.New(cli,
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
	)
	require.NoError(t, err)

	_, _ = parser.Parse([]string{"--help"})

	helpOutput := stdout.String()
	for _, cmd := range []string{"crawl", "search", "runs"} {
		assert.Contains(t, helpOutput, cmd, "Help should mention %s command", cmd)
	}
}

func TestCLI_ParsesSearchFlags(t *testing.T) {
	t.Parallel()

	cli := &main.CLI{}
	parser, err := kong.New(cli, kong.Writers(&bytes.Buffer{}, &bytes.Buffer{}), kong.Exit(func(int) {}))
	require.NoError(t, err)

	_, err = parser.Parse([]string{"search", "install rust", "-k", "3", "--mode", "lexical", "--semantic-weight", "0.2"})
	require.NoError(t, err)

	assert.Equal(t, "install rust", cli.Search.Query)
	assert.Equal(t, 3, cli.Search.Limit)
	assert.Equal(t, "lexical", cli.Search.Mode)
	assert.InDelta(t, 0.5, cli.Search.LexicalWeight, 1e-9)
	assert.InDelta(t, 0.2, cli.Search.SemanticWeight, 1e-9)
}

func TestCLI_RejectsUnknownSearchMode(t *testing.T) {
	t.Parallel()

	cli := &main.CLI{}
	parser, err := kong.New(cli, kong.Writers(&bytes.Buffer{}, &bytes.Buffer{}), kong.Exit(func(int) {}))
	require.NoError(t, err)

	_, err = parser.Parse([]string{"search", "q", "--mode", "fuzzy"})
	assert.Error(t, err)
}

func TestCLI_CrawlDefaults(t *testing.T) {
	t.Parallel()

	cli := &main.CLI{}
	parser, err := kong.New(cli, kong.Writers(&bytes.Buffer{}, &bytes.Buffer{}), kong.Exit(func(int) {}))
	require.NoError(t, err)

	_, err = parser.Parse([]string{"crawl", "https://example.com/docs/"})
	require.NoError(t, err)

	assert.Equal(t, 10000, cli.Crawl.Budget)
	assert.Equal(t, 10, cli.Crawl.Workers)
	assert.Equal(t, 16, cli.Crawl.BatchSize)
	assert.Equal(t, 500, cli.Crawl.CommitEvery)
	assert.False(t, cli.Crawl.Append)
	assert.False(t, cli.Crawl.Sitemap)
}
