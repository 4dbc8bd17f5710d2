package slog_test

import (
	"bytes"
	"testing"

	"github.com/fwojciec/minisearch"
	"github.com/fwojciec/minisearch/mock"
	msslog "github.com/fwojciec/minisearch/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingLinkSelector_ExtractLinks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	inner := &mock.LinkSelector{
		ExtractLinksFn: func(_ []byte, _ string) ([]minisearch.DiscoveredLink, error) {
			return []minisearch.DiscoveredLink{
				{URL: "https://example.com/a"},
				{URL: "https://example.com/b"},
			}, nil
		},
	}

	links, err := msslog.NewLoggingLinkSelector(inner, debugLogger(&buf)).
		ExtractLinks([]byte("<html></html>"), "https://example.com/")

	require.NoError(t, err)
	assert.Len(t, links, 2)
	assert.Contains(t, buf.String(), "links extracted")
	assert.Contains(t, buf.String(), "url=https://example.com/")
	assert.Contains(t, buf.String(), "count=2")
}
