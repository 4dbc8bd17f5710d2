package slog

import (
	"log/slog"

	"github.com/fwojciec/minisearch"
)

// Ensure LoggingLinkSelector implements minisearch.LinkSelector.
var _ minisearch.LinkSelector = (*LoggingLinkSelector)(nil)

// LoggingLinkSelector wraps a LinkSelector with debug logging of the links
// found on each page.
type LoggingLinkSelector struct {
	next   minisearch.LinkSelector
	logger *slog.Logger
}

// NewLoggingLinkSelector creates a new LoggingLinkSelector.
func NewLoggingLinkSelector(next minisearch.LinkSelector, logger *slog.Logger) *LoggingLinkSelector {
	return &LoggingLinkSelector{next: next, logger: logger}
}

// ExtractLinks delegates to the wrapped selector and logs the link count.
func (s *LoggingLinkSelector) ExtractLinks(html []byte, baseURL string) ([]minisearch.DiscoveredLink, error) {
	links, err := s.next.ExtractLinks(html, baseURL)
	s.logger.Debug("links extracted",
		"url", baseURL,
		"count", len(links),
		"err", err,
	)
	return links, err
}
