package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/minisearch"
)

// Ensure LoggingSitemapService implements minisearch.SitemapService.
var _ minisearch.SitemapService = (*LoggingSitemapService)(nil)

// LoggingSitemapService logs sitemap discovery.
type LoggingSitemapService struct {
	next   minisearch.SitemapService
	logger *slog.Logger
}

// NewLoggingSitemapService creates a new LoggingSitemapService.
func NewLoggingSitemapService(next minisearch.SitemapService, logger *slog.Logger) *LoggingSitemapService {
	return &LoggingSitemapService{next: next, logger: logger}
}

// DiscoverURLs delegates to the wrapped service. Failures are logged as
// warnings since the crawl continues from the seed alone.
func (s *LoggingSitemapService) DiscoverURLs(ctx context.Context, baseURL string) (urls []string, err error) {
	defer func(begin time.Time) {
		if err != nil {
			s.logger.Warn("sitemap discovery",
				"url", baseURL,
				"duration", time.Since(begin),
				"err", err,
			)
			return
		}
		s.logger.Debug("sitemap discovery",
			"url", baseURL,
			"urls", len(urls),
			"duration", time.Since(begin),
		)
	}(time.Now())
	return s.next.DiscoverURLs(ctx, baseURL)
}
