package minisearch

import (
	"mime"
	"strings"
	"time"
)

// RawPage is a fetched page before text extraction.
// It is produced by the crawler and consumed once by the extractor.
type RawPage struct {
	URL         string // Normalized URL as requested
	FinalURL    string // URL after redirects, used to resolve links
	ContentType string
	StatusCode  int
	Content     []byte // Body decoded to UTF-8
	Depth       int
	FetchedAt   time.Time
}

// IsHTML reports whether the page content is markup.
func (p *RawPage) IsHTML() bool {
	mt := MediaType(p.ContentType)
	return mt == "text/html" || mt == "application/xhtml+xml"
}

// IsText reports whether the page content is plain text.
func (p *RawPage) IsText() bool {
	return MediaType(p.ContentType) == "text/plain"
}

// MediaType returns the lowercased media type of a Content-Type header value,
// without parameters.
func MediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
		return strings.ToLower(strings.TrimSpace(mt))
	}
	return mt
}
