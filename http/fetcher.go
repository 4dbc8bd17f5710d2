// Package http provides an HTTP-based implementation of minisearch.Fetcher
// and sitemap discovery.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/fwojciec/minisearch"
	"golang.org/x/net/html/charset"
)

// DefaultFetchTimeout is the default timeout for HTTP requests.
const DefaultFetchTimeout = 10 * time.Second

// DefaultMaxBodySize caps response bodies. Larger pages are rejected.
const DefaultMaxBodySize = 10 << 20

// DefaultUserAgent identifies the crawler to servers.
const DefaultUserAgent = "minisearch/1.0 (+https://github.com/fwojciec/minisearch)"

// Ensure Fetcher implements minisearch.Fetcher at compile time.
var _ minisearch.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves pages using plain HTTP requests. It does not execute
// JavaScript. Bodies are decoded to UTF-8 using the declared or sniffed
// character set.
type Fetcher struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for HTTP requests.
// Defaults to DefaultFetchTimeout (10s) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize sets the largest accepted response body in bytes.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:     DefaultFetchTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{
		Timeout: f.timeout,
	}

	return f
}

// Client returns the underlying HTTP client so that related services
// (sitemaps) share its timeout and connection pool.
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// Fetch retrieves the page at url. Non-2xx responses, content types other
// than HTML or plain text, and bodies over the size limit are errors.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*minisearch.RawPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, minisearch.Errorf(minisearch.EINVALID, "invalid URL %q: %v", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, minisearch.Errorf(minisearch.EINVALID, "body of %s exceeds %d bytes", url, f.maxBodySize)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	page := &minisearch.RawPage{
		URL:         url,
		FinalURL:    resp.Request.URL.String(),
		ContentType: contentType,
		StatusCode:  resp.StatusCode,
		FetchedAt:   time.Now().UTC(),
	}
	if !page.IsHTML() && !page.IsText() {
		return nil, minisearch.Errorf(minisearch.EINVALID, "unsupported content type %q for %s", minisearch.MediaType(contentType), url)
	}

	page.Content, err = decode(body, contentType)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", url, err)
	}

	return page, nil
}

// decode converts body to UTF-8. A byte-order mark or the Content-Type
// charset is authoritative; otherwise valid UTF-8 is kept as is and a
// <meta> declaration decides.
func decode(body []byte, contentType string) ([]byte, error) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || (!certain && utf8.Valid(body)) {
		return body, nil
	}
	return enc.NewDecoder().Bytes(body)
}

// Close releases idle connections.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
