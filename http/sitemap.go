package http

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/beevik/etree"
	"github.com/fwojciec/minisearch"
)

const (
	// DefaultMaxSitemapURLs matches the sitemap protocol's per-file limit.
	DefaultMaxSitemapURLs = 50000

	// maxSitemapSize caps a single sitemap document after decompression.
	maxSitemapSize = 50 << 20

	// maxIndexDepth bounds sitemap index nesting.
	maxIndexDepth = 3
)

// Ensure SitemapService implements minisearch.SitemapService.
var _ minisearch.SitemapService = (*SitemapService)(nil)

// SitemapService discovers crawl seeds from a site's sitemaps.
type SitemapService struct {
	client    *http.Client
	userAgent string
	maxURLs   int
}

// SitemapOption configures a SitemapService.
type SitemapOption func(*SitemapService)

// WithMaxURLs stops discovery once n URLs have been collected.
func WithMaxURLs(n int) SitemapOption {
	return func(s *SitemapService) {
		if n > 0 {
			s.maxURLs = n
		}
	}
}

// NewSitemapService creates a SitemapService. If client is nil,
// http.DefaultClient is used.
func NewSitemapService(client *http.Client, opts ...SitemapOption) *SitemapService {
	if client == nil {
		client = http.DefaultClient
	}
	s := &SitemapService{
		client:    client,
		userAgent: DefaultUserAgent,
		maxURLs:   DefaultMaxSitemapURLs,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DiscoverURLs returns the page URLs listed in the sitemaps of baseURL's
// host, in sitemap order and without duplicates. Sitemaps come from
// robots.txt, or /sitemap.xml when robots.txt names none. Gzipped sitemaps
// and nested sitemap indexes are followed. Sitemaps that are missing or
// malformed are skipped; only cancellation is an error. Path scope is left
// to the caller, which ranks rather than filters.
func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, minisearch.Errorf(minisearch.EINVALID, "invalid base URL %q", baseURL)
	}
	root := &url.URL{Scheme: base.Scheme, Host: base.Host}

	sitemaps := s.robotsSitemaps(ctx, root)
	if len(sitemaps) == 0 {
		sitemaps = []string{root.ResolveReference(&url.URL{Path: "/sitemap.xml"}).String()}
	}

	w := &walk{
		svc:     s,
		host:    base.Host,
		visited: make(map[string]bool),
		seen:    make(map[string]bool),
		urls:    []string{},
	}
	for _, sitemap := range sitemaps {
		if w.full() {
			break
		}
		w.visit(ctx, sitemap, 0)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return w.urls, nil
}

// robotsSitemaps returns the Sitemap: directives of robots.txt.
func (s *SitemapService) robotsSitemaps(ctx context.Context, root *url.URL) []string {
	var sitemaps []string
	robots := root.ResolveReference(&url.URL{Path: "/robots.txt"}).String()
	_ = s.get(ctx, robots, func(r io.Reader) error {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			name, value, ok := strings.Cut(scanner.Text(), ":")
			if !ok || !strings.EqualFold(strings.TrimSpace(name), "sitemap") {
				continue
			}
			if loc := strings.TrimSpace(value); loc != "" {
				sitemaps = append(sitemaps, loc)
			}
		}
		return scanner.Err()
	})
	return sitemaps
}

// get fetches target and hands the body to read, decompressing gzip
// content when the body starts with the gzip magic number.
func (s *SitemapService) get(ctx context.Context, target string, read func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d for %s", resp.StatusCode, target)
	}

	body := bufio.NewReader(io.LimitReader(resp.Body, maxSitemapSize))
	if magic, _ := body.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(body)
		if err != nil {
			return fmt.Errorf("decompressing %s: %w", target, err)
		}
		defer zr.Close()
		return read(io.LimitReader(zr, maxSitemapSize))
	}
	return read(body)
}

// walk holds the state of one DiscoverURLs call.
type walk struct {
	svc     *SitemapService
	host    string
	visited map[string]bool // sitemap documents already fetched
	seen    map[string]bool // page URLs already collected
	urls    []string
}

func (w *walk) full() bool {
	return len(w.urls) >= w.svc.maxURLs
}

// visit collects the URLs of one sitemap document, descending into
// sitemap indexes up to maxIndexDepth.
func (w *walk) visit(ctx context.Context, sitemap string, depth int) {
	if ctx.Err() != nil || w.visited[sitemap] || depth > maxIndexDepth {
		return
	}
	w.visited[sitemap] = true

	doc := etree.NewDocument()
	err := w.svc.get(ctx, sitemap, func(r io.Reader) error {
		_, err := doc.ReadFrom(r)
		return err
	})
	if err != nil || doc.Root() == nil {
		return
	}

	root := doc.Root()
	if root.Tag == "sitemapindex" {
		for _, child := range locs(root, "sitemap") {
			if w.full() {
				return
			}
			w.visit(ctx, child, depth+1)
		}
		return
	}

	for _, loc := range locs(root, "url") {
		if w.full() {
			return
		}
		if w.seen[loc] || !sameHost(w.host, loc) {
			continue
		}
		w.seen[loc] = true
		w.urls = append(w.urls, loc)
	}
}

// locs returns the non-empty <loc> texts of root's tag children.
func locs(root *etree.Element, tag string) []string {
	var out []string
	for _, el := range root.SelectElements(tag) {
		if loc := el.SelectElement("loc"); loc != nil {
			if s := strings.TrimSpace(loc.Text()); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// sameHost reports whether rawURL is an http(s) URL on host.
func sameHost(host, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Host, host)
}
