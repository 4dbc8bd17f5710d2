// Package goquery implements minisearch.LinkSelector using CSS selectors
// over a parsed HTML document.
package goquery

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/minisearch"
)

// Ensure LinkSelector implements minisearch.LinkSelector at compile time.
var _ minisearch.LinkSelector = (*LinkSelector)(nil)

// linkSelector matches every element that can point at another page.
const linkSelector = "a[href], area[href]"

// LinkSelector extracts same-host links from HTML pages.
type LinkSelector struct{}

// NewLinkSelector creates a new LinkSelector.
func NewLinkSelector() *LinkSelector {
	return &LinkSelector{}
}

// ExtractLinks parses HTML and returns discovered links in document order.
// Links are deduplicated by URL and stripped of fragments. External links
// (different host than baseURL), non-HTTP schemes and links back to the page
// itself are filtered out. A <base href> element overrides baseURL.
func (s *LinkSelector) ExtractLinks(html []byte, baseURL string) ([]minisearch.DiscoveredLink, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, minisearch.Errorf(minisearch.EINVALID, "invalid base URL: %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, minisearch.Errorf(minisearch.EINVALID, "failed to parse HTML: %v", err)
	}

	resolveBase := base
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			resolveBase = base.ResolveReference(ref)
		}
	}

	seen := make(map[string]bool)
	var links []minisearch.DiscoveredLink

	doc.Find(linkSelector).Each(func(_ int, sel *goquery.Selection) {
		href, exists := sel.Attr("href")
		if !exists || strings.TrimSpace(href) == "" {
			return
		}

		// Skip non-HTTP links (javascript:, mailto:, etc.)
		if isNonHTTPLink(href) {
			return
		}

		resolved := resolveURL(resolveBase, base, href)
		if resolved == "" || seen[resolved] {
			return
		}

		// Exact host match, subdomains are other sites.
		if !isSameHost(base, resolved) {
			return
		}

		seen[resolved] = true
		links = append(links, minisearch.DiscoveredLink{
			URL:  resolved,
			Text: strings.Join(strings.Fields(sel.Text()), " "),
		})
	})

	return links, nil
}

// resolveURL resolves href against resolveBase with the fragment stripped.
// Returns empty string if the href cannot be parsed, is not http(s), or
// points back at page itself.
func resolveURL(resolveBase, page *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	resolved := resolveBase.ResolveReference(ref)
	resolved.Fragment = ""
	resolved.RawFragment = ""
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	result := resolved.String()
	self := *page
	self.Fragment = ""
	self.RawFragment = ""
	if result == self.String() {
		return ""
	}
	return result
}

// isSameHost checks if the resolved URL has the same host as the base URL.
func isSameHost(base *url.URL, resolved string) bool {
	u, err := url.Parse(resolved)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, base.Host)
}

// isNonHTTPLink checks if a href is a non-HTTP link that should be skipped.
func isNonHTTPLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	return strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:")
}
