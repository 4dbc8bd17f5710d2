package minisearch

// LinkPriority represents crawl priority (higher = more important).
type LinkPriority int

// Link priority levels for crawl ordering.
//
// Links under the preferred path prefix are fetched first, but links outside
// it stay eligible. Scope is a preference, not a containment guarantee.
const (
	PriorityIgnore    LinkPriority = 0
	PriorityFallback  LinkPriority = 10
	PriorityPreferred LinkPriority = 100
	PrioritySeed      LinkPriority = 110
)

// DiscoveredLink represents a URL found on a page.
type DiscoveredLink struct {
	URL  string
	Text string
}

// LinkSelector extracts same-host links from HTML.
type LinkSelector interface {
	// ExtractLinks parses HTML and returns discovered links in document order.
	// The baseURL is used to resolve relative URLs.
	ExtractLinks(html []byte, baseURL string) ([]DiscoveredLink, error)
}
