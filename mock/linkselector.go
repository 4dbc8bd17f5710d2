package mock

import "github.com/fwojciec/minisearch"

var _ minisearch.LinkSelector = (*LinkSelector)(nil)

// LinkSelector is a mock implementation of minisearch.LinkSelector.
type LinkSelector struct {
	ExtractLinksFn func(html []byte, baseURL string) ([]minisearch.DiscoveredLink, error)
}

func (s *LinkSelector) ExtractLinks(html []byte, baseURL string) ([]minisearch.DiscoveredLink, error) {
	return s.ExtractLinksFn(html, baseURL)
}
