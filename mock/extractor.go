package mock

import "github.com/fwojciec/minisearch"

var _ minisearch.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of minisearch.Extractor.
type Extractor struct {
	ExtractFn func(raw []byte) (*minisearch.ExtractResult, error)
}

func (e *Extractor) Extract(raw []byte) (*minisearch.ExtractResult, error) {
	return e.ExtractFn(raw)
}
