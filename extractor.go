package minisearch

// ExtractResult holds the text recovered from a page.
type ExtractResult struct {
	// Title is the content of the page's <title> element.
	Title string

	// Text is the visible text in reading order. Block-level elements
	// are separated by line breaks and whitespace is collapsed.
	Text string
}

// Extractor converts raw markup into plain text.
type Extractor interface {
	// Extract strips markup, script and style contents and hidden elements.
	// Malformed markup is recovered on a best-effort basis rather than
	// rejected; only empty input is an error.
	Extract(raw []byte) (*ExtractResult, error)
}
