package minisearch

import (
	"context"
	"time"
)

// DocumentID is the stable integer identifier shared by the lexical index
// and the vector store. Zero means the document has not been committed yet.
type DocumentID int64

// Document represents an indexed page.
type Document struct {
	ID          DocumentID `json:"id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Text        string     `json:"text"` // Extracted plain text
	ContentHash string     `json:"contentHash"`
	Embedding   Vector     `json:"embedding,omitempty"` // nil when embedding is unavailable
	FetchedAt   time.Time  `json:"fetchedAt"`
}

// Validate returns an error if the document contains invalid fields.
func (d *Document) Validate() error {
	if d.URL == "" {
		return Errorf(EINVALID, "document URL required")
	}
	if d.Text == "" && d.Title == "" {
		return Errorf(EINVALID, "document %s has no text", d.URL)
	}
	return nil
}

// HasEmbedding reports whether the document takes part in semantic search.
func (d *Document) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// EmbeddingInput returns the text fed to the embedding model.
// The title leads so that truncated long pages still carry their topic.
func (d *Document) EmbeddingInput() string {
	switch {
	case d.Title == "":
		return d.Text
	case d.Text == "":
		return d.Title
	default:
		return d.Title + "\n" + d.Text
	}
}

// IndexWriter is the single-writer handle of the index.
// Added documents become visible to new readers only after Commit.
type IndexWriter interface {
	// Add buffers a document for the next commit.
	Add(ctx context.Context, doc *Document) error

	// Commit atomically makes all buffered documents visible.
	// On failure nothing from the batch becomes visible.
	Commit(ctx context.Context) error

	// Abort discards all buffered documents.
	Abort() error
}

// IndexReader opens read-only snapshots of the last committed index state.
type IndexReader interface {
	// Snapshot returns a consistent view of the index as of the last commit.
	// The caller must Close the snapshot.
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Snapshot is an immutable view of a committed index generation.
// It is safe to use from one goroutine at a time; open one per query.
type Snapshot interface {
	// Generation returns the commit generation this snapshot observes.
	Generation() uint64

	// Len returns the number of documents in the snapshot.
	Len() int

	// LexicalSearch scores documents against analyzed query terms.
	// Hits are ordered by descending score, then ascending document ID.
	LexicalSearch(ctx context.Context, terms []string, limit int) ([]LexicalHit, error)

	// Dimensions returns the length of the stored embeddings, or zero when
	// no document has one.
	Dimensions() int

	// NearestVectors returns the documents whose embeddings are most similar
	// to the query vector, ordered by descending similarity, then ascending ID.
	NearestVectors(query Vector, limit int) []VectorHit

	// Documents loads documents by ID. Missing IDs are omitted from the map.
	Documents(ctx context.Context, ids []DocumentID) (map[DocumentID]*Document, error)

	// Close releases the snapshot.
	Close() error
}

// LexicalHit is a full-text match.
type LexicalHit struct {
	ID    DocumentID
	Score float64 // Higher is better
}

// VectorHit is a semantic match.
type VectorHit struct {
	ID         DocumentID
	Similarity float32 // Cosine similarity in [-1, 1]
}
