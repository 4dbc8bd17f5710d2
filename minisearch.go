// Package minisearch provides a self-hosted hybrid search engine.
// It crawls a bounded set of pages, extracts their plain text, indexes it
// for full-text search alongside sentence embeddings, and answers queries by
// merging lexical relevance with semantic similarity.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, goquery/, bert/).
package minisearch
