// Package retrieval provides the persistent document store used as the
// primary context source.
//
// Documents are split into fixed-size chunks and indexed in a bleve
// full-text index, one index per collection. Each chunk has a stable id
// derived from its source path and position, so re-ingesting a source
// replaces its chunks in place. Query results are cached in an LRU that is
// purged whenever the index changes.
package retrieval
