package retrieval

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/logging"
)

const (
	fieldContent = "content"
	fieldSource  = "source"
	fieldChunk   = "chunk"

	defaultCollection = "documents"
	defaultCacheSize  = 256
	maxSourceChunks   = 100000
)

// ErrStoreClosed is returned by operations on a closed Store.
var ErrStoreClosed = errors.New("retrieval: store closed")

// Options configures a Store.
type Options struct {
	// Path is the directory holding collection indexes. Empty keeps the
	// index in memory.
	Path       string
	Collection string
	ChunkSize  int
	// CacheSize bounds the query-result cache. Zero or negative uses the default.
	CacheSize int
	Logger    logging.Logger
}

// Store is a bleve-backed document index.
type Store struct {
	opts  Options
	index bleve.Index
	cache *lru.Cache[string, []string]

	mu     sync.RWMutex
	closed bool
}

type chunkDocument struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Chunk   int    `json:"chunk"`
}

// Open opens or creates the collection index.
func Open(optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		Collection: defaultCollection,
		ChunkSize:  DefaultChunkSize,
		CacheSize:  defaultCacheSize,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	index, err := openIndex(opts)
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[string, []string](opts.CacheSize)
	if err != nil {
		_ = index.Close()
		return nil, err
	}
	return &Store{opts: opts, index: index, cache: cache}, nil
}

func openIndex(opts Options) (bleve.Index, error) {
	if opts.Path == "" {
		return bleve.NewMemOnly(buildMapping())
	}
	if err := os.MkdirAll(opts.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	path := filepath.Join(opts.Path, opts.Collection+".bleve")
	index, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		index, err = bleve.New(path, buildMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return index, nil
}

func buildMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	content := bleve.NewTextFieldMapping()
	content.Store = true
	doc.AddFieldMappingsAt(fieldContent, content)

	source := bleve.NewKeywordFieldMapping()
	source.Store = true
	doc.AddFieldMappingsAt(fieldSource, source)

	chunk := bleve.NewNumericFieldMapping()
	doc.AddFieldMappingsAt(fieldChunk, chunk)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Query implements core.Retriever. Passages are ordered by relevance.
func (s *Store) Query(ctx context.Context, text string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if limit <= 0 || text == "" {
		return []string{}, nil
	}

	key := strconv.Itoa(limit) + "\x00" + text
	if cached, ok := s.cache.Get(key); ok {
		return append([]string(nil), cached...), nil
	}

	start := time.Now()
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(text))
	req.Size = limit
	req.Fields = []string{fieldContent}

	res, err := s.index.SearchInContext(ctx, req)
	logging.LogExternalCall(s.opts.Logger, "retrieval", time.Since(start), err == nil, err)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	passages := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if content, ok := hit.Fields[fieldContent].(string); ok && content != "" {
			passages = append(passages, content)
		}
	}
	s.cache.Add(key, passages)
	return append([]string(nil), passages...), nil
}

// Ingest chunks text and indexes it under source. Chunks left over from a
// previous, longer version of the same source are removed. It returns the
// number of chunks indexed.
func (s *Store) Ingest(ctx context.Context, source, text string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	chunks := Chunk(text, s.opts.ChunkSize)
	keep := make(map[string]struct{}, len(chunks))

	batch := s.index.NewBatch()
	for i, c := range chunks {
		id := ChunkID(source, i)
		keep[id] = struct{}{}
		if err := batch.Index(id, chunkDocument{Content: c, Source: source, Chunk: i}); err != nil {
			return 0, fmt.Errorf("index chunk %d of %s: %w", i, source, err)
		}
	}

	stale, err := s.sourceIDs(ctx, source)
	if err != nil {
		return 0, err
	}
	for _, id := range stale {
		if _, ok := keep[id]; !ok {
			batch.Delete(id)
		}
	}

	if err := s.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("ingest %s: %w", source, err)
	}
	s.cache.Purge()

	s.opts.Logger.Info("Document ingested", "source", source, "chunks", len(chunks))
	return len(chunks), nil
}

func (s *Store) sourceIDs(ctx context.Context, source string) ([]string, error) {
	q := bleve.NewTermQuery(source)
	q.SetField(fieldSource)
	req := bleve.NewSearchRequest(q)
	req.Size = maxSourceChunks

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lookup chunks of %s: %w", source, err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Count returns the number of indexed chunks.
func (s *Store) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	return s.index.DocCount()
}

// Close closes the index. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cache.Purge()
	return s.index.Close()
}

var _ core.Retriever = (*Store)(nil)
