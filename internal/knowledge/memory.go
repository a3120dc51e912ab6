package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// MemoryStore is an in-memory Store backed by lexical term-overlap ranking
// instead of embeddings. It exists for tests and for running the daemon
// without an embedding model; ranking quality is best-effort only.
type MemoryStore struct {
	mu   sync.RWMutex
	docs []memoryDoc

	nextID atomic.Uint64
}

type memoryDoc struct {
	id       string
	content  string
	terms    map[string]struct{}
	metadata map[string]string
}

// NewMemoryStore creates an empty in-memory knowledge store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Add appends an entry and returns its identifier.
func (s *MemoryStore) Add(ctx context.Context, entry Entry) (string, error) {
	if err := entry.Validate(); err != nil {
		return "", err
	}

	id := entryID(s.nextID.Add(1))
	content := entry.Document()

	s.mu.Lock()
	s.docs = append(s.docs, memoryDoc{
		id:       id,
		content:  content,
		terms:    termSet(content),
		metadata: entry.DocumentMetadata(),
	})
	s.mu.Unlock()

	return id, nil
}

// Query ranks stored documents by term overlap with the query text.
func (s *MemoryStore) Query(ctx context.Context, text string, k int) ([]Result, error) {
	if text == "" {
		return nil, ErrEmptyQuery
	}

	queryTerms := termSet(text)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.docs) == 0 {
		return []Result{}, nil
	}

	results := make([]Result, 0, len(s.docs))
	for _, doc := range s.docs {
		results = append(results, Result{
			ID:       doc.id,
			Content:  doc.content,
			Score:    overlapScore(queryTerms, doc.terms),
			Metadata: doc.metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Count returns the current corpus size.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// termSet lowercases and splits text into a set of terms.
func termSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.Trim(f, ".,:;!?()[]\"'")] = struct{}{}
	}
	return set
}

// overlapScore returns the fraction of query terms present in the document,
// in [0,1].
func overlapScore(query, doc map[string]struct{}) float32 {
	if len(query) == 0 {
		return 0
	}
	matched := 0
	for t := range query {
		if _, ok := doc[t]; ok {
			matched++
		}
	}
	return float32(matched) / float32(len(query))
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
