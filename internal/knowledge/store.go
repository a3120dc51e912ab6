// Package knowledge provides the append-only knowledge base of past
// incident resolutions and its similarity-search capability.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Sentinel errors for knowledge store operations.
var (
	// ErrStoreUnavailable is returned when the store is missing or not initialized.
	ErrStoreUnavailable = errors.New("knowledge store unavailable")

	// ErrEmptyQuery indicates an empty query text.
	ErrEmptyQuery = errors.New("query text cannot be empty")

	// ErrInvalidEntry indicates an entry that fails validation.
	ErrInvalidEntry = errors.New("invalid knowledge entry")

	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Embedder generates vector embeddings from text.
//
// Embeddings are dense numerical representations that capture semantic
// meaning, enabling similarity search. Implementations can use local ONNX
// models or OpenAI-compatible APIs.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	// Some models optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Entry is a resolved incident recorded into the knowledge base.
//
// Entries are immutable once stored; the corpus is append-only.
type Entry struct {
	// Summary is the free-text incident summary used for similarity indexing.
	Summary string `json:"incident_summary"`

	// Resolution is the resolution narrative.
	Resolution string `json:"resolution"`

	// Category tags the incident type (e.g. "password_reset").
	Category string `json:"category"`

	// Confidence is the score assigned at authoring time.
	Confidence float64 `json:"confidence"`

	// Metadata is an opaque passthrough mapping. Keys the store does not
	// use are preserved verbatim on the stored document.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks the entry for required fields.
func (e *Entry) Validate() error {
	if e.Summary == "" {
		return fmt.Errorf("%w: summary is required", ErrInvalidEntry)
	}
	if e.Resolution == "" {
		return fmt.Errorf("%w: resolution is required", ErrInvalidEntry)
	}
	return nil
}

// Document returns the composite text indexed for similarity search.
func (e *Entry) Document() string {
	return e.Summary + "\n\nResolution:\n" + e.Resolution
}

// DocumentMetadata returns the metadata attached to the stored document:
// category and confidence, plus any passthrough metadata.
func (e *Entry) DocumentMetadata() map[string]string {
	md := make(map[string]string, len(e.Metadata)+2)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md["category"] = e.Category
	md["confidence"] = strconv.FormatFloat(e.Confidence, 'f', -1, 64)
	return md
}

// Result is a single similarity-search hit.
type Result struct {
	// ID is the stored document identifier (kb_N).
	ID string `json:"id"`

	// Content is the stored composite document text.
	Content string `json:"content"`

	// Score is the similarity score (higher = more similar).
	Score float32 `json:"score"`

	// Metadata is the document metadata.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Store is the knowledge base contract the resolution engine depends on.
//
// Identifier assignment is serialized inside the store: concurrent Add
// calls always receive distinct ids. Callers must not derive ids from
// Count themselves.
type Store interface {
	// Query returns up to k most similar stored documents to text, ranked
	// by descending similarity. When the corpus holds fewer than k entries
	// all of them are returned; an empty corpus yields an empty result,
	// never an error.
	Query(ctx context.Context, text string, k int) ([]Result, error)

	// Add appends an entry to the corpus and returns its new identifier.
	Add(ctx context.Context, entry Entry) (string, error)

	// Count returns the current corpus size.
	Count() int

	// Close releases store resources.
	Close() error
}

// entryID formats the sequential knowledge base identifier.
func entryID(n uint64) string {
	return fmt.Sprintf("kb_%d", n)
}
