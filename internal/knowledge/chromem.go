package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("triaged.knowledge.chromem")

// ChromemConfig holds configuration for the chromem-go embedded vector database.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.local/share/triaged/kb"
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Collection is the collection name holding resolution documents.
	// Default: "incident_resolutions"
	Collection string

	// VectorSize is the expected embedding dimension. Must match the
	// embedder's output dimension. Default: 384 (bge-small-en-v1.5).
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.local/share/triaged/kb"
	}
	if c.Collection == "" {
		c.Collection = "incident_resolutions"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies: pure Go, no external service, automatic persistence to
// disk. Suits a single-process triage daemon with a small corpus.
//
// Identifier assignment uses an atomic counter seeded from the persisted
// corpus size at open, so concurrent Add calls never read the same count
// and derive colliding ids.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   Embedder
	config     ChromemConfig
	logger     *zap.Logger

	// nextID is the last assigned sequence number.
	nextID atomic.Uint64
}

// NewChromemStore opens (or creates) the persistent knowledge base.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	path, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	s := &ChromemStore{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	collection, err := db.GetOrCreateCollection(config.Collection, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", config.Collection, err)
	}
	s.collection = collection

	// Seed the id counter from the persisted corpus size.
	s.nextID.Store(uint64(collection.Count()))

	logger.Info("knowledge store opened",
		zap.String("path", path),
		zap.String("collection", config.Collection),
		zap.Int("entries", collection.Count()),
		zap.Int("vector_size", config.VectorSize),
	)

	return s, nil
}

// expandPath expands ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc adapts the Embedder interface to chromem.EmbeddingFunc.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// Add appends an entry to the corpus and returns its identifier.
func (s *ChromemStore) Add(ctx context.Context, entry Entry) (string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Add")
	defer span.End()

	if err := entry.Validate(); err != nil {
		span.RecordError(err)
		return "", err
	}

	content := entry.Document()

	embedding, err := s.embedder.EmbedDocuments(ctx, []string{content})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	id := entryID(s.nextID.Add(1))
	span.SetAttributes(attribute.String("entry_id", id))

	doc := chromem.Document{
		ID:        id,
		Content:   content,
		Metadata:  entry.DocumentMetadata(),
		Embedding: embedding[0],
	}
	if err := s.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("adding document: %w", err)
	}

	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("knowledge entry added",
		zap.String("id", id),
		zap.String("category", entry.Category),
		zap.Float64("confidence", entry.Confidence),
	)

	return id, nil
}

// Query performs similarity search over the corpus.
func (s *ChromemStore) Query(ctx context.Context, text string, k int) ([]Result, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()

	span.SetAttributes(attribute.Int("k", k))

	if text == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	// chromem requires nResults <= document count.
	count := s.collection.Count()
	if count == 0 {
		return []Result{}, nil
	}
	if k > count {
		k = count
	}

	hits, err := s.collection.Query(ctx, text, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			ID:       h.ID,
			Content:  h.Content,
			Score:    h.Similarity,
			Metadata: h.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("knowledge store queried",
		zap.Int("k", k),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Count returns the current corpus size.
func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

// Close closes the store.
// chromem-go persists on write, so there is nothing to flush.
func (s *ChromemStore) Close() error {
	s.logger.Info("knowledge store closed")
	return nil
}

// Ensure ChromemStore implements Store.
var _ Store = (*ChromemStore)(nil)
