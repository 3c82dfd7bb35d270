package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// ChromemConfig configures the embedded chromem-go vector backend
// (grounded on contextd's internal/vectorstore/chromem.go, minus its
// multi-tenant isolation layer, which memcore has no use for).
type ChromemConfig struct {
	Path       string
	Compress   bool
	Collection string
	VectorSize int
}

func (c *ChromemConfig) applyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/memcore/vectorstore"
	}
	if c.Collection == "" {
		c.Collection = "memcore_default"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// ChromemStore implements Store with chromem-go: a pure-Go, zero-CGO
// embedded vector database persisted to gob files on disk.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	logger     *zap.Logger
}

// NewChromemStore opens (or creates) the collection at cfg.Path.
// Vectors are always supplied precomputed by the caller; the embedding
// function handed to chromem-go is never invoked.
func NewChromemStore(cfg ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	cfg.applyDefaults()
	if cfg.VectorSize <= 0 {
		return nil, fmt.Errorf("vectorstore: vector size must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	path, err := expandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("vectorstore: creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: creating chromem db: %w", err)
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, noopEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: creating collection %s: %w", cfg.Collection, err)
	}

	logger.Info("chromem vector store opened",
		zap.String("path", path),
		zap.String("collection", cfg.Collection),
		zap.Int("vector_size", cfg.VectorSize))

	return &ChromemStore{db: db, collection: collection, logger: logger}, nil
}

func noopEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("vectorstore: chromem embedding func invoked without a precomputed vector")
}

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

func (s *ChromemStore) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        e.ID,
			Metadata:  flattenMetadata(e.Metadata),
			Embedding: e.Vector,
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("vectorstore: adding documents: %w", err)
	}
	return nil
}

func (s *ChromemStore) Delete(ctx context.Context, ids []string) error {
	var firstErr error
	for _, id := range ids {
		if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
			s.logger.Warn("vectorstore: delete failed", zap.String("id", id), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *ChromemStore) Query(ctx context.Context, vector []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		k = 10
	}
	if n := s.collection.Count(); n < k {
		k = n
	}
	if k == 0 {
		return nil, nil
	}
	results, err := s.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query: %w", err)
	}
	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:               r.ID,
			Score:            r.Similarity,
			CosineSimilarity: r.Similarity,
			Metadata:         unflattenMetadata(r.Metadata),
		}
	}
	return out, nil
}

func (s *ChromemStore) Reset(ctx context.Context) error {
	name := s.collection.Name
	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("vectorstore: resetting collection: %w", err)
	}
	collection, err := s.db.GetOrCreateCollection(name, nil, noopEmbeddingFunc)
	if err != nil {
		return fmt.Errorf("vectorstore: recreating collection: %w", err)
	}
	s.collection = collection
	return nil
}

// flattenMetadata converts memcore's map[string]interface{} metadata into
// chromem-go's map[string]string representation.
func flattenMetadata(meta map[string]interface{}) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		switch t := v.(type) {
		case string:
			out[k] = t
		case bool:
			out[k] = strconv.FormatBool(t)
		case int:
			out[k] = strconv.Itoa(t)
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			out[k] = fmt.Sprintf("%v", t)
		}
	}
	return out
}

func unflattenMetadata(meta map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
