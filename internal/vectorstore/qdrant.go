package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// QdrantConfig configures the external Qdrant gRPC backend (grounded on
// contextd's internal/vectorstore/qdrant.go, stripped of its tenant
// isolation and circuit-breaker machinery, which memcore's single-tenant
// core has no use for).
type QdrantConfig struct {
	Host           string
	Port           int
	CollectionName string
	VectorSize     uint64
	UseTLS         bool
	MaxRetries     int
	RetryBackoff   time.Duration
}

func (c *QdrantConfig) applyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
}

func (c QdrantConfig) validate() error {
	if c.Host == "" {
		return fmt.Errorf("vectorstore: qdrant host required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("vectorstore: invalid qdrant port: %d", c.Port)
	}
	if c.CollectionName == "" {
		return fmt.Errorf("vectorstore: qdrant collection name required")
	}
	if !collectionNamePattern.MatchString(c.CollectionName) {
		return fmt.Errorf("vectorstore: collection name must match %s", collectionNamePattern.String())
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("vectorstore: vector size required")
	}
	return nil
}

// QdrantStore implements Store against an external Qdrant instance over
// gRPC.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger
}

// NewQdrantStore dials Qdrant and ensures the configured collection
// exists, creating it with cosine distance if absent.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: connecting to qdrant: %w", err)
	}

	s := &QdrantStore{client: client, config: cfg, logger: logger}

	exists, err := s.collectionExists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("vectorstore: checking collection: %w", err)
	}
	if !exists {
		if err := s.createCollection(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("vectorstore: creating collection: %w", err)
		}
	}

	return s, nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func (s *QdrantStore) collectionExists(ctx context.Context) (bool, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == s.config.CollectionName {
			return true, nil
		}
	}
	return false, nil
}

func (s *QdrantStore) createCollection(ctx context.Context) error {
	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.config.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

// retry runs op up to config.MaxRetries times with exponential backoff,
// retrying only transient gRPC errors.
func (s *QdrantStore) retry(ctx context.Context, name string, op func() error) error {
	var lastErr error
	backoff := s.config.RetryBackoff
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isTransientError(lastErr) {
			return lastErr
		}
		s.logger.Warn("vectorstore: qdrant operation retrying",
			zap.String("operation", name), zap.Int("attempt", attempt), zap.Error(lastErr))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}

func isTransientError(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func (s *QdrantStore) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		payload := map[string]*qdrant.Value{
			"block_id": {Kind: &qdrant.Value_StringValue{StringValue: e.ID}},
		}
		for k, v := range e.Metadata {
			payload[k] = toQdrantValue(v)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(blockIDToUUID(e.ID)),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: payload,
		}
	}
	return s.retry(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.CollectionName,
			Points:         points,
		})
		return err
	})
}

func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(blockIDToUUID(id))
	}
	return s.retry(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.config.CollectionName,
			Points:         qdrant.NewPointsSelector(pointIDs...),
		})
		return err
	})
}

func (s *QdrantStore) Query(ctx context.Context, vector []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		k = 10
	}
	var points []*qdrant.ScoredPoint
	err := s.retry(ctx, "query", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.config.CollectionName,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query: %w", err)
	}

	out := make([]SearchResult, len(points))
	for i, p := range points {
		r := SearchResult{Score: p.Score, CosineSimilarity: p.Score, Metadata: map[string]interface{}{}}
		for k, v := range p.Payload {
			if k == "block_id" {
				if sv, ok := v.Kind.(*qdrant.Value_StringValue); ok {
					r.ID = sv.StringValue
				}
				continue
			}
			r.Metadata[k] = fromQdrantValue(v)
		}
		out[i] = r
	}
	return out, nil
}

func (s *QdrantStore) Reset(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.config.CollectionName); err != nil {
		return fmt.Errorf("vectorstore: resetting collection: %w", err)
	}
	return s.createCollection(ctx)
}

// blockIDToUUID derives a deterministic UUID from a block id, since
// Qdrant point ids must be UUIDs or unsigned integers but memcore block
// ids are human-readable strings (KB-YYYYMMDD-NNN).
func blockIDToUUID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func toQdrantValue(v interface{}) *qdrant.Value {
	switch t := v.(type) {
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: t}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: t}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(t)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: t}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: t}}
	default:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprintf("%v", t)}}
	}
}

func fromQdrantValue(v *qdrant.Value) interface{} {
	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	default:
		return nil
	}
}
