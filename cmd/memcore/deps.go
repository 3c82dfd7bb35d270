package main

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/memcore/internal/blockstore"
	"github.com/fyrsmithlabs/memcore/internal/config"
	"github.com/fyrsmithlabs/memcore/internal/embedder"
	"github.com/fyrsmithlabs/memcore/internal/graphstore"
	"github.com/fyrsmithlabs/memcore/internal/memcore"
	"github.com/fyrsmithlabs/memcore/internal/obslog"
	"github.com/fyrsmithlabs/memcore/internal/reasoner"
	"github.com/fyrsmithlabs/memcore/internal/retriever"
	"github.com/fyrsmithlabs/memcore/internal/secrets"
	"github.com/fyrsmithlabs/memcore/internal/telemetry"
	"github.com/fyrsmithlabs/memcore/internal/tokencount"
	"github.com/fyrsmithlabs/memcore/internal/vectorstore"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zapcore"
)

// buildCore loads configuration and wires every concrete implementation the
// backend selectors name into a *memcore.MemoryCore, mirroring contextd's
// cmd/contextd initDependencies/initServices split but collapsed into one
// function since the CLI is a one-shot process, not a long-running daemon.
func buildCore(ctx context.Context) (*memcore.MemoryCore, *obslog.Logger, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := obslog.New(&obslog.Config{
		Level:  logLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}

	blocks, err := blockstore.New(cfg.BlockDir, cfg.ArchiveDir, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening blockstore: %w", err)
	}

	graph := graphstore.NewMemoryStore()

	vectors, err := buildVectorStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening vectorstore: %w", err)
	}

	embed, err := buildEmbedder(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("building embedder: %w", err)
	}

	reason, err := buildReasoner(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("building reasoner: %w", err)
	}

	scrub, err := secrets.New(secrets.DefaultConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("building secret scrubber: %w", err)
	}

	metrics := telemetry.New(prometheus.DefaultRegisterer)

	retrieveCfg := retriever.Config{
		DefaultTopK: cfg.Retrieval.DefaultTopK,
		RRFK:        cfg.Retrieval.RRFK,
		Sparse: retriever.SparseBoosts{
			TitleBoost: cfg.Retrieval.Sparse.TitleBoost,
			BodyBoost:  cfg.Retrieval.Sparse.BodyBoost,
			TagBoost:   cfg.Retrieval.Sparse.TagBoost,
			UserBoost:  cfg.Retrieval.Sparse.UserBoost,
		},
	}

	core := memcore.New(
		blocks, graph, vectors, embed, tokencount.NewHeuristic(4),
		retrieveCfg, reason, scrub,
		memcore.WithMetrics(metrics),
		memcore.WithLogger(logger),
	)
	return core, logger, nil
}

func buildVectorStore(ctx context.Context, cfg *config.Config, logger *obslog.Logger) (vectorstore.Store, error) {
	switch cfg.Backend.Vector {
	case "", "memory":
		return vectorstore.NewMemoryStore(), nil
	case "chromem":
		return vectorstore.NewChromemStore(vectorstore.ChromemConfig{
			Path:       cfg.Backend.Chromem.Path,
			Collection: cfg.Backend.Chromem.Collection,
			VectorSize: cfg.EmbeddingDim,
		}, logger.Zap())
	case "qdrant":
		return vectorstore.NewQdrantStore(ctx, vectorstore.QdrantConfig{
			Host:           cfg.Backend.Qdrant.Host,
			Port:           cfg.Backend.Qdrant.Port,
			CollectionName: cfg.Backend.Qdrant.CollectionName,
			VectorSize:     uint64(cfg.EmbeddingDim),
		}, logger.Zap())
	default:
		return nil, fmt.Errorf("unknown backend.vector %q", cfg.Backend.Vector)
	}
}

func buildEmbedder(cfg *config.Config) (embedder.Embedder, error) {
	switch cfg.Backend.Embedder {
	case "", "fastembed":
		return embedder.NewFastEmbedEmbedder(embedder.FastEmbedConfig{
			Model: cfg.Backend.Embedding.Model,
		})
	case "http":
		return embedder.NewHTTPEmbedder(embedder.HTTPConfig{
			BaseURL:   cfg.Backend.Embedding.BaseURL,
			Model:     cfg.Backend.Embedding.Model,
			Dimension: cfg.EmbeddingDim,
		})
	default:
		return nil, fmt.Errorf("unknown backend.embedder %q", cfg.Backend.Embedder)
	}
}

func buildReasoner(cfg *config.Config) (reasoner.Reasoner, error) {
	switch cfg.Backend.Reasoner {
	case "":
		return nil, nil
	case "langchain":
		return reasoner.NewLangchainReasoner(reasoner.Config{
			BaseURL: cfg.Backend.Reasoning.BaseURL,
			Model:   cfg.Backend.Reasoning.Model,
			APIKey:  cfg.Backend.Reasoning.APIKey.Value(),
		})
	default:
		return nil, fmt.Errorf("unknown backend.reasoner %q", cfg.Backend.Reasoner)
	}
}

func logLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}
