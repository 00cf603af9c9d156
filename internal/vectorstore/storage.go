package vectorstore

import (
	"context"
	"fmt"
	"time"

	"smartxerox/internal/config"
	"smartxerox/internal/domain"
	"smartxerox/internal/vectorstore/memory"
	"smartxerox/internal/vectorstore/qdrant"
	"smartxerox/internal/vectorstore/sqlite"
)

// Storage persists vectors and supports similarity search.
type Storage interface {
	// Init prepares the store for vectors of the given dimension. Stores
	// built with another dimension are emptied.
	Init(ctx context.Context, dimension int) error
	Count(ctx context.Context) (int, error)
	Upsert(ctx context.Context, docs []domain.Document, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error)
	Clear(ctx context.Context) error
	Close() error
}

// New builds the store selected by cfg.
func New(cfg config.VectorStoreConfig) (Storage, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.NewStorage(), nil
	case "sqlite":
		if cfg.SQLite == nil {
			return nil, fmt.Errorf("sqlite config missing")
		}
		return sqlite.Open(cfg.SQLite.Path)
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}
