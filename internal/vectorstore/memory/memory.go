package memory

import (
	"context"
	"errors"
	"sync"

	"smartxerox/internal/domain"
	"smartxerox/internal/vectorstore/vecmath"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// Upserting an existing document ID replaces it.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	docs      []domain.Document
	byID      map[string]int
}

func NewStorage() *Storage { return &Storage{byID: make(map[string]int)} }

// Init sets the vector dimension. Changing the dimension drops stored documents.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != dimension {
		s.reset()
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *Storage) Upsert(_ context.Context, docs []domain.Document, vectors [][]float64) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	for i, d := range docs {
		if j, ok := s.byID[d.ID]; ok {
			s.docs[j] = d
			s.vectors[j] = vectors[i]
			continue
		}
		s.byID[d.ID] = len(s.docs)
		s.docs = append(s.docs, d)
		s.vectors = append(s.vectors, vectors[i])
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	scores := make([]float64, len(s.vectors))
	for i := range s.vectors {
		scores[i] = vecmath.Cosine(s.vectors[i], vector)
	}
	idxs := vecmath.TopK(scores, topK)
	results := make([]domain.SearchResult, 0, len(idxs))
	for _, j := range idxs {
		results = append(results, domain.SearchResult{Document: s.docs[j], Score: scores[j]})
	}
	return results, nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

func (s *Storage) Close() error { return nil }

func (s *Storage) reset() {
	s.vectors = nil
	s.docs = nil
	s.byID = make(map[string]int)
}
