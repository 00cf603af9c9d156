package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"smartxerox/internal/domain"
)

// Storage is a minimal REST client to Qdrant. It uses cosine distance and
// creates the collection if missing.
type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// pointID maps a document ID onto the UUID Qdrant requires. The mapping is
// stable so re-ingesting overwrites rather than duplicates.
func pointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID)).String()
}

// Init creates the collection, or recreates it if it exists with another vector size.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	status, err := s.doJSON(ctx, http.MethodGet, s.collectionURL(), nil, &info)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	if status == http.StatusOK {
		if info.Result.Config.Params.Vectors.Size == dimension {
			return nil
		}
		if err := s.Clear(ctx); err != nil {
			return err
		}
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	_, err = s.doJSON(ctx, http.MethodPut, s.collectionURL(), body, nil)
	return err
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if _, err := s.doJSON(ctx, http.MethodPost, s.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *Storage) Upsert(ctx context.Context, docs []domain.Document, vectors [][]float64) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	points := make([]map[string]any, len(docs))
	for i, d := range docs {
		payload := map[string]any{"doc_id": d.ID, "text": d.Text}
		for k, v := range d.Metadata {
			payload["meta_"+k] = v
		}
		points[i] = map[string]any{
			"id":      pointID(d.ID),
			"vector":  vectors[i],
			"payload": payload,
		}
	}
	_, err := s.doJSON(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", map[string]any{"points": points}, nil)
	return err
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if _, err := s.doJSON(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		d := domain.Document{Metadata: map[string]string{}}
		for k, v := range r.Payload {
			str, ok := v.(string)
			if !ok {
				continue
			}
			switch {
			case k == "doc_id":
				d.ID = str
			case k == "text":
				d.Text = str
			case len(k) > 5 && k[:5] == "meta_":
				d.Metadata[k[5:]] = str
			}
		}
		results = append(results, domain.SearchResult{Document: d, Score: r.Score})
	}
	return results, nil
}

// Clear drops the collection.
func (s *Storage) Clear(ctx context.Context) error {
	status, err := s.doJSON(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	return nil
}

func (s *Storage) Close() error { return nil }

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

// doJSON sends body (if any) and decodes the response into out (if any). The
// HTTP status is returned alongside any error so callers can treat 404 specially.
func (s *Storage) doJSON(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
