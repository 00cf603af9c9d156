package embedding

import (
	"fmt"
	"time"

	"smartxerox/internal/config"
	"smartxerox/internal/domain"
	"smartxerox/internal/embedding/ollama"
	"smartxerox/internal/embedding/tfidf"
)

// New builds the embedder selected by cfg.
func New(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "ollama":
		if cfg.Ollama == nil {
			return nil, fmt.Errorf("ollama embedder config missing")
		}
		return ollama.NewClient(ollama.Config{
			BaseURL:           cfg.Ollama.BaseURL,
			APIKeyEnv:         cfg.Ollama.APIKeyEnv,
			Model:             cfg.Ollama.Model,
			Timeout:           time.Duration(cfg.Ollama.TimeoutSecs) * time.Second,
			RequestsPerSecond: cfg.Ollama.RequestsPerSecond,
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}
