package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config configures the Ollama generation client.
type Config struct {
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Service calls Ollama's /api/generate endpoint.
type Service struct {
	config Config
	client *http.Client
}

func NewService(cfg Config) *Service {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "gemma3:4b"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Service{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Model names the configured model.
func (s *Service) Model() string { return s.config.Model }

// Temperature returns the configured sampling temperature.
func (s *Service) Temperature() float64 { return s.config.Temperature }

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type GenerateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type GenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Generate sends prompt to the model and returns its full reply.
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := GenerateRequest{
		Model:   s.config.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: generateOptions{Temperature: s.config.Temperature},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var genResp GenerateResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(body, &genResp) == nil && genResp.Error != "" {
			return "", fmt.Errorf("ollama API returned status %d: %s", resp.StatusCode, genResp.Error)
		}
		return "", fmt.Errorf("ollama API returned status: %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if genResp.Error != "" {
		return "", fmt.Errorf("ollama: %s", genResp.Error)
	}
	return strings.TrimSpace(genResp.Response), nil
}
