package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/licium/licium/internal/log"
)

// Defaults for the local Ollama daemon.
const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "nomic-embed-text"
)

// Ollama is the local-inference-server provider. It talks to an Ollama
// daemon's native embeddings endpoint; no credential is required.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
	logger  log.Logger
}

// NewOllama creates a local daemon provider. Empty baseURL and model fall
// back to the standard local defaults.
func NewOllama(baseURL, model string, logger log.Logger) (*Ollama, error) {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  newHTTPClient(),
		logger:  logger,
	}, nil
}

// Model returns the configured model identifier.
func (p *Ollama) Model() string { return p.model }

// Embed requests an embedding vector from the daemon.
func (p *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := postJSON(ctx, p.client, p.baseURL+"/api/embeddings", nil,
		map[string]string{"model": p.model, "prompt": text})
	if err != nil {
		p.logger.Error("ollama embedding request failed", "model", p.model, "error", err)
		return nil, fmt.Errorf("failed to generate embedding via ollama: %w", err)
	}

	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		p.logger.Error("ollama embedding response malformed", "model", p.model, "error", err)
		return nil, fmt.Errorf("failed to generate embedding via ollama: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("failed to generate embedding via ollama: %w", ErrEmptyEmbedding)
	}

	return out.Embedding, nil
}
