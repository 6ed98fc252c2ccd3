package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/licium/licium/internal/config"
	"github.com/licium/licium/internal/log"
)

// Defaults for the hosted OpenAI-compatible provider.
const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "text-embedding-3-small"
)

// OpenAI is the hosted-API-compatible provider. It speaks the OpenAI
// embeddings wire format against a configurable base endpoint, which also
// covers self-hosted OpenAI-compatible servers (Kind "custom").
type OpenAI struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  log.Logger
}

// NewOpenAI creates a hosted-API provider. A credential is required; its
// absence is a caller configuration error, never silently defaulted.
// Empty model and baseURL fall back to the OpenAI defaults.
func NewOpenAI(apiKey, model, baseURL string, logger log.Logger) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai provider: %w", config.ErrMissingAPIKey)
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &OpenAI{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  newHTTPClient(),
		logger:  logger,
	}, nil
}

// Model returns the configured model identifier.
func (p *OpenAI) Model() string { return p.model }

// Embed requests a single embedding vector for text.
func (p *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := postJSON(ctx, p.client, p.baseURL+"/embeddings",
		map[string]string{"Authorization": "Bearer " + p.apiKey},
		map[string]string{"input": text, "model": p.model})
	if err != nil {
		p.logger.Error("openai embedding request failed", "model", p.model, "error", err)
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		p.logger.Error("openai embedding response malformed", "model", p.model, "error", err)
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("failed to generate embedding: %w", ErrEmptyEmbedding)
	}

	return out.Data[0].Embedding, nil
}
