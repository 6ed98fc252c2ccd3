package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/licium/licium/internal/log"
)

// Defaults for the self-hosted text-embeddings-inference server.
const (
	defaultTEIBaseURL = "http://localhost:8080"

	// teiFallbackModel is the model name sent on the OpenAI-compatible
	// fallback path. TEI ignores unknown model names but the field is
	// mandatory in that wire format.
	teiFallbackModel = "sentence-transformers/all-MiniLM-L6-v2"
)

// TEI is the self-hosted-model-server provider (Hugging Face
// text-embeddings-inference or similar). TEI deployments expose inconsistent
// API surfaces across versions, so Embed tries the native /embed endpoint
// first and falls back to the OpenAI-compatible /v1/embeddings path on the
// same base endpoint.
type TEI struct {
	baseURL string
	model   string
	client  *http.Client
	logger  log.Logger
}

// NewTEI creates a self-hosted model server provider. No credential is
// required; empty baseURL falls back to the local default.
func NewTEI(baseURL, model string, logger log.Logger) (*TEI, error) {
	if baseURL == "" {
		baseURL = defaultTEIBaseURL
	}
	if model == "" {
		model = teiFallbackModel
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &TEI{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  newHTTPClient(),
		logger:  logger,
	}, nil
}

// Model returns the configured model identifier.
func (p *TEI) Model() string { return p.model }

// Embed requests an embedding via the native endpoint, falling back to the
// OpenAI-compatible path when the primary attempt fails.
func (p *TEI) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, primaryErr := p.embedNative(ctx, text)
	if primaryErr == nil {
		return vec, nil
	}
	p.logger.Warn("tei native embed failed, trying openai-compatible path", "error", primaryErr)

	vec, fallbackErr := p.embedCompat(ctx, text)
	if fallbackErr != nil {
		p.logger.Error("tei embedding failed on both paths",
			"primary_error", primaryErr, "fallback_error", fallbackErr)
		return nil, fmt.Errorf("failed to generate embedding via transformers: %w", fallbackErr)
	}
	return vec, nil
}

// embedNative posts {"inputs": text} to /embed. The response is a batch:
// an array of vectors, of which the first is ours.
func (p *TEI) embedNative(ctx context.Context, text string) ([]float32, error) {
	payload, err := postJSON(ctx, p.client, p.baseURL+"/embed", nil,
		map[string]string{"inputs": text})
	if err != nil {
		return nil, err
	}

	var batch [][]float32
	if err := json.Unmarshal(payload, &batch); err != nil {
		return nil, fmt.Errorf("decoding batch response: %w", err)
	}
	if len(batch) == 0 || len(batch[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return batch[0], nil
}

// embedCompat posts an OpenAI-shaped request to /v1/embeddings with the
// hardcoded fallback model name.
func (p *TEI) embedCompat(ctx context.Context, text string) ([]float32, error) {
	payload, err := postJSON(ctx, p.client, p.baseURL+"/v1/embeddings", nil,
		map[string]string{"input": text, "model": teiFallbackModel})
	if err != nil {
		return nil, err
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decoding compat response: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return out.Data[0].Embedding, nil
}
