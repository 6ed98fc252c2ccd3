package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/licium/licium/internal/config"
	"github.com/licium/licium/internal/log"
)

var (
	// ErrNoProvider indicates that neither an explicit configuration nor
	// environment defaults name an embedding backend.
	ErrNoProvider = errors.New("no embedding provider configured")

	// ErrEmptyEmbedding indicates a backend responded without a vector.
	ErrEmptyEmbedding = errors.New("empty embedding returned")
)

// Environment fallbacks consulted when no provider configuration is supplied.
const (
	envOpenAIKey     = "OPENAI_API_KEY"
	envOllamaBaseURL = "OLLAMA_BASE_URL"
)

const defaultHTTPTimeout = 30 * time.Second

// Provider converts text into a fixed-length embedding vector.
// Dimensionality is determined by the backend model; callers must not assume
// a particular length.
type Provider interface {
	// Embed returns the embedding vector for text. A failed call has no
	// side effects; callers treat each invocation as independently fallible.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Model identifies the model producing the vectors. Stored alongside
	// each vector so similarity queries can be scoped to same-model rows.
	Model() string
}

// New resolves a provider configuration to a concrete implementation.
//
// A nil cfg falls back to process environment: OPENAI_API_KEY selects the
// hosted provider, else OLLAMA_BASE_URL selects the local daemon, else
// ErrNoProvider. Selection happens once here, not per call.
func New(cfg *config.EmbeddingProvider, logger log.Logger) (Provider, error) {
	if cfg == nil {
		if key := os.Getenv(envOpenAIKey); key != "" {
			return NewOpenAI(key, "", "", logger)
		}
		if baseURL := os.Getenv(envOllamaBaseURL); baseURL != "" {
			return NewOllama(baseURL, "", logger)
		}
		return nil, ErrNoProvider
	}

	switch cfg.Kind {
	case config.KindOpenAI:
		return NewOpenAI(cfg.APIKey, cfg.Model, "", logger)
	case config.KindCustom:
		// Custom endpoints are OpenAI-compatible with their own base URL.
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, logger)
	case config.KindOllama:
		return NewOllama(cfg.BaseURL, cfg.Model, logger)
	case config.KindTransformers:
		return NewTEI(cfg.BaseURL, cfg.Model, logger)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidProviderKind, cfg.Kind)
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// postJSON sends body as JSON to url with the given headers and returns the
// response payload. Non-2xx statuses are returned as errors with the body
// truncated for logging.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := string(payload)
		if len(detail) > 256 {
			detail = detail[:256]
		}
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, detail)
	}

	return payload, nil
}
