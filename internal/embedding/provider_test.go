package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/licium/licium/internal/config"
	"github.com/licium/licium/internal/log"
)

func TestOpenAI_Embed(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s, want /embeddings", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.1, 0.2, 0.3}}},
		})
	}))
	defer srv.Close()

	p, err := NewOpenAI("sk-test", "text-embedding-3-small", srv.URL, log.NewNop())
	if err != nil {
		t.Fatalf("NewOpenAI() error: %v", err)
	}

	vec, err := p.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["input"] != "hello world" || gotBody["model"] != "text-embedding-3-small" {
		t.Errorf("request body = %v", gotBody)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Errorf("vector = %v", vec)
	}
}

func TestOpenAI_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAI("", "", "", log.NewNop())
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Errorf("NewOpenAI without key = %v, want ErrMissingAPIKey", err)
	}
}

func TestOpenAI_TrimsTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s, want /embeddings", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{1}}},
		})
	}))
	defer srv.Close()

	p, err := NewOpenAI("sk-test", "", srv.URL+"///", log.NewNop())
	if err != nil {
		t.Fatalf("NewOpenAI() error: %v", err)
	}
	if _, err := p.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
}

func TestOpenAI_APIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, _ := NewOpenAI("sk-test", "", srv.URL, log.NewNop())
	if _, err := p.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestOpenAI_EmptyEmbeddingIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	}))
	defer srv.Close()

	p, _ := NewOpenAI("sk-test", "", srv.URL, log.NewNop())
	_, err := p.Embed(context.Background(), "x")
	if !errors.Is(err, ErrEmptyEmbedding) {
		t.Errorf("Embed() = %v, want ErrEmptyEmbedding", err)
	}
}

func TestOllama_Embed(t *testing.T) {
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %s, want /api/embeddings", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.5, 0.6}})
	}))
	defer srv.Close()

	p, err := NewOllama(srv.URL, "nomic-embed-text", log.NewNop())
	if err != nil {
		t.Fatalf("NewOllama() error: %v", err)
	}

	vec, err := p.Embed(context.Background(), "local inference")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}

	if gotBody["model"] != "nomic-embed-text" || gotBody["prompt"] != "local inference" {
		t.Errorf("request body = %v", gotBody)
	}
	if len(vec) != 2 {
		t.Errorf("vector = %v", vec)
	}
}

func TestOllama_Defaults(t *testing.T) {
	p, err := NewOllama("", "", log.NewNop())
	if err != nil {
		t.Fatalf("NewOllama() error: %v", err)
	}
	if p.Model() != "nomic-embed-text" {
		t.Errorf("Model() = %q", p.Model())
	}
}

func TestTEI_NativeEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" {
			t.Errorf("path = %s, want /embed", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["inputs"] != "batch of one" {
			t.Errorf("inputs = %q", body["inputs"])
		}
		// Batch response: array of vectors, first one is ours.
		_ = json.NewEncoder(w).Encode([][]float32{{0.7, 0.8, 0.9}})
	}))
	defer srv.Close()

	p, err := NewTEI(srv.URL, "", log.NewNop())
	if err != nil {
		t.Fatalf("NewTEI() error: %v", err)
	}

	vec, err := p.Embed(context.Background(), "batch of one")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.7 {
		t.Errorf("vector = %v", vec)
	}
}

func TestTEI_FallsBackToCompatPath(t *testing.T) {
	var compatCalled bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/embed":
			// Older TEI versions without the native endpoint.
			http.NotFound(w, r)
		case "/v1/embeddings":
			compatCalled = true
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["model"] != teiFallbackModel {
				t.Errorf("fallback model = %q, want %q", body["model"], teiFallbackModel)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"embedding": []float32{0.42}}},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	p, _ := NewTEI(srv.URL, "", log.NewNop())
	vec, err := p.Embed(context.Background(), "fallback please")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if !compatCalled {
		t.Error("fallback path was not attempted")
	}
	if len(vec) != 1 || vec[0] != 0.42 {
		t.Errorf("vector = %v", vec)
	}
}

func TestTEI_BothPathsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, _ := NewTEI(srv.URL, "", log.NewNop())
	if _, err := p.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error when both endpoints fail")
	}
}

func TestNew_KindSelection(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.EmbeddingProvider
		want string // provider type name
	}{
		{"openai", &config.EmbeddingProvider{Kind: config.KindOpenAI, APIKey: "sk-x"}, "*embedding.OpenAI"},
		{"custom is openai-compatible", &config.EmbeddingProvider{Kind: config.KindCustom, APIKey: "sk-x", BaseURL: "http://example.test"}, "*embedding.OpenAI"},
		{"ollama", &config.EmbeddingProvider{Kind: config.KindOllama}, "*embedding.Ollama"},
		{"transformers", &config.EmbeddingProvider{Kind: config.KindTransformers}, "*embedding.TEI"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg, log.NewNop())
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			var got string
			switch p.(type) {
			case *OpenAI:
				got = "*embedding.OpenAI"
			case *Ollama:
				got = "*embedding.Ollama"
			case *TEI:
				got = "*embedding.TEI"
			}
			if got != tt.want {
				t.Errorf("New() returned %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(&config.EmbeddingProvider{Kind: "mystery"}, log.NewNop())
	if !errors.Is(err, config.ErrInvalidProviderKind) {
		t.Errorf("New() = %v, want ErrInvalidProviderKind", err)
	}
}

func TestNew_EnvFallback(t *testing.T) {
	t.Run("openai key present", func(t *testing.T) {
		t.Setenv(envOpenAIKey, "sk-from-env")
		t.Setenv(envOllamaBaseURL, "")

		p, err := New(nil, log.NewNop())
		if err != nil {
			t.Fatalf("New(nil) error: %v", err)
		}
		if _, ok := p.(*OpenAI); !ok {
			t.Errorf("New(nil) = %T, want *OpenAI", p)
		}
	})

	t.Run("ollama url present", func(t *testing.T) {
		t.Setenv(envOpenAIKey, "")
		t.Setenv(envOllamaBaseURL, "http://ollama.test:11434")

		p, err := New(nil, log.NewNop())
		if err != nil {
			t.Fatalf("New(nil) error: %v", err)
		}
		if _, ok := p.(*Ollama); !ok {
			t.Errorf("New(nil) = %T, want *Ollama", p)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		t.Setenv(envOpenAIKey, "")
		t.Setenv(envOllamaBaseURL, "")

		_, err := New(nil, log.NewNop())
		if !errors.Is(err, ErrNoProvider) {
			t.Errorf("New(nil) = %v, want ErrNoProvider", err)
		}
	})
}
