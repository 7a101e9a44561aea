package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeOllamaServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		resp := OllamaModelListResponse{Models: []OllamaModelInfo{
			{Name: "nomic-embed-text:latest", ModifiedAt: time.Now()},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req OllamaEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		var n int
		switch v := req.Input.(type) {
		case string:
			n = 1
		case []any:
			n = len(v)
		default:
			n = 1
		}

		embeddings := make([][]float64, n)
		for i := range embeddings {
			vec := make([]float64, dims)
			for j := range vec {
				vec[j] = 1.0
			}
			embeddings[i] = vec
		}
		_ = json.NewEncoder(w).Encode(OllamaEmbedResponse{Model: "nomic-embed-text", Embeddings: embeddings})
	})
	return httptest.NewServer(mux)
}

func TestOllamaEmbedder_HealthCheckAndDimensionDetection(t *testing.T) {
	srv := newFakeOllamaServer(t, 8)
	defer srv.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = srv.URL

	e, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, "nomic-embed-text:latest", e.ModelName())
	assert.Equal(t, 8, e.Dimensions())
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	srv := newFakeOllamaServer(t, 4)
	defer srv.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = srv.URL

	e, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer e.Close()

	vec, err := e.Embed(context.Background(), "some code")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestOllamaEmbedder_Embed_EmptyTextSkipsCall(t *testing.T) {
	srv := newFakeOllamaServer(t, 4)
	defer srv.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = srv.URL

	e, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer e.Close()

	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	srv := newFakeOllamaServer(t, 4)
	defer srv.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = srv.URL
	cfg.BatchSize = 2

	e, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer e.Close()

	results, err := e.EmbedBatch(context.Background(), []string{"a", "", "b"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Len(t, results[0], 4)
	assert.Len(t, results[1], 4)
	assert.Len(t, results[2], 4)
}

func TestOllamaEmbedder_FallbackModel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		resp := OllamaModelListResponse{Models: []OllamaModelInfo{
			{Name: "mxbai-embed-large:latest"},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(OllamaEmbedResponse{Embeddings: [][]float64{{1, 2}}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = srv.URL
	cfg.Model = "nomic-embed-text"

	e, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, "mxbai-embed-large:latest", e.ModelName())
}

func TestOllamaEmbedder_NoAvailableModel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(OllamaModelListResponse{Models: nil})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = srv.URL

	_, err := NewOllamaEmbedder(context.Background(), cfg)
	assert.Error(t, err)
}

func TestOllamaEmbedder_SkipHealthCheck(t *testing.T) {
	cfg := DefaultOllamaConfig()
	cfg.Host = "http://127.0.0.1:1" // unreachable
	cfg.SkipHealthCheck = true
	cfg.Dimensions = 4

	e, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, 4, e.Dimensions())
}
