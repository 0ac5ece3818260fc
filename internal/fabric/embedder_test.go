package fabric

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func newEmbeddingServer(t *testing.T, handler func(w http.ResponseWriter, req embeddingsRequest, attempt int32)) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler(w, req, n)
	}))
	t.Cleanup(srv.Close)
	return srv, &attempts
}

func writeEmbeddings(t *testing.T, w http.ResponseWriter, vectors ...[]float64) {
	t.Helper()

	resp := embeddingsResponse{}
	for _, v := range vectors {
		resp.Data = append(resp.Data, embeddingsDataItem{Embedding: v})
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestOpenAIEmbedderEmbed(t *testing.T) {
	t.Parallel()

	srv, attempts := newEmbeddingServer(t, func(w http.ResponseWriter, req embeddingsRequest, _ int32) {
		require.Equal(t, "text-embedding-3-small", req.Model)
		require.Equal(t, 3, req.Dimensions)
		require.Equal(t, []string{"navy wool suiting fabric"}, req.Input)
		writeEmbeddings(t, w, []float64{0.1, 0.2, 0.3})
	})

	embedder, err := NewOpenAIEmbedder(srv.URL+"/", "test-key", "text-embedding-3-small", 3,
		WithEmbedderHTTPClient(srv.Client()))
	require.NoError(t, err)

	vector, err := embedder.Embed(context.Background(), "navy wool suiting fabric")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vector.Slice())
	require.Equal(t, int32(1), attempts.Load())
}

func TestOpenAIEmbedderRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	srv, attempts := newEmbeddingServer(t, func(w http.ResponseWriter, _ embeddingsRequest, attempt int32) {
		switch attempt {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			writeEmbeddings(t, w, []float64{1, 0})
		}
	})

	embedder, err := NewOpenAIEmbedder(srv.URL, "test-key", "text-embedding-3-small", 2,
		WithEmbedderHTTPClient(srv.Client()),
		WithEmbedderRetryBackoff(0),
		WithEmbedderRateLimit(1000, 10))
	require.NoError(t, err)

	vector, err := embedder.Embed(context.Background(), "grey flannel")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 0}, vector.Slice())
	require.Equal(t, int32(3), attempts.Load())
}

func TestOpenAIEmbedderGivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	srv, attempts := newEmbeddingServer(t, func(w http.ResponseWriter, _ embeddingsRequest, _ int32) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	embedder, err := NewOpenAIEmbedder(srv.URL, "test-key", "text-embedding-3-small", 2,
		WithEmbedderHTTPClient(srv.Client()),
		WithEmbedderRetryBackoff(0))
	require.NoError(t, err)

	_, err = embedder.Embed(context.Background(), "grey flannel")
	require.Error(t, err)
	require.Equal(t, int32(embeddingMaxRetries+1), attempts.Load())
}

func TestOpenAIEmbedderDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	srv, attempts := newEmbeddingServer(t, func(w http.ResponseWriter, _ embeddingsRequest, _ int32) {
		w.WriteHeader(http.StatusBadRequest)
	})

	embedder, err := NewOpenAIEmbedder(srv.URL, "test-key", "text-embedding-3-small", 2,
		WithEmbedderHTTPClient(srv.Client()),
		WithEmbedderRetryBackoff(0))
	require.NoError(t, err)

	_, err = embedder.Embed(context.Background(), "grey flannel")
	require.ErrorContains(t, err, "status 400")
	require.Equal(t, int32(1), attempts.Load())
}

func TestOpenAIEmbedderRejectsWrongDimensions(t *testing.T) {
	t.Parallel()

	srv, _ := newEmbeddingServer(t, func(w http.ResponseWriter, _ embeddingsRequest, _ int32) {
		writeEmbeddings(t, w, []float64{1, 0, 0, 0})
	})

	embedder, err := NewOpenAIEmbedder(srv.URL, "test-key", "text-embedding-3-small", 3,
		WithEmbedderHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = embedder.Embed(context.Background(), "grey flannel")
	require.ErrorContains(t, err, "4 dimensions")
}

func TestNewOpenAIEmbedderValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := NewOpenAIEmbedder("", "key", "model", 0)
	require.Error(t, err)
	_, err = NewOpenAIEmbedder("https://api.example.com", "", "model", 0)
	require.Error(t, err)
	_, err = NewOpenAIEmbedder("https://api.example.com", "key", " ", 0)
	require.Error(t, err)
}
