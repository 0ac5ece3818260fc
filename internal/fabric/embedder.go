package fabric

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	pgvector "github.com/pgvector/pgvector-go"
	"golang.org/x/time/rate"

	"github.com/Laisky/henk-fabric/library/log"
)

// Embedder converts query text into a vector in the catalog's embedding space.
type Embedder interface {
	Embed(ctx context.Context, text string) (pgvector.Vector, error)
}

const (
	embeddingBatchSize  = 32
	embeddingMaxRetries = 3
)

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
	limiter    *rate.Limiter
	backoff    time.Duration
	logger     logSDK.Logger
}

// OpenAIEmbedderOption customizes an OpenAIEmbedder.
type OpenAIEmbedderOption func(*OpenAIEmbedder)

// WithEmbedderHTTPClient replaces the default HTTP client.
func WithEmbedderHTTPClient(client *http.Client) OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// WithEmbedderRateLimit limits outgoing requests to rps with the given burst. rps <= 0 disables limiting.
func WithEmbedderRateLimit(rps float64, burst int) OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) {
		if rps <= 0 {
			e.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithEmbedderRetryBackoff sets the base delay between retries.
func WithEmbedderRetryBackoff(d time.Duration) OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) {
		if d >= 0 {
			e.backoff = d
		}
	}
}

// WithEmbedderLogger sets the logger.
func WithEmbedderLogger(logger logSDK.Logger) OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewOpenAIEmbedder constructs an embedder for the configured model.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dimensions int, opts ...OpenAIEmbedderOption) (*OpenAIEmbedder, error) {
	e := &OpenAIEmbedder{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		model:      strings.TrimSpace(model),
		dimensions: dimensions,
		backoff:    200 * time.Millisecond,
		logger:     log.Logger.Named("fabric_embedder"),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.baseURL == "" {
		return nil, errors.New("missing embeddings base url")
	}
	if e.model == "" {
		return nil, errors.New("missing embeddings model")
	}
	if e.apiKey == "" {
		return nil, errors.New("missing api key for embeddings")
	}
	if e.httpClient == nil {
		client, err := gutils.NewHTTPClient(gutils.WithHTTPClientTimeout(30 * time.Second))
		if err != nil {
			return nil, errors.Wrap(err, "new http client")
		}
		e.httpClient = client
	}
	return e, nil
}

// Model returns the embedding model name.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// Embed returns the vector of a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(vectors) != 1 {
		return pgvector.Vector{}, errors.Errorf("embeddings endpoint returned %d vectors for 1 input", len(vectors))
	}
	return vectors[0], nil
}

// EmbedTexts batches the input strings and returns their vectors in input order.
func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, inputs []string) ([]pgvector.Vector, error) {
	if len(inputs) == 0 {
		return nil, errors.New("no inputs provided for embedding")
	}

	vectors := make([]pgvector.Vector, 0, len(inputs))
	for start := 0; start < len(inputs); start += embeddingBatchSize {
		end := min(start+embeddingBatchSize, len(inputs))
		batch := inputs[start:end]

		resp, err := e.createEmbeddingsWithRetry(ctx, batch)
		if err != nil {
			return nil, errors.Wrap(err, "create embeddings")
		}
		if len(resp.Data) != len(batch) {
			return nil, errors.Errorf("embeddings endpoint returned %d vectors for %d inputs", len(resp.Data), len(batch))
		}
		for _, data := range resp.Data {
			if e.dimensions > 0 && len(data.Embedding) != e.dimensions {
				return nil, errors.Errorf("embedding has %d dimensions, want %d", len(data.Embedding), e.dimensions)
			}
			values := make([]float32, len(data.Embedding))
			for i, value := range data.Embedding {
				values[i] = float32(value)
			}
			vectors = append(vectors, pgvector.NewVector(values))
		}
	}

	return vectors, nil
}

type embeddingsRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingsResponse struct {
	Data []embeddingsDataItem `json:"data"`
}

type embeddingsDataItem struct {
	Embedding []float64 `json:"embedding"`
}

// retryableStatusError marks responses worth another attempt.
type retryableStatusError struct {
	status int
}

func (e *retryableStatusError) Error() string {
	return "embeddings endpoint status " + http.StatusText(e.status)
}

func (e *OpenAIEmbedder) createEmbeddingsWithRetry(ctx context.Context, batch []string) (*embeddingsResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= embeddingMaxRetries; attempt++ {
		if attempt > 0 {
			wait := e.backoff << (attempt - 1)
			e.logger.Debug("retry embeddings request",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(lastErr))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, errors.WithStack(ctx.Err())
			case <-timer.C:
			}
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, errors.Wrap(err, "wait for embeddings rate limiter")
			}
		}

		resp, err := e.createEmbeddings(ctx, batch)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var statusErr *retryableStatusError
		if !errors.As(err, &statusErr) {
			return nil, err
		}
	}
	return nil, errors.Wrapf(lastErr, "embeddings failed after %d retries", embeddingMaxRetries)
}

// createEmbeddings sends one embeddings batch request and parses vectors from response.
func (e *OpenAIEmbedder) createEmbeddings(ctx context.Context, batch []string) (*embeddingsResponse, error) {
	body, err := json.Marshal(embeddingsRequest{Model: e.model, Input: batch, Dimensions: e.dimensions})
	if err != nil {
		return nil, errors.Wrap(err, "marshal embeddings request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build embeddings request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "call embeddings endpoint")
	}
	defer gutils.CloseWithLog(httpResp.Body, e.logger)

	switch {
	case httpResp.StatusCode == http.StatusTooManyRequests,
		httpResp.StatusCode >= http.StatusInternalServerError:
		return nil, &retryableStatusError{status: httpResp.StatusCode}
	case httpResp.StatusCode < http.StatusOK || httpResp.StatusCode >= http.StatusMultipleChoices:
		return nil, errors.Errorf("embeddings endpoint status %d", httpResp.StatusCode)
	}

	var decoded embeddingsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "decode embeddings response")
	}

	return &decoded, nil
}
