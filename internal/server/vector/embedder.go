// Package vector adapts rows with ids into a namespaced nearest-neighbor
// search service: an embedding provider turns a deterministic textual
// projection of each row into a vector, and a pgvector-backed index stores
// and queries those vectors scoped by owner.
package vector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sethvargo/go-retry"
)

// Embedder produces one embedding per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder calls the OpenAI embeddings API. Transient provider errors
// (HTTP 429/503) are retried with exponential backoff: up to 5 retries with
// the delay doubling from 1s. Any other error propagates immediately.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel

	// newBackoff is swappable in tests to avoid real sleeps.
	newBackoff func() retry.Backoff
}

// NewOpenAIEmbedder returns an embedder using text-embedding-3-small.
func NewOpenAIEmbedder(apiKey string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client:     openai.NewClient(apiKey),
		model:      openai.SmallEmbedding3,
		newBackoff: defaultBackoff,
	}
}

// NewOpenAIEmbedderWithClient is used by tests to point the embedder at a
// stub server and replace the backoff policy.
func NewOpenAIEmbedderWithClient(client *openai.Client, newBackoff func() retry.Backoff) *OpenAIEmbedder {
	if newBackoff == nil {
		newBackoff = defaultBackoff
	}
	return &OpenAIEmbedder{client: client, model: openai.SmallEmbedding3, newBackoff: newBackoff}
}

func defaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(5, retry.NewExponential(1000*time.Millisecond))
}

// Embed returns one vector per text, preserving input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out [][]float32
	err := retry.Do(ctx, e.newBackoff(), func(ctx context.Context) error {
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: e.model,
		})
		if err != nil {
			if isTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		out = make([][]float32, len(resp.Data))
		for i, d := range resp.Data {
			out[i] = d.Embedding
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("embed: provider returned %d vectors for %d texts", len(out), len(texts))
	}
	return out, nil
}

// isTransient reports whether the provider signalled a rate limit (429) or
// temporary unavailability (503).
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode == http.StatusServiceUnavailable
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode == http.StatusServiceUnavailable
	}
	return false
}
