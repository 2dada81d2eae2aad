package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Defaults for Options fields left zero.
const (
	DefaultBaseURL     = "http://localhost:11434"
	DefaultModel       = "nomic-embed-text"
	DefaultDimensions  = 768
	DefaultBatchSize   = 32
	DefaultConcurrency = 2
	DefaultTimeout     = 120 * time.Second
)

// Options configures an OllamaEmbedder.
type Options struct {
	BaseURL     string
	Model       string
	Dimensions  int // expected vector length; 0 disables the check
	BatchSize   int // texts per /api/embed request
	Concurrency int // requests in flight per Embed call
	Token       string
	Timeout     time.Duration
}

// OllamaEmbedder calls the Ollama /api/embed endpoint.
type OllamaEmbedder struct {
	baseURL     string
	model       string
	token       string
	dims        int
	batchSize   int
	concurrency int
	client      *http.Client
}

// NewOllamaEmbedder creates an embedder targeting the given Ollama instance.
func NewOllamaEmbedder(opts Options) *OllamaEmbedder {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &OllamaEmbedder{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		model:       opts.Model,
		token:       opts.Token,
		dims:        opts.Dimensions,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		client:      &http.Client{Timeout: opts.Timeout},
	}
}

// Model returns the configured model name.
func (e *OllamaEmbedder) Model() string { return e.model }

// Dimensions returns the expected vector length, or 0 if unchecked.
func (e *OllamaEmbedder) Dimensions() int { return e.dims }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns one vector per text, in input order. Texts are sent in
// batches of BatchSize with up to Concurrency requests in flight; any failed
// batch fails the whole call.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.embedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if e.dims > 0 {
		for i, v := range out {
			if len(v) != e.dims {
				return nil, fmt.Errorf("embedding %d has %d dimensions, want %d", i, len(v), e.dims)
			}
		}
	}
	return out, nil
}

// EmbedSingle embeds a single text and returns the embedding vector.
func (e *OllamaEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	results, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

func (e *OllamaEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := e.newRequest(ctx, http.MethodPost, "/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama embed returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	return result.Embeddings, nil
}

func (e *OllamaEmbedder) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build ollama request: %w", err)
	}
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	return req, nil
}
