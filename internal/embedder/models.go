package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ModelInfo is a model returned by /api/tags.
type ModelInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// HumanSize returns the model size as "1.2 GB" or "274 MB".
func (m ModelInfo) HumanSize() string {
	const gb = 1024 * 1024 * 1024
	const mb = 1024 * 1024
	if m.Size >= gb {
		return fmt.Sprintf("%.1f GB", float64(m.Size)/float64(gb))
	}
	return fmt.Sprintf("%.0f MB", float64(m.Size)/float64(mb))
}

type tagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// Health reports whether the Ollama server answers at its base URL.
func (e *OllamaEmbedder) Health(ctx context.Context) error {
	req, err := e.newRequest(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect to ollama: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned %d", resp.StatusCode)
	}
	return nil
}

// ListModels queries the /api/tags endpoint and returns the pulled models.
func (e *OllamaEmbedder) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := e.newRequest(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama /api/tags returned %d", resp.StatusCode)
	}

	var result tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}
	return result.Models, nil
}

// HasModel reports whether the configured model is pulled. Tags without an
// explicit version match ":latest".
func (e *OllamaEmbedder) HasModel(ctx context.Context) (bool, error) {
	models, err := e.ListModels(ctx)
	if err != nil {
		return false, err
	}
	want := e.model
	if !strings.Contains(want, ":") {
		want += ":latest"
	}
	for _, m := range models {
		if m.Name == e.model || m.Name == want {
			return true, nil
		}
	}
	return false, nil
}
