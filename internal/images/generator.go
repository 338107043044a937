package images

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// AIGenerator calls the external image-generation service. A non-success
// response is an empty result for the fallback chain, not an error.
type AIGenerator struct {
	endpoint   string
	httpClient *http.Client
}

var _ discovery.ImageGenerator = (*AIGenerator)(nil)

// NewAIGenerator builds a generator client.
func NewAIGenerator(endpoint string, timeout time.Duration) *AIGenerator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AIGenerator{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Style       string `json:"style"`
}

type generateResponse struct {
	Success  bool   `json:"success"`
	ImageURL string `json:"imageUrl"`
}

// Generate requests an image for the content.
func (g *AIGenerator) Generate(ctx context.Context, title, description, style string) (discovery.ResolvedImage, error) {
	if g.endpoint == "" {
		return discovery.ResolvedImage{}, fmt.Errorf("image generation endpoint not configured")
	}

	body, err := json.Marshal(generateRequest{Title: title, Description: description, Style: style})
	if err != nil {
		return discovery.ResolvedImage{}, fmt.Errorf("marshal generate payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return discovery.ResolvedImage{}, fmt.Errorf("new generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return discovery.ResolvedImage{}, fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return discovery.ResolvedImage{}, fmt.Errorf("generate status %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return discovery.ResolvedImage{}, fmt.Errorf("decode generate response: %w", err)
	}
	if !parsed.Success || parsed.ImageURL == "" {
		return discovery.ResolvedImage{}, nil
	}
	return discovery.ResolvedImage{URL: parsed.ImageURL, Source: discovery.TierGenerated}, nil
}
