// Package summarize produces summaries, key points, and bounded quotes.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// ClientConfig configures the external summarization service client.
type ClientConfig struct {
	Endpoint    string
	APIKey      string
	Temperature float64
	Timeout     time.Duration
}

// HTTPClient implements discovery.SummarizationClient against the external
// LLM summarization service.
type HTTPClient struct {
	cfg        ClientConfig
	httpClient *http.Client
}

var _ discovery.SummarizationClient = (*HTTPClient)(nil)

// NewHTTPClient builds a client from configuration.
func NewHTTPClient(cfg ClientConfig) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Summarize posts the request and decodes the service response. Transport
// failures, non-2xx statuses, and unparseable bodies are returned as errors;
// the Summarizer turns them into a local fallback, never a hard failure.
func (c *HTTPClient) Summarize(ctx context.Context, req discovery.SummarizeRequest) (discovery.SummarizeResponse, error) {
	if c.cfg.Endpoint == "" {
		return discovery.SummarizeResponse{}, fmt.Errorf("summarize client misconfigured: empty endpoint")
	}
	if req.Temperature == 0 {
		req.Temperature = c.cfg.Temperature
	}

	body, err := json.Marshal(req)
	if err != nil {
		return discovery.SummarizeResponse{}, fmt.Errorf("marshal summarize payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return discovery.SummarizeResponse{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return discovery.SummarizeResponse{}, fmt.Errorf("summarize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return discovery.SummarizeResponse{}, fmt.Errorf("summarize error %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var out discovery.SummarizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return discovery.SummarizeResponse{}, fmt.Errorf("decode summarize response: %w", err)
	}
	return out, nil
}
