// Package fetch implements the tiered retrieval pipeline for candidate URLs.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// Config controls HTTP branch behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// PageGetter executes a single HTTP GET and returns the status and body.
// Non-2xx responses are returned with a nil error so callers can classify.
type PageGetter interface {
	Get(ctx context.Context, rawURL string) (int, []byte, error)
}

// HTTPGetter implements PageGetter using a Colly collector per request.
type HTTPGetter struct {
	cfg  Config
	base *colly.Collector
}

// NewHTTPGetter builds an HTTPGetter.
func NewHTTPGetter(cfg Config) *HTTPGetter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	c.WithTransport(newHTTPTransport())
	return &HTTPGetter{cfg: cfg, base: c}
}

// Get fetches one URL, honoring the configured timeout and the caller context.
func (g *HTTPGetter) Get(ctx context.Context, rawURL string) (int, []byte, error) {
	collector := g.base.Clone()
	if g.cfg.UserAgent != "" {
		collector.UserAgent = g.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.SetRequestTimeout(g.cfg.Timeout)

	var (
		status   int
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			status = r.StatusCode
			body = append([]byte(nil), r.Body...)
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return 0, nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case visitErr := <-done:
		if fetchErr != nil {
			return status, body, fetchErr
		}
		if status == 0 && visitErr != nil {
			return 0, nil, fmt.Errorf("visit %s: %w", rawURL, visitErr)
		}
		return status, body, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       60 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}
