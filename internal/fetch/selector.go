package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/metrics"
)

// Selector tries retrieval branches in fixed order and returns the first
// branch that yields non-empty HTML.
type Selector struct {
	getter   PageGetter
	renderer discovery.Renderer
	logger   *zap.Logger
}

// NewSelector builds a Selector. The renderer may be nil when headless
// rendering is not configured.
func NewSelector(getter PageGetter, renderer discovery.Renderer, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{getter: getter, renderer: renderer, logger: logger}
}

type branchAttempt struct {
	branch discovery.FetchBranch
	url    string
}

// Fetch runs the branch chain for one candidate URL. It always returns a
// FetchResult; total failure is reported through Success=false plus the last
// attempted branch's classification.
func (s *Selector) Fetch(ctx context.Context, rawURL string) discovery.FetchResult {
	attempts := s.plan(rawURL)

	var last discovery.FetchMetadata
	for _, attempt := range attempts {
		result, ok := s.tryBranch(ctx, attempt)
		if ok {
			return result
		}
		last = result.Metadata
		s.logger.Debug("fetch branch failed",
			zap.String("branch", string(attempt.branch)),
			zap.String("url", attempt.url),
			zap.String("class", string(result.Metadata.FetchClass)),
			zap.String("reason", result.Metadata.FailureReason),
		)
	}

	// branch_used reflects the last attempted branch so failure metadata
	// points at what actually produced the recorded class.
	return discovery.FetchResult{Success: false, Metadata: last}
}

func (s *Selector) plan(rawURL string) []branchAttempt {
	attempts := []branchAttempt{{branch: discovery.BranchDirect, url: rawURL}}
	if amp := discovery.AMPVariant(rawURL); amp != "" {
		attempts = append(attempts, branchAttempt{branch: discovery.BranchAMP, url: amp})
	}
	if mobile := discovery.MobileVariant(rawURL); mobile != "" {
		attempts = append(attempts, branchAttempt{branch: discovery.BranchMobile, url: mobile})
	}
	if s.renderer != nil && s.renderer.IsAvailable() {
		attempts = append(attempts, branchAttempt{branch: discovery.BranchRendered, url: rawURL})
	}
	return attempts
}

func (s *Selector) tryBranch(ctx context.Context, attempt branchAttempt) (discovery.FetchResult, bool) {
	start := time.Now()
	var result discovery.FetchResult
	if attempt.branch == discovery.BranchRendered {
		result = s.tryRendered(ctx, attempt.url)
	} else {
		result = s.tryHTTP(ctx, attempt)
	}
	result.Metadata.BranchUsed = attempt.branch
	metrics.ObserveFetchBranch(string(attempt.branch), string(result.Metadata.FetchClass), time.Since(start))
	return result, result.Success && result.HTML != ""
}

func (s *Selector) tryHTTP(ctx context.Context, attempt branchAttempt) discovery.FetchResult {
	status, body, err := s.getter.Get(ctx, attempt.url)
	meta := discovery.FetchMetadata{
		StatusCode: status,
		HTMLBytes:  len(body),
	}
	if err != nil {
		meta.FetchClass = classifyTransportError(err)
		meta.FailureReason = err.Error()
		return discovery.FetchResult{Metadata: meta}
	}

	meta.FetchClass = discovery.ClassifyStatus(status)
	switch meta.FetchClass {
	case discovery.FetchSuccess:
		if len(body) == 0 {
			meta.FetchClass = discovery.FetchError
			meta.FailureReason = "empty body"
			return discovery.FetchResult{Metadata: meta}
		}
		return discovery.FetchResult{
			HTML:     string(body),
			Success:  true,
			Metadata: meta,
		}
	case discovery.FetchPaywallOrBlock:
		meta.FailureReason = fmt.Sprintf("http %d", status)
		return discovery.FetchResult{Metadata: meta}
	default:
		meta.FailureReason = fmt.Sprintf("http %d", status)
		return discovery.FetchResult{Metadata: meta}
	}
}

func (s *Selector) tryRendered(ctx context.Context, rawURL string) discovery.FetchResult {
	rendered := s.renderer.Render(ctx, rawURL)
	meta := discovery.FetchMetadata{
		RenderUsed: true,
		HTMLBytes:  len(rendered.HTML),
		TextBytes:  len(rendered.Text),
	}
	if !rendered.Success {
		meta.FetchClass = discovery.FetchError
		meta.FailureReason = rendered.Error
		if rendered.Error == discovery.RenderDisabled ||
			rendered.Error == discovery.RenderNotInstalled ||
			rendered.Error == discovery.RenderNotAvailable {
			meta.FailureReason = rendered.Error
		}
		return discovery.FetchResult{Metadata: meta}
	}
	meta.FetchClass = discovery.FetchSuccess
	meta.StatusCode = 200
	return discovery.FetchResult{
		HTML:     rendered.HTML,
		Text:     rendered.Text,
		Title:    rendered.Title,
		Success:  true,
		Metadata: meta,
	}
}

func classifyTransportError(err error) discovery.FetchClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return discovery.FetchTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return discovery.FetchTimeout
	}
	return discovery.FetchError
}
