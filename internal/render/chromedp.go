// Package render wraps headless Chrome behind the Renderer capability.
package render

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	cdpfetch "github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// Config controls the chromedp renderer.
type Config struct {
	Enabled         bool
	MaxParallel     int
	NavTimeout      time.Duration
	ContentPoll     time.Duration
	DomainQPS       float64
	MaxImagePayload int64
}

const (
	defaultNavTimeout  = 15 * time.Second
	defaultContentPoll = 3 * time.Second
	defaultImageCap    = 2 << 20
	pollInterval       = 250 * time.Millisecond
)

// Hosts whose requests are failed outright during rendering.
var blockedHosts = []string{
	"google-analytics.com",
	"googletagmanager.com",
	"doubleclick.net",
	"facebook.net",
	"hotjar.com",
	"segment.io",
	"scorecardresearch.com",
	"quantserve.com",
}

var desktopAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
}

var mobileAgents = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
}

// navigator.webdriver and friends give headless Chrome away; reset them before
// any site script runs.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3] });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
window.chrome = window.chrome || { runtime: {} };
`

const contentReadyExpr = `(() => {
	const node = document.querySelector('article') || document.querySelector('main');
	if (node && node.innerText && node.innerText.length > 100) return true;
	return !!(document.body && document.body.innerText && document.body.innerText.length > 500);
})()`

// Chromedp renders pages with headless Chrome in a stealth configuration. Each
// Render call allocates and tears down its own browser context; contexts are
// never pooled across URLs.
type Chromedp struct {
	cfg    Config
	logger *zap.Logger
	sem    chan struct{}

	allocator    context.Context
	allocCancel  context.CancelFunc
	allocErr     error
	allocOnce    sync.Once
	chromeOnPath bool

	domainLimiters sync.Map
	rng            *rand.Rand
	rngMu          sync.Mutex
}

// NewChromedp builds a renderer. The Chrome binary probe runs immediately so
// IsAvailable answers without side effects.
func NewChromedp(cfg Config, logger *zap.Logger) *Chromedp {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = defaultNavTimeout
	}
	if cfg.ContentPoll <= 0 {
		cfg.ContentPoll = defaultContentPoll
	}
	if cfg.MaxImagePayload <= 0 {
		cfg.MaxImagePayload = defaultImageCap
	}
	return &Chromedp{
		cfg:          cfg,
		logger:       logger,
		sem:          make(chan struct{}, cfg.MaxParallel),
		chromeOnPath: chromeInstalled(),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// IsAvailable reports whether rendering can be attempted at all.
func (r *Chromedp) IsAvailable() bool {
	return r != nil && r.cfg.Enabled && r.chromeOnPath
}

// Close tears down the shared exec allocator.
func (r *Chromedp) Close() {
	if r == nil || r.allocCancel == nil {
		return
	}
	r.allocCancel()
}

// Render navigates the URL in a fresh browser context, waits for the page to
// look content-complete, and extracts the main content. Unavailability is a
// typed result, never an error.
func (r *Chromedp) Render(ctx context.Context, rawURL string) discovery.RenderResult {
	if r == nil || !r.cfg.Enabled {
		return discovery.RenderResult{Error: discovery.RenderDisabled}
	}
	if !r.chromeOnPath {
		return discovery.RenderResult{Error: discovery.RenderNotInstalled}
	}
	if err := r.initAllocator(); err != nil {
		r.logger.Warn("chromedp allocator init failed", zap.Error(err))
		return discovery.RenderResult{Error: discovery.RenderNotAvailable}
	}

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		return discovery.RenderResult{Error: "render slot wait canceled"}
	}

	if err := r.waitDomainBudget(ctx, rawURL); err != nil {
		return discovery.RenderResult{Error: fmt.Sprintf("render rate limit: %v", err)}
	}

	// One isolated context per call; always closed before returning.
	tabCtx, cancelTab := chromedp.NewContext(r.allocator)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.cfg.NavTimeout+r.cfg.ContentPoll)
	defer cancelTask()

	stop := forwardCancel(ctx, cancelTask)
	defer stop()

	r.interceptRequests(tabCtx)

	html, title, err := r.runRender(taskCtx, rawURL)
	if err != nil {
		return discovery.RenderResult{Error: fmt.Sprintf("chromedp run: %v", err)}
	}

	content := ExtractMainContent(html)
	return discovery.RenderResult{
		HTML:    html,
		Text:    content,
		Title:   title,
		Success: true,
	}
}

func (r *Chromedp) initAllocator() error {
	r.allocOnce.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", "new"),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("hide-scrollbars", true),
			chromedp.Flag("enable-automation", false),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
		)
		allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
		r.allocator = allocCtx
		r.allocCancel = cancel
	})
	return r.allocErr
}

func (r *Chromedp) runRender(ctx context.Context, rawURL string) (string, string, error) {
	ua, width, height, mobile := r.stealthIdentity()

	var html, title string
	actions := []chromedp.Action{
		network.Enable(),
		cdpfetch.Enable().WithPatterns(fetchPatterns()),
		emulation.SetUserAgentOverride(ua),
		emulation.SetDeviceMetricsOverride(width, height, 1.0, mobile),
		blockAnalyticsAction(),
		stealthAction(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		r.contentReadyAction(),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", err
	}
	return html, title, nil
}

// contentReadyAction polls the render-complete heuristic. A polling timeout is
// not fatal; extraction proceeds with whatever rendered.
func (r *Chromedp) contentReadyAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var ready bool
		err := chromedp.Poll(contentReadyExpr, &ready,
			chromedp.WithPollingInterval(pollInterval),
			chromedp.WithPollingTimeout(r.cfg.ContentPoll),
		).Do(ctx)
		if err != nil && ctx.Err() != nil {
			return err
		}
		return nil
	})
}

func stealthAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	})
}

func blockAnalyticsAction() chromedp.Action {
	patterns := make([]string, 0, len(blockedHosts))
	for _, host := range blockedHosts {
		patterns = append(patterns, "*"+host+"*")
	}
	return network.SetBlockedURLs(patterns)
}

// fetchPatterns pauses fonts and media before they are requested, and
// images once response headers are in so Content-Length is visible.
func fetchPatterns() []*cdpfetch.RequestPattern {
	return []*cdpfetch.RequestPattern{
		{ResourceType: network.ResourceTypeFont, RequestStage: cdpfetch.RequestStageRequest},
		{ResourceType: network.ResourceTypeMedia, RequestStage: cdpfetch.RequestStageRequest},
		{ResourceType: network.ResourceTypeImage, RequestStage: cdpfetch.RequestStageResponse},
	}
}

// interceptRequests fails font/media requests and oversized images at the
// response stage; everything else continues untouched.
func (r *Chromedp) interceptRequests(tabCtx context.Context) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		paused, ok := ev.(*cdpfetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			execCtx := chromedp.FromContext(tabCtx)
			callCtx := cdp.WithExecutor(tabCtx, execCtx.Target)
			switch {
			case blockPaused(paused, r.cfg.MaxImagePayload):
				_ = cdpfetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(callCtx)
			case responseStagePaused(paused):
				_ = cdpfetch.ContinueResponse(paused.RequestID).Do(callCtx)
			default:
				_ = cdpfetch.ContinueRequest(paused.RequestID).Do(callCtx)
			}
		}()
	})
}

// blockPaused reports whether a paused request should be failed outright:
// fonts and media always, images once Content-Length exceeds the payload cap.
func blockPaused(paused *cdpfetch.EventRequestPaused, imageLimit int64) bool {
	switch paused.ResourceType {
	case network.ResourceTypeFont, network.ResourceTypeMedia:
		return true
	case network.ResourceTypeImage:
		return responseTooLarge(paused, imageLimit)
	}
	return false
}

// responseStagePaused reports whether the pause happened after response
// headers arrived. Continuing those with ContinueRequest is a protocol error.
func responseStagePaused(paused *cdpfetch.EventRequestPaused) bool {
	return paused.ResponseStatusCode != 0 || paused.ResponseHeaders != nil
}

func responseTooLarge(paused *cdpfetch.EventRequestPaused, limit int64) bool {
	for _, h := range paused.ResponseHeaders {
		if strings.EqualFold(h.Name, "Content-Length") {
			var n int64
			if _, err := fmt.Sscanf(h.Value, "%d", &n); err == nil && n > limit {
				return true
			}
		}
	}
	return false
}

func (r *Chromedp) stealthIdentity() (string, int64, int64, bool) {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	if r.rng.Intn(4) == 0 {
		ua := mobileAgents[r.rng.Intn(len(mobileAgents))]
		return ua, 390 + int64(r.rng.Intn(40)), 780 + int64(r.rng.Intn(120)), true
	}
	ua := desktopAgents[r.rng.Intn(len(desktopAgents))]
	return ua, 1280 + int64(r.rng.Intn(640)), 720 + int64(r.rng.Intn(360)), false
}

func (r *Chromedp) waitDomainBudget(ctx context.Context, rawURL string) error {
	if r.cfg.DomainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := r.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.cfg.DomainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func chromeInstalled() bool {
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "chrome", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}
