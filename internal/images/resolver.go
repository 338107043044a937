package images

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/metrics"
)

// ogImageSelectors are probed in order for an Open Graph style meta image.
var ogImageSelectors = []string{
	`meta[property="og:image"]`,
	`meta[property="og:image:url"]`,
	`meta[name="twitter:image"]`,
}

// Resolver walks the image fallback chain. Resolve never returns an empty
// URL: the placeholder tier cannot fail.
type Resolver struct {
	searcher          discovery.ImageSearcher
	generator         discovery.ImageGenerator
	logger            *zap.Logger
	style             string
	placeholderFormat string
}

// Config parameterizes a Resolver.
type Config struct {
	Style             string
	PlaceholderFormat string
}

// NewResolver builds a Resolver. Searcher and generator may be nil; their
// tiers are then skipped.
func NewResolver(searcher discovery.ImageSearcher, generator discovery.ImageGenerator, cfg Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PlaceholderFormat == "" {
		cfg.PlaceholderFormat = "https://placehold.co/800x450?text=%s"
	}
	return &Resolver{
		searcher:          searcher,
		generator:         generator,
		logger:            logger,
		style:             cfg.Style,
		placeholderFormat: cfg.PlaceholderFormat,
	}
}

// Resolve finds a hero image for the page. Each tier runs only when every
// prior tier produced nothing.
func (r *Resolver) Resolve(ctx context.Context, html, pageURL, title, summary string) discovery.ResolvedImage {
	if img := fromOpenGraph(html, pageURL); img.URL != "" {
		metrics.ObserveImageTier(string(img.Source))
		return img
	}
	if img := fromArticleBody(html, pageURL); img.URL != "" {
		metrics.ObserveImageTier(string(img.Source))
		return img
	}
	if img := r.fromSearch(ctx, title); img.URL != "" {
		metrics.ObserveImageTier(string(img.Source))
		return img
	}
	if img := r.fromGenerator(ctx, title, summary); img.URL != "" {
		metrics.ObserveImageTier(string(img.Source))
		return img
	}
	if favicon := discovery.FaviconURL(pageURL); favicon != "" {
		metrics.ObserveImageTier(string(discovery.TierFavicon))
		return discovery.ResolvedImage{URL: favicon, Source: discovery.TierFavicon}
	}
	metrics.ObserveImageTier(string(discovery.TierPlaceholder))
	return r.placeholder(title)
}

func fromOpenGraph(html, pageURL string) discovery.ResolvedImage {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return discovery.ResolvedImage{}
	}
	for _, sel := range ogImageSelectors {
		if content, ok := doc.Find(sel).First().Attr("content"); ok {
			if abs := absoluteURL(pageURL, strings.TrimSpace(content)); abs != "" {
				return discovery.ResolvedImage{URL: abs, Source: discovery.TierOpenGraph}
			}
		}
	}
	return discovery.ResolvedImage{}
}

func fromArticleBody(html, pageURL string) discovery.ResolvedImage {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return discovery.ResolvedImage{}
	}

	scope := doc.Find("article img, main img")
	if scope.Length() == 0 {
		scope = doc.Find("img")
	}

	var found string
	scope.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, ok := sel.Attr("src")
		if !ok {
			src, ok = sel.Attr("data-src")
		}
		if !ok {
			return true
		}
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") || looksLikeChrome(src) {
			return true
		}
		if abs := absoluteURL(pageURL, src); abs != "" {
			found = abs
			return false
		}
		return true
	})

	if found == "" {
		return discovery.ResolvedImage{}
	}
	return discovery.ResolvedImage{URL: found, Source: discovery.TierArticle}
}

func (r *Resolver) fromSearch(ctx context.Context, title string) discovery.ResolvedImage {
	if r.searcher == nil {
		return discovery.ResolvedImage{}
	}
	img, err := r.searcher.Search(ctx, title)
	if err != nil {
		r.logger.Debug("image search tier failed", zap.Error(err))
		return discovery.ResolvedImage{}
	}
	return img
}

func (r *Resolver) fromGenerator(ctx context.Context, title, summary string) discovery.ResolvedImage {
	if r.generator == nil {
		return discovery.ResolvedImage{}
	}
	img, err := r.generator.Generate(ctx, title, summary, r.style)
	if err != nil {
		r.logger.Debug("image generation tier failed", zap.Error(err))
		return discovery.ResolvedImage{}
	}
	return img
}

// Placeholder returns the terminal fallback image for a title. Callers that
// must record an image before the chain has run (draft rows) use this.
func (r *Resolver) Placeholder(title string) discovery.ResolvedImage {
	return r.placeholder(title)
}

func (r *Resolver) placeholder(title string) discovery.ResolvedImage {
	label := strings.TrimSpace(title)
	if label == "" {
		label = "No image"
	}
	if len(label) > 40 {
		label = label[:40]
	}
	return discovery.ResolvedImage{
		URL:    fmt.Sprintf(r.placeholderFormat, url.QueryEscape(label)),
		Source: discovery.TierPlaceholder,
	}
}

// looksLikeChrome filters obvious non-content images by filename.
func looksLikeChrome(src string) bool {
	lower := strings.ToLower(src)
	for _, hint := range []string{"sprite", "icon", "logo", "pixel", "spacer", "blank", "avatar", "1x1"} {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func absoluteURL(base, ref string) string {
	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if refURL.IsAbs() {
		return refURL.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil || baseURL.Host == "" {
		return ""
	}
	return baseURL.ResolveReference(refURL).String()
}
