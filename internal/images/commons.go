package images

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// Dimension floors and preferences for search results.
const (
	minImageWidth  = 400
	minImageHeight = 300
	goodWidth      = 800
	goodHeight     = 600
)

// Filename fragments that make a result more or less likely to be a usable
// hero photo.
var (
	preferredNameHints = []string{"portrait", "official", "photo", "headshot"}
	avoidedNameHints   = []string{"map", "chart", "diagram", "protest", "logo", "flag", "icon"}
)

var rasterMimes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// CommonsSearcher queries a Commons-style MediaWiki media API for images.
type CommonsSearcher struct {
	endpoint   string
	httpClient *http.Client
	cache      *Cache
}

var _ discovery.ImageSearcher = (*CommonsSearcher)(nil)

// NewCommonsSearcher builds a searcher. The cache is the injected TTL
// collaborator; it may be nil to disable caching.
func NewCommonsSearcher(endpoint string, timeout time.Duration, cache *Cache) *CommonsSearcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CommonsSearcher{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
	}
}

type commonsResponse struct {
	Query struct {
		Pages map[string]commonsPage `json:"pages"`
	} `json:"query"`
}

type commonsPage struct {
	Title     string      `json:"title"`
	ImageInfo []imageInfo `json:"imageinfo"`
}

type imageInfo struct {
	URL         string             `json:"url"`
	Width       int                `json:"width"`
	Height      int                `json:"height"`
	Mime        string             `json:"mime"`
	Extmetadata map[string]extMeta `json:"extmetadata"`
}

type extMeta struct {
	Value string `json:"value"`
}

// Search returns the single best raster image for the keyword, or an empty
// result when nothing qualifies.
func (s *CommonsSearcher) Search(ctx context.Context, keyword string) (discovery.ResolvedImage, error) {
	if s.endpoint == "" {
		return discovery.ResolvedImage{}, fmt.Errorf("image search endpoint not configured")
	}
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return discovery.ResolvedImage{}, nil
	}

	if cached, ok := s.cache.Get(keyword); ok {
		return cached, nil
	}

	query := url.Values{
		"action":       {"query"},
		"format":       {"json"},
		"generator":    {"search"},
		"gsrsearch":    {keyword},
		"gsrlimit":     {"10"},
		"gsrnamespace": {"6"},
		"prop":         {"imageinfo"},
		"iiprop":       {"url|size|mime|extmetadata"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return discovery.ResolvedImage{}, fmt.Errorf("new search request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return discovery.ResolvedImage{}, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return discovery.ResolvedImage{}, fmt.Errorf("search status %d", resp.StatusCode)
	}

	var parsed commonsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return discovery.ResolvedImage{}, fmt.Errorf("decode search response: %w", err)
	}

	best := pickBest(parsed)
	if best.URL != "" {
		s.cache.Set(keyword, best)
	}
	return best, nil
}

func pickBest(parsed commonsResponse) discovery.ResolvedImage {
	var best discovery.ResolvedImage
	bestScore := -1

	for _, page := range parsed.Query.Pages {
		for _, info := range page.ImageInfo {
			if !rasterMimes[info.Mime] {
				continue
			}
			if info.Width < minImageWidth || info.Height < minImageHeight {
				continue
			}
			score := scoreCandidate(page.Title, info.Width, info.Height)
			if score > bestScore {
				bestScore = score
				best = discovery.ResolvedImage{
					URL:     info.URL,
					Source:  discovery.TierSearch,
					License: licenseOf(info.Extmetadata),
				}
			}
		}
	}
	return best
}

func scoreCandidate(name string, width, height int) int {
	score := 0
	if width >= goodWidth && height >= goodHeight {
		score += 10
	}
	lower := strings.ToLower(name)
	for _, hint := range preferredNameHints {
		if strings.Contains(lower, hint) {
			score += 5
		}
	}
	for _, hint := range avoidedNameHints {
		if strings.Contains(lower, hint) {
			score -= 8
		}
	}
	return score
}

func licenseOf(meta map[string]extMeta) string {
	if entry, ok := meta["LicenseShortName"]; ok {
		return entry.Value
	}
	return ""
}
