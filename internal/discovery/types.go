// Package discovery defines core types shared across the enrichment pipeline.
package discovery

import (
	"strings"
	"time"
)

// FetchBranch identifies one retrieval strategy in the fetch pipeline.
type FetchBranch string

// Branches are attempted in declaration order; the first success wins.
const (
	BranchDirect   FetchBranch = "direct"
	BranchAMP      FetchBranch = "amp"
	BranchMobile   FetchBranch = "mobile"
	BranchRendered FetchBranch = "rendered"
)

// FetchClass is the coarse classification of a fetch outcome.
type FetchClass string

// Supported fetch classes.
const (
	FetchSuccess        FetchClass = "SUCCESS"
	FetchTimeout        FetchClass = "TIMEOUT"
	FetchPaywallOrBlock FetchClass = "PAYWALL_OR_BLOCK"
	FetchError          FetchClass = "ERROR"
)

// FetchMetadata records how a FetchResult was obtained.
type FetchMetadata struct {
	RenderUsed    bool        `json:"render_used"`
	BranchUsed    FetchBranch `json:"branch_used"`
	StatusCode    int         `json:"status_code"`
	HTMLBytes     int         `json:"html_bytes"`
	TextBytes     int         `json:"text_bytes"`
	FailureReason string      `json:"failure_reason,omitempty"`
	FetchClass    FetchClass  `json:"fetch_class"`
}

// FetchResult is the ephemeral output of the fetch pipeline. It is consumed
// immediately by the extractor and never persisted.
type FetchResult struct {
	HTML     string
	Text     string
	Title    string
	Success  bool
	Metadata FetchMetadata
}

// RenderResult is what the headless render adapter returns for one URL.
type RenderResult struct {
	HTML    string
	Text    string
	Title   string
	Success bool
	Error   string
}

// ExtractedContent is derived purely from HTML and has no identity of its own.
type ExtractedContent struct {
	Title        string
	Author       string
	PublishDate  *time.Time
	MainText     string
	Paragraphs   []string
	CanonicalURL string
}

// WordCount counts whitespace-separated tokens in the main text.
func (c ExtractedContent) WordCount() int {
	return len(strings.Fields(c.MainText))
}

// ContentStatus tracks a ContentRecord through the discovery flow.
type ContentStatus string

// Content record lifecycle states.
const (
	ContentPending  ContentStatus = "pending"
	ContentEnriched ContentStatus = "enriched"
	ContentRejected ContentStatus = "rejected"
	ContentFailed   ContentStatus = "failed"
)

// ContentRecord represents a discovered piece of content for a topic.
type ContentRecord struct {
	ID             string        `json:"id"`
	Topic          string        `json:"topic"`
	SourceURL      string        `json:"source_url"`
	CanonicalURL   string        `json:"canonical_url"`
	Title          string        `json:"title"`
	Summary        string        `json:"summary"`
	TextContent    string        `json:"text_content"`
	RelevanceScore float64       `json:"relevance_score"`
	QualityScore   int           `json:"quality_score"`
	Status         ContentStatus `json:"status"`
	Hero           *HeroMirror   `json:"hero,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// HeroMirror is the denormalized image summary kept on the content record for
// read-path compatibility.
type HeroMirror struct {
	URL       string    `json:"url"`
	Source    ImageTier `json:"source"`
	License   string    `json:"license,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HeroStatus is the enrichment lifecycle state of a Hero row.
type HeroStatus string

// Hero lifecycle states. A row is created DRAFT when enrichment is scheduled
// and ends READY or ERROR.
const (
	HeroDraft HeroStatus = "DRAFT"
	HeroReady HeroStatus = "READY"
	HeroError HeroStatus = "ERROR"
)

// ImageTier names the fallback tier that produced a hero image.
type ImageTier string

// Image resolution tiers, in fallback order.
const (
	TierOpenGraph   ImageTier = "og"
	TierArticle     ImageTier = "article"
	TierSearch      ImageTier = "wikipedia"
	TierGenerated   ImageTier = "ai"
	TierFavicon     ImageTier = "favicon"
	TierPlaceholder ImageTier = "placeholder"
)

// Hero is the persisted enrichment record, 1:1 with a ContentRecord.
// ImageURL is never empty once a row exists, regardless of status.
type Hero struct {
	ID             string     `json:"id"`
	ContentID      string     `json:"content_id"`
	Title          string     `json:"title"`
	Excerpt        string     `json:"excerpt"`
	QuoteHTML      string     `json:"quote_html"`
	QuoteCharCount int        `json:"quote_char_count"`
	ImageURL       string     `json:"image_url"`
	ImageSource    ImageTier  `json:"image_source"`
	SourceURL      string     `json:"source_url"`
	Status         HeroStatus `json:"status"`
	ErrorCode      string     `json:"error_code,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	TraceID        string     `json:"trace_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// UpsertResult reports the outcome of an idempotent hero upsert.
type UpsertResult struct {
	Created bool
	HeroID  string
}

// Summary is the output of the summarization stage.
type Summary struct {
	Summary        string
	KeyPoints      []string
	Entities       []string
	ReadingTimeMin int
}

// Quote is a notable quote with optional attribution.
type Quote struct {
	Quote       string `json:"quote"`
	Attribution string `json:"attribution,omitempty"`
}

// RelevanceResult is the output of the group-profile matcher.
type RelevanceResult struct {
	IsRelevant      bool
	Score           float64
	MatchedEntities []string
}

// ResolvedImage is the winning entry of the image fallback chain.
type ResolvedImage struct {
	URL     string
	Source  ImageTier
	License string
}
