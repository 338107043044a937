package discovery

import (
	"context"
	"time"
)

// Fetcher runs the tiered fetch pipeline for one candidate URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) FetchResult
}

// Renderer is the optional headless-rendering capability. Implementations must
// release any per-call browser resources before returning.
type Renderer interface {
	IsAvailable() bool
	Render(ctx context.Context, url string) RenderResult
}

// SummarizationClient calls an external LLM summarization service.
type SummarizationClient interface {
	Summarize(ctx context.Context, req SummarizeRequest) (SummarizeResponse, error)
}

// SummarizeRequest is the external summarization contract's input.
type SummarizeRequest struct {
	Text        string  `json:"text"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Temperature float64 `json:"temperature"`
}

// SummarizeResponse mirrors the external service's JSON response. Missing
// fields are backfilled with safe defaults by the caller.
type SummarizeResponse struct {
	Summary        string   `json:"summary"`
	KeyFacts       []string `json:"keyFacts"`
	NotableQuotes  []Quote  `json:"notableQuotes"`
	QualityScore   int      `json:"qualityScore"`
	RelevanceScore int      `json:"relevanceScore"`
	IsUseful       bool     `json:"isUseful"`
	Issues         []string `json:"issues"`
}

// ImageSearcher queries an external media API for a topical image.
type ImageSearcher interface {
	Search(ctx context.Context, keyword string) (ResolvedImage, error)
}

// ImageGenerator requests an AI-generated image. A non-success response is an
// empty result, not an error.
type ImageGenerator interface {
	Generate(ctx context.Context, title, description, style string) (ResolvedImage, error)
}

// HeroStore persists hero rows with idempotent-upsert semantics.
type HeroStore interface {
	Upsert(ctx context.Context, contentID string, hero Hero) (UpsertResult, error)
	Update(ctx context.Context, heroID string, hero Hero) error
	GetByContentID(ctx context.Context, contentID string) (Hero, bool, error)
}

// ContentStore persists discovered content records.
type ContentStore interface {
	Create(ctx context.Context, record ContentRecord) error
	Get(ctx context.Context, id string) (ContentRecord, bool, error)
	UpdateEnrichment(ctx context.Context, id string, summary string, status ContentStatus, mirror *HeroMirror) error
}

// SnapshotStore archives fetched HTML for reuse by later enrichment stages.
type SnapshotStore interface {
	Put(ctx context.Context, contentID string, html []byte) (string, error)
	Get(ctx context.Context, contentID string) ([]byte, bool, error)
}

// Publisher pushes hero lifecycle events to an event transport.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// EnrichQueue hands enrichment tasks to background workers.
type EnrichQueue interface {
	Enqueue(ctx context.Context, task EnrichTask) error
	Dequeue(ctx context.Context) (EnrichTask, error)
}

// EnrichTask identifies one scheduled enrichment run.
type EnrichTask struct {
	ContentID string
	Topic     string
	TraceID   string
	Submitted int64
}

// Hasher produces stable hex digests for content-addressed storage keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record and trace IDs.
type IDGenerator interface {
	NewID() (string, error)
}
