// Package enrich implements the discovery intake flow and the background
// hero enrichment pipeline.
package enrich

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/extract"
	"github.com/ddoubleg123/carrot-discovery/internal/images"
	"github.com/ddoubleg123/carrot-discovery/internal/metrics"
	"github.com/ddoubleg123/carrot-discovery/internal/progress"
	"github.com/ddoubleg123/carrot-discovery/internal/relevance"
	"github.com/ddoubleg123/carrot-discovery/internal/summarize"
)

// Deps bundles the collaborators shared by the intake service and the
// enrichment orchestrator.
type Deps struct {
	Fetcher    discovery.Fetcher
	Extractor  *extract.Extractor
	Summarizer *summarize.Summarizer
	Images     *images.Resolver
	Content    discovery.ContentStore
	Heroes     discovery.HeroStore
	Snapshots  discovery.SnapshotStore
	Queue      discovery.EnrichQueue
	Publisher  discovery.Publisher
	Profiles   map[string]discovery.GroupProfile
	Clock      discovery.Clock
	IDs        discovery.IDGenerator
	Hasher     discovery.Hasher
	Hub        *progress.Hub
	Logger     *zap.Logger
	EventTopic string
}

func (d *Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// Service runs the synchronous discovery intake: fetch a candidate URL,
// judge its quality and relevance for a topic, persist the record, and
// schedule background enrichment for accepted content.
type Service struct {
	deps Deps
}

// NewService creates the intake service.
func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

// SubmitRequest is one candidate URL for a topic.
type SubmitRequest struct {
	URL   string `json:"url"`
	Topic string `json:"topic"`
}

// SubmitResult reports what intake decided about a candidate.
type SubmitResult struct {
	ContentID      string                  `json:"content_id,omitempty"`
	Status         discovery.ContentStatus `json:"status"`
	QualityScore   int                     `json:"quality_score"`
	RelevanceScore float64                 `json:"relevance_score"`
	Fetch          discovery.FetchMetadata `json:"fetch"`
	Queued         bool                    `json:"queued"`
	Reason         string                  `json:"reason,omitempty"`
}

// Submit runs intake for one candidate URL. Accepted content gets a pending
// record, a DRAFT hero row, an archived snapshot, and a queued enrichment
// task. Rejected content is persisted with status rejected so repeat
// submissions are auditable.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	profile, ok := s.deps.Profiles[req.Topic]
	if !ok {
		return SubmitResult{}, fmt.Errorf("unknown topic %q", req.Topic)
	}

	normalized, err := discovery.NormalizeURL(req.URL)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("normalize url: %w", err)
	}
	if !profile.DomainAllowed(discovery.Hostname(normalized)) {
		return SubmitResult{
			Status: discovery.ContentRejected,
			Reason: "domain not allowed for topic",
		}, nil
	}

	fetched := s.deps.Fetcher.Fetch(ctx, normalized)
	if !fetched.Success {
		code := discovery.FetchClassToCode(fetched.Metadata.FetchClass, fetched.Metadata.StatusCode)
		return SubmitResult{Fetch: fetched.Metadata},
			discovery.NewStageError(code, fmt.Errorf("fetch %s: %s", normalized, fetched.Metadata.FailureReason))
	}

	page, err := s.deps.Extractor.Extract(fetched.HTML, normalized)
	if err != nil {
		return SubmitResult{Fetch: fetched.Metadata},
			discovery.NewStageError(discovery.CodeParseFailure, err)
	}

	fallback := summarize.Extractive(page.MainText)
	quality := extract.ValidateQuality(extract.ValidationInput{
		Title:     page.Title,
		Summary:   fallback.Summary,
		KeyPoints: fallback.KeyPoints,
		WordCount: page.WordCount(),
		Text:      page.MainText,
	})
	rel := relevance.Match(page.MainText, page.Title, profile)

	contentID, err := s.deps.IDs.NewID()
	if err != nil {
		return SubmitResult{}, fmt.Errorf("generate content id: %w", err)
	}
	now := s.deps.Clock.Now().UTC()

	record := discovery.ContentRecord{
		ID:             contentID,
		Topic:          req.Topic,
		SourceURL:      normalized,
		CanonicalURL:   page.CanonicalURL,
		Title:          page.Title,
		Summary:        fallback.Summary,
		TextContent:    page.MainText,
		RelevanceScore: rel.Score,
		QualityScore:   quality.Score,
		Status:         discovery.ContentPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	result := SubmitResult{
		ContentID:      contentID,
		Status:         discovery.ContentPending,
		QualityScore:   quality.Score,
		RelevanceScore: rel.Score,
		Fetch:          fetched.Metadata,
	}

	switch {
	case !quality.Valid:
		metrics.ObserveQualityRejection()
		record.Status = discovery.ContentRejected
		result.Status = discovery.ContentRejected
		result.Reason = "quality below threshold: " + strings.Join(quality.Flags, "; ")
	case !rel.IsRelevant:
		metrics.ObserveRelevanceRejection()
		record.Status = discovery.ContentRejected
		result.Status = discovery.ContentRejected
		result.Reason = fmt.Sprintf("relevance %.2f below threshold %.2f", rel.Score, profile.RelevanceThreshold)
	}

	if err := s.deps.Content.Create(ctx, record); err != nil {
		return SubmitResult{}, discovery.NewStageError(discovery.CodeDBWriteError, err)
	}
	if record.Status == discovery.ContentRejected {
		return result, nil
	}

	// Snapshot failures are not fatal; enrichment re-fetches on a miss.
	if _, err := s.deps.Snapshots.Put(ctx, snapshotKey(s.deps, record), []byte(fetched.HTML)); err != nil {
		s.deps.logger().Warn("snapshot archive failed",
			zap.String("content_id", contentID), zap.Error(err))
	}

	if err := s.createDraftHero(ctx, record); err != nil {
		return SubmitResult{}, err
	}

	traceID, err := s.deps.IDs.NewID()
	if err != nil {
		return SubmitResult{}, fmt.Errorf("generate trace id: %w", err)
	}
	task := discovery.EnrichTask{
		ContentID: contentID,
		Topic:     req.Topic,
		TraceID:   traceID,
		Submitted: now.Unix(),
	}
	if err := s.deps.Queue.Enqueue(ctx, task); err != nil {
		s.deps.logger().Error("enqueue enrichment failed",
			zap.String("content_id", contentID), zap.Error(err))
		return result, nil
	}
	result.Queued = true
	return result, nil
}

func (s *Service) createDraftHero(ctx context.Context, record discovery.ContentRecord) error {
	heroID, err := s.deps.IDs.NewID()
	if err != nil {
		return fmt.Errorf("generate hero id: %w", err)
	}
	placeholder := s.deps.Images.Placeholder(record.Title)
	hero := discovery.Hero{
		ID:          heroID,
		ContentID:   record.ID,
		Title:       record.Title,
		ImageURL:    placeholder.URL,
		ImageSource: placeholder.Source,
		SourceURL:   record.SourceURL,
		Status:      discovery.HeroDraft,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.CreatedAt,
	}
	res, err := s.deps.Heroes.Upsert(ctx, record.ID, hero)
	if err != nil {
		metrics.ObserveHeroUpsert("error")
		return discovery.NewStageError(discovery.CodeDBWriteError, err)
	}
	if res.Created {
		metrics.ObserveHeroUpsert("created")
	} else {
		metrics.ObserveHeroUpsert("existing")
	}
	s.publishEvent(ctx, "hero.draft", record.ID, res.HeroID, "")
	return nil
}

// snapshotKey addresses archived HTML by the page URL, so re-submissions of
// the same URL under a new content ID reuse one snapshot object.
func snapshotKey(deps Deps, record discovery.ContentRecord) string {
	addr := record.CanonicalURL
	if addr == "" {
		addr = record.SourceURL
	}
	if deps.Hasher == nil || addr == "" {
		return record.ID
	}
	key, err := deps.Hasher.Hash([]byte(addr))
	if err != nil || key == "" {
		return record.ID
	}
	return key
}

func (s *Service) publishEvent(ctx context.Context, kind, contentID, heroID, errorCode string) {
	publishLifecycleEvent(ctx, s.deps, kind, contentID, heroID, errorCode)
}

type lifecycleEvent struct {
	Kind      string `json:"kind"`
	ContentID string `json:"content_id"`
	HeroID    string `json:"hero_id"`
	ErrorCode string `json:"error_code,omitempty"`
	TS        int64  `json:"ts"`
}

func publishLifecycleEvent(ctx context.Context, deps Deps, kind, contentID, heroID, errorCode string) {
	if deps.Publisher == nil || deps.EventTopic == "" {
		return
	}
	evt := lifecycleEvent{
		Kind:      kind,
		ContentID: contentID,
		HeroID:    heroID,
		ErrorCode: errorCode,
		TS:        deps.Clock.Now().UTC().Unix(),
	}
	if _, err := deps.Publisher.Publish(ctx, deps.EventTopic, evt); err != nil {
		deps.logger().Warn("publish lifecycle event failed",
			zap.String("kind", kind), zap.String("content_id", contentID), zap.Error(err))
	}
}
