package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/metrics"
	"github.com/ddoubleg123/carrot-discovery/internal/progress"
	"github.com/ddoubleg123/carrot-discovery/internal/summarize"
)

// Orchestrator runs the background enrichment pipeline for one content
// record: fetch (snapshot first), extract, quote, summarize, image, upsert.
// Every stage is logged with its duration and outcome, and every run ends
// with a hero row that has a non-empty image URL, no matter what failed.
type Orchestrator struct {
	deps Deps
}

// NewOrchestrator creates an enrichment orchestrator.
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// Enrich executes one enrichment run. It never returns an error and never
// panics outward: terminal failures are absorbed into an ERROR hero row with
// a classified error code.
func (o *Orchestrator) Enrich(ctx context.Context, task discovery.EnrichTask) {
	// The panic boundary still ends the run with an ERROR hero row, so a
	// panicking stage cannot strand the row in DRAFT.
	record := discovery.ContentRecord{ID: task.ContentID, Topic: task.Topic}
	defer func() {
		if r := recover(); r != nil {
			o.deps.logger().Error("enrichment panic recovered",
				zap.String("content_id", task.ContentID), zap.Any("panic", r))
			o.fail(ctx, task, record, fmt.Errorf("enrichment panic: %v", r))
		}
	}()

	o.emit(task, progress.PhaseRunStart, true, 0, "", "")

	loaded, found, err := o.deps.Content.Get(ctx, task.ContentID)
	if err != nil || !found {
		if err == nil {
			err = fmt.Errorf("content record %s not found", task.ContentID)
		}
		o.deps.logger().Error("enrichment aborted", zap.String("content_id", task.ContentID), zap.Error(err))
		o.emit(task, progress.PhaseRunDone, false, 0, discovery.CodeDBWriteError, "")
		return
	}
	record = loaded

	if err := o.run(ctx, task, record); err != nil {
		o.fail(ctx, task, record, err)
		return
	}
	o.emit(task, progress.PhaseRunDone, true, 0, "", "")
}

func (o *Orchestrator) run(ctx context.Context, task discovery.EnrichTask, record discovery.ContentRecord) error {
	var html string
	err := o.stage(task, progress.PhaseFetch, func() (string, error) {
		cached, found, err := o.deps.Snapshots.Get(ctx, snapshotKey(o.deps, record))
		if err == nil && found {
			html = string(cached)
			return "snapshot", nil
		}
		if err != nil {
			o.deps.logger().Warn("snapshot read failed",
				zap.String("content_id", record.ID), zap.Error(err))
		}
		fetched := o.deps.Fetcher.Fetch(ctx, record.SourceURL)
		if !fetched.Success {
			code := discovery.FetchClassToCode(fetched.Metadata.FetchClass, fetched.Metadata.StatusCode)
			return "", discovery.NewStageError(code,
				fmt.Errorf("fetch %s: %s", record.SourceURL, fetched.Metadata.FailureReason))
		}
		html = fetched.HTML
		if _, err := o.deps.Snapshots.Put(ctx, snapshotKey(o.deps, record), []byte(html)); err != nil {
			o.deps.logger().Warn("snapshot archive failed",
				zap.String("content_id", record.ID), zap.Error(err))
		}
		return string(fetched.Metadata.BranchUsed), nil
	})
	if err != nil {
		return err
	}

	var page extractedContent
	err = o.stage(task, progress.PhaseExtract, func() (string, error) {
		p, err := o.deps.Extractor.Extract(html, record.SourceURL)
		if err != nil {
			return "", discovery.NewStageError(discovery.CodeParseFailure, err)
		}
		page = extractedContent{
			Title:      firstNonEmpty(p.Title, record.Title),
			MainText:   p.MainText,
			Paragraphs: p.Paragraphs,
		}
		return "", nil
	})
	if err != nil {
		return err
	}

	var quote summarize.QuoteBlock
	_ = o.stage(task, progress.PhaseQuote, func() (string, error) {
		quote = summarize.BuildQuote(page.Paragraphs)
		return "", nil
	})

	var summary discovery.Summary
	var notable []discovery.Quote
	_ = o.stage(task, progress.PhaseSummarize, func() (string, error) {
		summary, notable = o.deps.Summarizer.Summarize(ctx, page.MainText, page.Title, record.SourceURL)
		return "", nil
	})
	// Attributed quotes from the summarization service replace the
	// extractive selection when the service supplies any.
	if nb := summarize.NotableQuoteBlock(notable); nb.CharCount > 0 {
		quote = nb
	}

	var image discovery.ResolvedImage
	_ = o.stage(task, progress.PhaseImage, func() (string, error) {
		image = o.deps.Images.Resolve(ctx, html, record.SourceURL, page.Title, summary.Summary)
		return string(image.Source), nil
	})

	return o.stage(task, progress.PhaseUpsert, func() (string, error) {
		now := o.deps.Clock.Now().UTC()
		hero := discovery.Hero{
			ContentID:      record.ID,
			Title:          page.Title,
			Excerpt:        summary.Summary,
			QuoteHTML:      quote.HTML,
			QuoteCharCount: quote.CharCount,
			ImageURL:       image.URL,
			ImageSource:    image.Source,
			SourceURL:      record.SourceURL,
			Status:         discovery.HeroReady,
			TraceID:        task.TraceID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		heroID, err := o.writeHero(ctx, record.ID, hero)
		if err != nil {
			return "", err
		}
		mirror := &discovery.HeroMirror{
			URL:       image.URL,
			Source:    image.Source,
			License:   image.License,
			UpdatedAt: now,
		}
		if err := o.deps.Content.UpdateEnrichment(ctx, record.ID, summary.Summary, discovery.ContentEnriched, mirror); err != nil {
			return "", discovery.NewStageError(discovery.CodeDBWriteError, err)
		}
		publishLifecycleEvent(ctx, o.deps, "hero.ready", record.ID, heroID, "")
		return "", nil
	})
}

// fail is the terminal error boundary: it records the failure on an ERROR
// hero row, still resolving the image fallback chain so the row keeps a
// usable image.
func (o *Orchestrator) fail(ctx context.Context, task discovery.EnrichTask, record discovery.ContentRecord, cause error) {
	code := classifyStage(cause)
	o.deps.logger().Warn("enrichment failed",
		zap.String("content_id", record.ID),
		zap.String("error_code", string(code)),
		zap.Error(cause))

	image := o.deps.Images.Resolve(ctx, "", record.SourceURL, record.Title, record.Summary)
	now := o.deps.Clock.Now().UTC()
	hero := discovery.Hero{
		ContentID:    record.ID,
		Title:        record.Title,
		ImageURL:     image.URL,
		ImageSource:  image.Source,
		SourceURL:    record.SourceURL,
		Status:       discovery.HeroError,
		ErrorCode:    string(code),
		ErrorMessage: cause.Error(),
		TraceID:      task.TraceID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	heroID, err := o.writeHero(ctx, record.ID, hero)
	if err != nil {
		o.deps.logger().Error("error hero write failed",
			zap.String("content_id", record.ID), zap.Error(err))
	}
	mirror := &discovery.HeroMirror{URL: image.URL, Source: image.Source, UpdatedAt: now}
	if err := o.deps.Content.UpdateEnrichment(ctx, record.ID, record.Summary, discovery.ContentFailed, mirror); err != nil {
		o.deps.logger().Error("content failure update failed",
			zap.String("content_id", record.ID), zap.Error(err))
	}
	publishLifecycleEvent(ctx, o.deps, "hero.error", record.ID, heroID, string(code))
	o.emit(task, progress.PhaseRunDone, false, 0, code, "")
}

// writeHero updates the existing hero row for the content record, inserting
// one when (unexpectedly) none exists yet.
func (o *Orchestrator) writeHero(ctx context.Context, contentID string, hero discovery.Hero) (string, error) {
	existing, found, err := o.deps.Heroes.GetByContentID(ctx, contentID)
	if err != nil {
		metrics.ObserveHeroUpsert("error")
		return "", discovery.NewStageError(discovery.CodeDBWriteError, err)
	}
	if found {
		hero.CreatedAt = existing.CreatedAt
		if err := o.deps.Heroes.Update(ctx, existing.ID, hero); err != nil {
			metrics.ObserveHeroUpsert("error")
			return "", discovery.NewStageError(discovery.CodeDBWriteError, err)
		}
		metrics.ObserveHeroUpsert("updated")
		return existing.ID, nil
	}
	heroID, err := o.deps.IDs.NewID()
	if err != nil {
		return "", discovery.NewStageError(discovery.CodeDBWriteError, err)
	}
	hero.ID = heroID
	res, err := o.deps.Heroes.Upsert(ctx, contentID, hero)
	if err != nil {
		metrics.ObserveHeroUpsert("error")
		return "", discovery.NewStageError(discovery.CodeDBWriteError, err)
	}
	metrics.ObserveHeroUpsert("created")
	return res.HeroID, nil
}

// stage times fn and emits one progress event plus metrics for the phase.
// The note returned by fn lands on the event for debugging.
func (o *Orchestrator) stage(task discovery.EnrichTask, phase progress.Phase, fn func() (string, error)) error {
	start := o.deps.Clock.Now()
	note, err := fn()
	dur := o.deps.Clock.Now().Sub(start)

	var code discovery.ErrorCode
	if err != nil {
		code = classifyStage(err)
	}
	o.emit(task, phase, err == nil, dur, code, note)
	metrics.ObserveEnrichStage(string(phase), err == nil, dur)
	return err
}

func (o *Orchestrator) emit(task discovery.EnrichTask, phase progress.Phase, ok bool, dur time.Duration, code discovery.ErrorCode, note string) {
	if o.deps.Hub == nil {
		return
	}
	o.deps.Hub.Emit(progress.Event{
		ContentID: task.ContentID,
		TraceID:   task.TraceID,
		TS:        o.deps.Clock.Now().UTC(),
		Phase:     phase,
		OK:        ok,
		Dur:       dur,
		ErrorCode: code,
		Note:      note,
	})
}

func classifyStage(err error) discovery.ErrorCode {
	var stageErr *discovery.StageError
	if errors.As(err, &stageErr) {
		return stageErr.Code
	}
	return discovery.ClassifyError(err)
}

type extractedContent struct {
	Title      string
	MainText   string
	Paragraphs []string
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
