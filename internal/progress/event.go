// Package progress defines the stage events emitted during enrichment.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// Phase names one enrichment stage.
type Phase string

// Enrichment stages, in execution order, plus run-level milestones.
const (
	PhaseFetch     Phase = "fetch"
	PhaseExtract   Phase = "extract"
	PhaseQuote     Phase = "quote"
	PhaseSummarize Phase = "summarize"
	PhaseImage     Phase = "image"
	PhaseUpsert    Phase = "upsert"
	PhaseRunStart  Phase = "run_start"
	PhaseRunDone   Phase = "run_done"
)

// Event captures one stage completion (or run milestone) for a content item.
type Event struct {
	// ContentID identifies the content record being enriched.
	ContentID string
	// TraceID ties all events of one run together.
	TraceID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Phase is the stage this event reports on.
	Phase Phase
	// OK is false when the stage failed.
	OK bool
	// Dur is the stage execution latency.
	Dur time.Duration
	// ErrorCode carries the taxonomy code on failure.
	ErrorCode discovery.ErrorCode
	// Note holds low-volume debug context (e.g. winning branch or tier).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.ContentID == "" {
		return errors.New("content id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Phase {
	case PhaseFetch, PhaseExtract, PhaseQuote, PhaseSummarize, PhaseImage, PhaseUpsert, PhaseRunStart, PhaseRunDone:
	default:
		return fmt.Errorf("unknown phase %q", e.Phase)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
