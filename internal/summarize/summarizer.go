package summarize

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

const (
	wordsPerMinute   = 200
	goodSentenceMin  = 20
	keyPointMax      = 200
	maxKeyPoints     = 5
	maxNotableQuotes = 2
	maxEntities      = 10
)

var (
	sentenceSplit = regexp.MustCompile(`(?m)([^.!?]+[.!?])`)
	entityPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)+\b`)
)

// Summarizer wraps the external client with safe-default backfill and a fully
// local extractive fallback. Summarize never fails; degraded output is the
// failure mode.
type Summarizer struct {
	client discovery.SummarizationClient
	logger *zap.Logger
}

// New builds a Summarizer. A nil client forces the extractive fallback.
func New(client discovery.SummarizationClient, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{client: client, logger: logger}
}

// Summarize produces a summary for the content. External-service failures are
// logged and absorbed; the result is backfilled so every field is usable.
func (s *Summarizer) Summarize(ctx context.Context, text, title, url string) (discovery.Summary, []discovery.Quote) {
	if s.client != nil {
		resp, err := s.client.Summarize(ctx, discovery.SummarizeRequest{
			Text:  text,
			Title: title,
			URL:   url,
		})
		if err == nil {
			return s.backfill(resp, text), clampQuotes(resp.NotableQuotes)
		}
		s.logger.Warn("summarization service failed, using extractive fallback",
			zap.String("url", url), zap.Error(err))
	}
	return Extractive(text), nil
}

// backfill replaces absent or malformed response fields with extractive
// defaults so the caller never sees a hard failure.
func (s *Summarizer) backfill(resp discovery.SummarizeResponse, text string) discovery.Summary {
	fallback := Extractive(text)

	out := discovery.Summary{
		Summary:        strings.TrimSpace(resp.Summary),
		KeyPoints:      resp.KeyFacts,
		Entities:       fallback.Entities,
		ReadingTimeMin: fallback.ReadingTimeMin,
	}
	if out.Summary == "" {
		out.Summary = fallback.Summary
	}
	if len(out.KeyPoints) < 3 {
		out.KeyPoints = fallback.KeyPoints
	}
	return out
}

// Extractive is the local heuristic summarizer used when the external service
// is unavailable or unusable.
func Extractive(text string) discovery.Summary {
	sentences := splitSentences(text)

	var summaryParts []string
	var keyPoints []string
	for _, sentence := range sentences {
		trimmed := strings.TrimSpace(sentence)
		if len(trimmed) < goodSentenceMin {
			continue
		}
		if len(summaryParts) < 2 {
			summaryParts = append(summaryParts, trimmed)
			continue
		}
		if len(keyPoints) < maxKeyPoints && len(trimmed) <= keyPointMax {
			keyPoints = append(keyPoints, trimmed)
		}
	}

	words := len(strings.Fields(text))
	readingTime := words / wordsPerMinute
	if readingTime < 1 {
		readingTime = 1
	}

	return discovery.Summary{
		Summary:        strings.Join(summaryParts, " "),
		KeyPoints:      keyPoints,
		Entities:       extractEntities(text),
		ReadingTimeMin: readingTime,
	}
}

// extractEntities collects recurring capitalized multi-word names from the
// text, in first-seen order. Names seen only once are dropped as likely
// sentence-start noise.
func extractEntities(text string) []string {
	counts := make(map[string]int)
	var order []string
	for _, name := range entityPattern.FindAllString(text, -1) {
		if counts[name] == 0 {
			order = append(order, name)
		}
		counts[name]++
	}

	var out []string
	for _, name := range order {
		if counts[name] < 2 {
			continue
		}
		out = append(out, name)
		if len(out) == maxEntities {
			break
		}
	}
	return out
}

func clampQuotes(quotes []discovery.Quote) []discovery.Quote {
	if len(quotes) > maxNotableQuotes {
		return quotes[:maxNotableQuotes]
	}
	return quotes
}

func splitSentences(text string) []string {
	return sentenceSplit.FindAllString(text, -1)
}
