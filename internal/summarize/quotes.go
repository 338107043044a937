package summarize

import (
	"html"
	"strings"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// Fair-use bounds for quoted source text. Exceeding either is a contract
// violation, not a stylistic choice.
const (
	MaxQuoteParagraphs = 2
	MaxQuoteChars      = 1200
)

// Minimum length for a paragraph to be worth quoting.
const quoteParagraphMin = 80

// QuoteBlock is the bounded quote rendered for a hero.
type QuoteBlock struct {
	HTML      string
	CharCount int
}

// BuildQuote selects up to MaxQuoteParagraphs substantial paragraphs, hard
// capped at MaxQuoteChars of source text, and renders them as a blockquote.
func BuildQuote(paragraphs []string) QuoteBlock {
	var selected []string
	total := 0

	for _, p := range paragraphs {
		trimmed := strings.TrimSpace(p)
		if len(trimmed) < quoteParagraphMin {
			continue
		}
		if len(selected) == MaxQuoteParagraphs {
			break
		}
		remaining := MaxQuoteChars - total
		if remaining <= 0 {
			break
		}
		if len(trimmed) > remaining {
			trimmed = truncateAtWord(trimmed, remaining)
			if trimmed == "" {
				break
			}
		}
		selected = append(selected, trimmed)
		total += len(trimmed)
	}

	if len(selected) == 0 {
		return QuoteBlock{}
	}

	var b strings.Builder
	b.WriteString("<blockquote>")
	for _, p := range selected {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(p))
		b.WriteString("</p>")
	}
	b.WriteString("</blockquote>")

	return QuoteBlock{HTML: b.String(), CharCount: total}
}

// NotableQuoteBlock renders service-supplied attributed quotes under the same
// fair-use bounds as BuildQuote. Attribution text does not count against the
// quoted-source budget.
func NotableQuoteBlock(quotes []discovery.Quote) QuoteBlock {
	var selected []discovery.Quote
	total := 0

	for _, q := range quotes {
		text := strings.TrimSpace(q.Quote)
		if text == "" {
			continue
		}
		if len(selected) == MaxQuoteParagraphs {
			break
		}
		remaining := MaxQuoteChars - total
		if remaining <= 0 {
			break
		}
		if len(text) > remaining {
			text = truncateAtWord(text, remaining)
			if text == "" {
				break
			}
		}
		selected = append(selected, discovery.Quote{
			Quote:       text,
			Attribution: strings.TrimSpace(q.Attribution),
		})
		total += len(text)
	}

	if len(selected) == 0 {
		return QuoteBlock{}
	}

	var b strings.Builder
	b.WriteString("<blockquote>")
	for _, q := range selected {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(q.Quote))
		b.WriteString("</p>")
		if q.Attribution != "" {
			b.WriteString("<cite>")
			b.WriteString(html.EscapeString(q.Attribution))
			b.WriteString("</cite>")
		}
	}
	b.WriteString("</blockquote>")

	return QuoteBlock{HTML: b.String(), CharCount: total}
}

// truncateAtWord cuts the text at the last word boundary within limit and
// appends an ellipsis marker inside the budget.
func truncateAtWord(text string, limit int) string {
	if limit < quoteParagraphMin {
		return ""
	}
	if len(text) <= limit {
		return text
	}
	// Reserve room for the ellipsis (3 bytes in UTF-8).
	cut := limit - 3
	for cut > 0 && text[cut] != ' ' {
		cut--
	}
	if cut == 0 {
		return ""
	}
	return strings.TrimSpace(text[:cut]) + "…"
}
