// Package extract turns raw HTML into structured content and scores it.
package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// Class fragments that mark boilerplate containers.
var boilerplateClassPattern = regexp.MustCompile(`(?i)(menu|nav|cookie|banner|sidebar|advert|ad-slot|promo|newsletter|social|share|comment)`)

// Site-name separators stripped from raw <title> values.
var titleSeparators = []string{" | ", " – ", " — ", " - ", " :: "}

// Meta tags probed for the author, in preference order.
var authorMetaNames = []string{
	`meta[name="author"]`,
	`meta[property="article:author"]`,
	`meta[name="twitter:creator"]`,
}

// Meta tags probed for the publish date, in preference order.
var dateMetaNames = []string{
	`meta[property="article:published_time"]`,
	`meta[name="date"]`,
	`meta[name="publish-date"]`,
	`meta[itemprop="datePublished"]`,
}

// Extractor strips boilerplate from HTML and pulls out structured content.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses the HTML and returns structured content. Readability does
// the heavy lifting; a goquery pass fills whatever it misses.
func (e *Extractor) Extract(html, sourceURL string) (discovery.ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return discovery.ExtractedContent{}, fmt.Errorf("parse html: %w", err)
	}

	page := discovery.ExtractedContent{
		Title:        extractTitle(doc),
		Author:       extractAuthor(doc),
		PublishDate:  extractPublishDate(doc),
		CanonicalURL: extractCanonical(doc, sourceURL),
	}

	if article := readabilityPass(html, sourceURL); article != "" {
		page.MainText = article
	}

	cleaned := stripBoilerplate(doc)
	page.Paragraphs = extractParagraphs(cleaned)
	if page.MainText == "" {
		page.MainText = strings.Join(page.Paragraphs, "\n\n")
	}
	if page.MainText == "" {
		page.MainText = collapseWhitespace(cleaned.Find("body").Text())
	}

	return page, nil
}

func readabilityPass(html, sourceURL string) string {
	parsedURL, err := url.Parse(sourceURL)
	if err != nil {
		parsedURL = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func stripBoilerplate(doc *goquery.Document) *goquery.Document {
	doc.Find("script, style, nav, header, footer, aside, noscript, form, iframe").Remove()
	doc.Find("[class]").Each(func(_ int, sel *goquery.Selection) {
		class, _ := sel.Attr("class")
		if boilerplateClassPattern.MatchString(class) {
			sel.Remove()
		}
	})
	return doc
}

func extractTitle(doc *goquery.Document) string {
	if h1 := collapseWhitespace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	raw := collapseWhitespace(doc.Find("title").First().Text())
	return cleanSiteSuffix(raw)
}

// cleanSiteSuffix drops a trailing site-name segment from a raw page title.
// The shorter trailing part loses only when the leading part still looks like
// a headline.
func cleanSiteSuffix(title string) string {
	for _, sep := range titleSeparators {
		if idx := strings.LastIndex(title, sep); idx > 0 {
			head := strings.TrimSpace(title[:idx])
			tail := strings.TrimSpace(title[idx+len(sep):])
			if len(head) >= len(tail) && len(head) >= 10 {
				return head
			}
		}
	}
	return title
}

func extractAuthor(doc *goquery.Document) string {
	for _, sel := range authorMetaNames {
		if content, ok := doc.Find(sel).First().Attr("content"); ok {
			if author := strings.TrimSpace(content); author != "" {
				return author
			}
		}
	}
	return ""
}

func extractPublishDate(doc *goquery.Document) *time.Time {
	for _, sel := range dateMetaNames {
		content, ok := doc.Find(sel).First().Attr("content")
		if !ok {
			continue
		}
		if ts, err := dateparse.ParseAny(strings.TrimSpace(content)); err == nil {
			utc := ts.UTC()
			return &utc
		}
	}
	if datetime, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if ts, err := dateparse.ParseAny(strings.TrimSpace(datetime)); err == nil {
			utc := ts.UTC()
			return &utc
		}
	}
	return nil
}

func extractCanonical(doc *goquery.Document, sourceURL string) string {
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		if canonical := strings.TrimSpace(href); canonical != "" {
			return canonical
		}
	}
	return sourceURL
}

func extractParagraphs(doc *goquery.Document) []string {
	var paragraphs []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		text := collapseWhitespace(sel.Text())
		if len(text) >= 20 {
			paragraphs = append(paragraphs, text)
		}
	})
	return paragraphs
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
