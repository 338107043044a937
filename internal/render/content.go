package render

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Minimum text length a cascade candidate must exceed to win.
const contentThreshold = 100

// Selectors for common content containers, tried after article/main.
var containerSelectors = []string{
	"[role=main]",
	"#content",
	".content",
	".post-content",
	".article-body",
	".entry-content",
	".story-body",
}

// ExtractMainContent pulls the main readable text out of a rendered DOM. The
// cascade tries article, then main, then known content containers, then the
// largest-scored text block, then the whole body; the first candidate over the
// threshold wins.
func ExtractMainContent(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, iframe").Remove()

	for _, sel := range append([]string{"article", "main"}, containerSelectors...) {
		if text := nodeText(doc.Find(sel).First()); len(text) > contentThreshold {
			return text
		}
	}

	if text := largestTextBlock(doc); len(text) > contentThreshold {
		return text
	}

	return nodeText(doc.Find("body").First())
}

// largestTextBlock scores every div and section by text size plus paragraph
// count and returns the best one.
func largestTextBlock(doc *goquery.Document) string {
	var best string
	var bestScore int
	doc.Find("div, section").Each(func(_ int, sel *goquery.Selection) {
		text := nodeText(sel)
		score := len(text) + sel.Find("p").Length()*50
		if score > bestScore {
			bestScore = score
			best = text
		}
	})
	return best
}

func nodeText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	return collapseWhitespace(sel.Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
