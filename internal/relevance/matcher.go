// Package relevance gates candidates against a topical group profile.
package relevance

import (
	"strings"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// Scoring weights. The canonical-entity gate runs before any of these apply.
const (
	baseScore       = 0.5
	keyPersonWeight = 0.1
	synonymWeight   = 0.05
	keywordWeight   = 0.05
)

// Match scores the content against the profile. At least one canonical entity
// must appear in title+content or the result is an immediate zero; no other
// signal can recover it.
func Match(text, title string, profile discovery.GroupProfile) discovery.RelevanceResult {
	haystack := strings.ToLower(title + " " + text)

	matched := matchAll(haystack, profile.CanonicalEntities)
	if len(matched) == 0 {
		return discovery.RelevanceResult{}
	}

	score := baseScore
	score += keyPersonWeight * float64(len(matchAll(haystack, profile.KeyPeople)))
	score += synonymWeight * float64(len(matchAll(haystack, profile.Synonyms)))
	score += keywordWeight * float64(len(matchAll(haystack, profile.ImportanceKeywords.High)))
	score -= keywordWeight * float64(len(matchAll(haystack, profile.ImportanceKeywords.Low)))

	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}

	return discovery.RelevanceResult{
		IsRelevant:      score >= profile.RelevanceThreshold,
		Score:           score,
		MatchedEntities: matched,
	}
}

func matchAll(haystack string, needles []string) []string {
	var matched []string
	for _, needle := range needles {
		needle = strings.TrimSpace(needle)
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(needle)) {
			matched = append(matched, needle)
		}
	}
	return matched
}
