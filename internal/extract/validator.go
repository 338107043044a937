package extract

import "strings"

// ValidThreshold is the minimum quality score for content to stay enrichable.
const ValidThreshold = 70

// Phrases that mark leftover boilerplate in supposedly clean content.
var boilerplatePhrases = []string{
	"click here",
	"subscribe",
	"sign up now",
	"accept cookies",
	"advertisement",
	"read more at",
}

// Score deductions per rule.
const (
	deductTitle       = 15
	deductSummary     = 15
	deductKeyPoints   = 10
	deductWordCount   = 40
	deductBoilerplate = 10
)

// ValidationInput carries the fields the quality validator scores.
type ValidationInput struct {
	Title     string
	Summary   string
	KeyPoints []string
	WordCount int
	Text      string
}

// QualityResult is the validator's verdict.
type QualityResult struct {
	Score int
	Valid bool
	Flags []string
}

// ValidateQuality computes a deterministic 0-100 quality score. Content is
// valid iff the score reaches ValidThreshold; a word count under 200 alone is
// enough to fail.
func ValidateQuality(in ValidationInput) QualityResult {
	score := 100
	var flags []string

	if n := len(in.Title); n < 10 || n > 100 {
		score -= deductTitle
		flags = append(flags, "title_length")
	}
	if n := len(in.Summary); n < 120 || n > 300 {
		score -= deductSummary
		flags = append(flags, "summary_length")
	}
	if n := len(in.KeyPoints); n < 3 || n > 7 {
		score -= deductKeyPoints
		flags = append(flags, "key_point_count")
	}
	if in.WordCount < 200 {
		score -= deductWordCount
		flags = append(flags, "word_count")
	}

	lower := strings.ToLower(in.Text)
	for _, phrase := range boilerplatePhrases {
		if strings.Contains(lower, phrase) {
			score -= deductBoilerplate
			flags = append(flags, "boilerplate:"+phrase)
		}
	}

	if score < 0 {
		score = 0
	}

	return QualityResult{
		Score: score,
		Valid: score >= ValidThreshold,
		Flags: flags,
	}
}
