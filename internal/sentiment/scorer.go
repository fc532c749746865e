// Package sentiment provides the lexicon-based scorer that turns raw message
// text into sentiment, hype and risk signals.
package sentiment

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/token-pulse/internal/types"
)

var wordPattern = regexp.MustCompile(`[A-Za-z0-9_']+`)

// Result holds the scoring output for one message
type Result struct {
	Sentiment     float64         `json:"sentiment"`
	PositiveTerms []string        `json:"positiveTerms,omitempty"`
	NegativeTerms []string        `json:"negativeTerms,omitempty"`
	HypeScore     float64         `json:"hypeScore"`
	RiskLevel     types.RiskLevel `json:"riskLevel"`
}

// Scorer scores message text against fixed lexicons. Stateless after
// construction and safe for concurrent use.
type Scorer struct {
	lexicon *Lexicon
}

// NewScorer creates a scorer with the given lexicon, or the default lexicon
// when nil
func NewScorer(lexicon *Lexicon) *Scorer {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	return &Scorer{lexicon: lexicon}
}

// Score evaluates one message. Empty or unmatchable text yields a neutral
// result with RiskLow, never an error.
func (s *Scorer) Score(text string) *Result {
	if strings.TrimSpace(text) == "" {
		return &Result{RiskLevel: types.RiskUnknown}
	}

	lower := strings.ToLower(text)
	wordCount := countWords(text)

	result := &Result{}

	positiveHits := 0
	for _, term := range s.lexicon.Positive {
		if n := matchCount(lower, term); n > 0 {
			positiveHits += n
			result.PositiveTerms = append(result.PositiveTerms, term)
		}
	}
	for _, emoji := range s.lexicon.PositiveEmojis {
		positiveHits += strings.Count(text, emoji)
	}

	negativeHits := 0
	for _, term := range s.lexicon.Negative {
		if n := matchCount(lower, term); n > 0 {
			negativeHits += n
			result.NegativeTerms = append(result.NegativeTerms, term)
		}
	}
	for _, emoji := range s.lexicon.NegativeEmojis {
		negativeHits += strings.Count(text, emoji)
	}

	if positiveHits+negativeHits > 0 {
		result.Sentiment = float64(positiveHits-negativeHits) / float64(positiveHits+negativeHits)
	}
	if result.Sentiment > 1 {
		result.Sentiment = 1
	} else if result.Sentiment < -1 {
		result.Sentiment = -1
	}

	hypeHits := 0
	for _, term := range s.lexicon.Hype {
		hypeHits += matchCount(lower, term)
	}
	if wordCount < 1 {
		wordCount = 1
	}
	// Density-normalized: hits per word, scaled to a 0..5-ish range
	result.HypeScore = float64(hypeHits) / float64(wordCount) * 5

	result.RiskLevel = s.riskLevel(lower, result.HypeScore, result.Sentiment)

	return result
}

// riskLevel is a fixed-priority decision table. An explicit risk keyword
// always wins regardless of other signals.
func (s *Scorer) riskLevel(lower string, hype, sentiment float64) types.RiskLevel {
	for _, keyword := range s.lexicon.Risk {
		if strings.Contains(lower, keyword) {
			return types.RiskHigh
		}
	}

	switch {
	case hype > 3.5 && sentiment > 0.7:
		return types.RiskMediumHigh
	case hype > 3.5:
		return types.RiskMedium
	case sentiment < -0.5:
		return types.RiskMedium
	case sentiment > 0.7:
		return types.RiskLowMedium
	default:
		return types.RiskLow
	}
}

// matchCount counts occurrences of term in lower-cased text. ASCII terms are
// matched on word boundaries; CJK and emoji terms are matched as substrings
// because the scripts have no word separators.
func matchCount(lower, term string) int {
	if isASCIIWord(term) {
		count := 0
		for _, word := range wordPattern.FindAllString(lower, -1) {
			if word == term {
				count++
			}
		}
		return count
	}
	return strings.Count(lower, term)
}

// countWords approximates the token count of mixed-script text: Latin words
// count once each, and every CJK rune counts as one word since there are no
// separators to split on.
func countWords(text string) int {
	count := len(wordPattern.FindAllString(text, -1))
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			count++
		}
	}
	return count
}

// isASCIIWord reports whether the term is plain ASCII without spaces
func isASCIIWord(term string) bool {
	for _, r := range term {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return !strings.Contains(term, " ")
}
