// Package extract turns raw broadcast message text into structured promotion
// signals. Extraction is pure: no I/O, no side effects, and any internal
// failure degrades to a nil signal rather than an error.
package extract

import (
	"strings"
	"time"

	"github.com/token-pulse/internal/sentiment"
	"github.com/token-pulse/internal/types"
)

// Extractor runs the pattern cascades over message text. Stateless after
// construction and safe for concurrent use.
type Extractor struct {
	scorer *sentiment.Scorer
}

// NewExtractor creates an extractor backed by the given scorer, or a
// default-lexicon scorer when nil
func NewExtractor(scorer *sentiment.Scorer) *Extractor {
	if scorer == nil {
		scorer = sentiment.NewScorer(nil)
	}
	return &Extractor{scorer: scorer}
}

// Extract parses one message. Returns nil when neither a token symbol nor a
// contract address could be found; every other absent field is left at its
// zero value and propagated as an absent feature downstream.
func (e *Extractor) Extract(text string, timestamp time.Time, chainHint types.Chain) *types.PromotionSignal {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	signal := &types.PromotionSignal{
		Chain:       chainHint,
		MentionTime: timestamp,
	}

	// URL evidence first: aggregator and explorer links carry both chain
	// and contract and outrank free-text regex matches
	if hit := extractFromURLs(text); hit != nil {
		signal.Chain = hit.chain
		signal.ContractAddress = hit.contract
	}

	if signal.ContractAddress == "" {
		signal.ContractAddress = extractContract(text)
	}

	signal.TokenSymbol = extractSymbol(text)

	if signal.TokenSymbol == "" && signal.ContractAddress == "" {
		return nil
	}

	if m := marketCapPattern.FindStringSubmatch(text); m != nil {
		signal.MarketCapRaw = strings.TrimSpace(m[1])
	}

	signal.TelegramURL = telegramURLPattern.FindString(text)
	signal.TwitterURL = twitterURLPattern.FindString(text)
	signal.WebsiteURL = extractWebsite(text, signal)

	if !signal.Chain.IsResolved() {
		signal.Chain = GuessChain(text, signal.ContractAddress)
	}
	signal.Chain = ResolveChain(signal.Chain)

	if warning := ValidateAddress(signal.Chain, signal.ContractAddress); warning != "" {
		signal.Warnings = append(signal.Warnings, warning)
	}

	score := e.scorer.Score(text)
	signal.SentimentScore = score.Sentiment
	signal.HypeScore = score.HypeScore
	signal.RiskLevel = score.RiskLevel

	return signal
}

// extractContract runs the contract cascade: marked patterns, then bare EVM
// hex, then bare base58
func extractContract(text string) string {
	for _, pattern := range markedContractPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}

	if m := evmAddressPattern.FindString(text); m != "" {
		return m
	}

	return base58AddressPattern.FindString(text)
}

// extractSymbol runs the symbol cascade: cashtags, then marked token labels,
// then quoted or emphasized words near the head of the message
func extractSymbol(text string) string {
	if m := cashtagPattern.FindStringSubmatch(text); m != nil {
		if symbol := cleanSymbol(m[1]); symbol != "" {
			return symbol
		}
	}

	for _, pattern := range markedSymbolPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			if symbol := cleanSymbol(m[1]); symbol != "" {
				return symbol
			}
		}
	}

	// Quoted/bold/backtick candidates only near the top, where channel bots
	// put the token name
	head := text
	if lines := strings.SplitN(text, "\n", 3); len(lines) > 1 {
		head = lines[0] + "\n" + lines[1]
	}
	for _, pattern := range quotedSymbolPatterns {
		if m := pattern.FindStringSubmatch(head); m != nil {
			if symbol := cleanSymbol(m[1]); symbol != "" {
				return symbol
			}
		}
	}

	return ""
}

// cleanSymbol normalizes a candidate and drops common words and addresses
func cleanSymbol(candidate string) string {
	symbol := strings.ToUpper(strings.TrimSpace(candidate))
	if len(symbol) < 2 {
		return ""
	}
	if commonWords[symbol] {
		return ""
	}
	// "$250K" is a price tag, not a cashtag
	if numericLikePattern.MatchString(symbol) {
		return ""
	}
	// An address captured by a symbol pattern is not a symbol
	if evmAddressPattern.MatchString(candidate) || len(candidate) > 20 {
		return ""
	}
	return symbol
}

// extractWebsite returns the first URL that is not a social link, a known
// aggregator, or an explorer
func extractWebsite(text string, signal *types.PromotionSignal) string {
	for _, raw := range websiteURLPattern.FindAllString(text, -1) {
		lower := strings.ToLower(raw)
		if strings.Contains(lower, "t.me/") ||
			strings.Contains(lower, "twitter.com") ||
			strings.Contains(lower, "x.com") {
			continue
		}
		if strings.Contains(lower, "gmgn.ai") ||
			strings.Contains(lower, "dexscreener.com") ||
			strings.Contains(lower, "geckoterminal.com") {
			continue
		}
		if isExplorerURL(lower) {
			continue
		}
		return raw
	}
	return ""
}

func isExplorerURL(lower string) bool {
	for domain := range explorerDomains {
		if strings.Contains(lower, domain) {
			return true
		}
	}
	return false
}
