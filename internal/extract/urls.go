package extract

import (
	"net/url"
	"strings"

	"github.com/token-pulse/internal/types"
)

// urlHit is a (chain, contract) pair lifted directly from a known URL
type urlHit struct {
	chain    types.Chain
	contract string
}

// extractFromURLs scans the message for DEX aggregator and block explorer
// URLs and lifts (chain, contract) pairs out of their paths. URL evidence
// outranks free-text regex evidence because the links are machine-generated.
func extractFromURLs(text string) *urlHit {
	for _, raw := range websiteURLPattern.FindAllString(text, -1) {
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
		segments := splitPath(parsed.Path)

		switch host {
		case "gmgn.ai":
			// gmgn.ai/{chain}/token/{address}
			if len(segments) >= 3 && strings.EqualFold(segments[1], "token") {
				if chain, ok := feedPathChains[strings.ToLower(segments[0])]; ok {
					return &urlHit{chain: chain, contract: stripQuery(segments[2])}
				}
			}
		case "dexscreener.com":
			// dexscreener.com/{chain}/{pairOrToken}
			if len(segments) >= 2 {
				if chain, ok := feedPathChains[strings.ToLower(segments[0])]; ok {
					if addr := stripQuery(segments[1]); looksLikeAddress(addr) {
						return &urlHit{chain: chain, contract: addr}
					}
				}
			}
		case "geckoterminal.com":
			// geckoterminal.com/{chain}/pools/{address}
			if len(segments) >= 3 && strings.EqualFold(segments[1], "pools") {
				if chain, ok := feedPathChains[strings.ToLower(segments[0])]; ok {
					return &urlHit{chain: chain, contract: stripQuery(segments[2])}
				}
			}
		default:
			// Block explorer token/address pages
			if chain, ok := explorerDomains[host]; ok && len(segments) >= 2 {
				marker := strings.ToLower(segments[0])
				if marker == "token" || marker == "address" || marker == "account" {
					if addr := stripQuery(segments[1]); looksLikeAddress(addr) {
						return &urlHit{chain: chain, contract: addr}
					}
				}
			}
		}
	}

	return nil
}

// chainFromURLs returns just the chain evidence from any known URL,
// including ones without an extractable contract
func chainFromURLs(text string) types.Chain {
	if hit := extractFromURLs(text); hit != nil {
		return hit.chain
	}

	for _, raw := range websiteURLPattern.FindAllString(text, -1) {
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
		if chain, ok := explorerDomains[host]; ok {
			return chain
		}
		if host == "gmgn.ai" || host == "dexscreener.com" || host == "geckoterminal.com" {
			segments := splitPath(parsed.Path)
			if len(segments) >= 1 {
				if chain, ok := feedPathChains[strings.ToLower(segments[0])]; ok {
					return chain
				}
			}
		}
	}

	return types.ChainUnknown
}

// splitPath keeps original casing: base58 contract segments are
// case-sensitive
func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func stripQuery(segment string) string {
	if i := strings.IndexAny(segment, "?#"); i >= 0 {
		return segment[:i]
	}
	return segment
}

func looksLikeAddress(s string) bool {
	return evmAddressPattern.MatchString(s) || base58AddressPattern.MatchString(s)
}
