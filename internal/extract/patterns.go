package extract

import (
	"regexp"

	"github.com/token-pulse/internal/types"
)

// Pattern cascades are ordered from most-specific/marked to least-specific so
// the first match per field wins and false positives stay bounded.

var (
	// Contract address patterns, marked forms first
	markedContractPatterns = []*regexp.Regexp{
		regexp.MustCompile(`📝\s*[:：]?\s*([1-9A-HJ-NP-Za-km-z0-9]{32,50}|0x[0-9a-fA-F]{40})`),
		regexp.MustCompile(`(?i)合约\s*[:：]\s*([1-9A-HJ-NP-Za-km-z0-9]{32,50}|0x[0-9a-fA-F]{40})`),
		regexp.MustCompile(`(?i)contract\s*[:：]\s*([1-9A-HJ-NP-Za-km-z0-9]{32,50}|0x[0-9a-fA-F]{40})`),
		regexp.MustCompile(`(?i)\bCA\s*[:：]\s*([1-9A-HJ-NP-Za-km-z0-9]{32,50}|0x[0-9a-fA-F]{40})`),
	}

	evmAddressPattern    = regexp.MustCompile(`0x[0-9a-fA-F]{40}`)
	base58AddressPattern = regexp.MustCompile(`\b[1-9A-HJ-NP-Za-km-z]{32,44}\b`)

	// Token symbol patterns
	cashtagPattern       = regexp.MustCompile(`\$([A-Za-z0-9_]{1,20})\b`)
	markedSymbolPatterns = []*regexp.Regexp{
		regexp.MustCompile(`🪙\s*(?:Token|代币)?\s*[:：]?\s*([A-Za-z0-9_]{2,20})`),
		regexp.MustCompile(`(?i)\btoken\s*[:：]\s*([A-Za-z0-9_]{2,20})`),
		regexp.MustCompile(`(?i)代币\s*[:：]?\s*([A-Za-z0-9_]{2,20})`),
	}
	quotedSymbolPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\*\*([A-Za-z0-9_]{2,20})\*\*`),
		regexp.MustCompile("`([A-Za-z0-9_]{2,20})`"),
		regexp.MustCompile(`[""]([A-Za-z0-9_]{2,20})[""]`),
		regexp.MustCompile(`"([A-Za-z0-9_]{2,20})"`),
	}

	// Purely numeric candidates, optionally with a magnitude suffix
	numericLikePattern = regexp.MustCompile(`^[0-9][0-9.,]*[KMB]?$`)

	// Market cap fragment, first number+unit after a cap marker
	marketCapPattern = regexp.MustCompile(`(?i)(?:market\s*cap|市值|\bmc\b)\s*[:：]*\s*\$?\s*([\d.,]+\s*[KkMmBb]?)`)

	// Market cap denominated in a native unit implies the chain
	capUnitChainPattern = regexp.MustCompile(`(?i)([\d.,]+)\s*(BNB|ETH|SOL)\b`)

	// Social links
	telegramURLPattern = regexp.MustCompile(`https?://t\.me/[A-Za-z0-9_+/]+`)
	twitterURLPattern  = regexp.MustCompile(`https?://(?:www\.)?(?:twitter\.com|x\.com)/[A-Za-z0-9_/]+`)
	websiteURLPattern  = regexp.MustCompile(`https?://[A-Za-z0-9.-]+\.[A-Za-z]{2,}[^\s)]*`)
)

// commonWords are uppercase tokens that look like symbols but never are
var commonWords = map[string]bool{
	"NEW":      true,
	"TOKEN":    true,
	"CONTRACT": true,
	"ADDRESS":  true,
	"LINK":     true,
	"ALPHA":    true,
	"CA":       true,
	"MC":       true,
	"THE":      true,
	"AND":      true,
}

// chainKeywords maps free-text keywords to chains, checked in a fixed order
// so the more specific names win over two-letter abbreviations
var chainKeywordOrder = []types.Chain{
	types.ChainSOL, types.ChainETH, types.ChainBSC, types.ChainARB,
	types.ChainBASE, types.ChainAVAX, types.ChainMATIC, types.ChainOP,
}

var chainKeywords = map[types.Chain][]string{
	types.ChainSOL:   {"solana", "sol链", "索拉纳", " sol ", "#sol"},
	types.ChainETH:   {"ethereum", "以太坊", " eth ", "#eth", "erc20"},
	types.ChainBSC:   {"binance", "币安", " bsc ", "#bsc", " bnb ", "bep20"},
	types.ChainARB:   {"arbitrum", " arb ", "#arb"},
	types.ChainBASE:  {" base ", "#base", "base链"},
	types.ChainAVAX:  {"avalanche", " avax ", "#avax"},
	types.ChainMATIC: {"polygon", " matic ", "#matic"},
	types.ChainOP:    {"optimism", " op ", "#op"},
}

// explorerDomains maps block explorer hostnames to chains
var explorerDomains = map[string]types.Chain{
	"solscan.io":              types.ChainSOL,
	"etherscan.io":            types.ChainETH,
	"bscscan.com":             types.ChainBSC,
	"arbiscan.io":             types.ChainARB,
	"basescan.org":            types.ChainBASE,
	"snowtrace.io":            types.ChainAVAX,
	"polygonscan.com":         types.ChainMATIC,
	"optimistic.etherscan.io": types.ChainOP,
}

// feedPathChains maps chain path segments in DEX aggregator URLs to chains
var feedPathChains = map[string]types.Chain{
	"sol":         types.ChainSOL,
	"solana":      types.ChainSOL,
	"eth":         types.ChainETH,
	"ethereum":    types.ChainETH,
	"bsc":         types.ChainBSC,
	"arbitrum":    types.ChainARB,
	"base":        types.ChainBASE,
	"avalanche":   types.ChainAVAX,
	"avax":        types.ChainAVAX,
	"polygon":     types.ChainMATIC,
	"polygon_pos": types.ChainMATIC,
	"optimism":    types.ChainOP,
}

// capUnitChains maps native cap units to chains
var capUnitChains = map[string]types.Chain{
	"BNB": types.ChainBSC,
	"ETH": types.ChainETH,
	"SOL": types.ChainSOL,
}
