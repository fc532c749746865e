package extract

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
	"github.com/token-pulse/internal/types"
)

// ChainFromAddress fingerprints an address format. EVM-shaped addresses
// resolve to the EVM_PARTIAL sentinel because the format alone cannot name
// the network; base58 addresses of Solana length resolve to SOL.
func ChainFromAddress(address string) types.Chain {
	if evmAddressPattern.MatchString(address) && len(address) == 42 {
		return types.ChainEVMPartial
	}
	if base58AddressPattern.MatchString(address) {
		return types.ChainSOL
	}
	return types.ChainUnknown
}

// ValidateAddress checks an address against its chain's format. A failed
// check returns a warning string rather than an error: recall matters more
// than precision at this layer, so malformed addresses are flagged, not
// rejected.
func ValidateAddress(chain types.Chain, address string) string {
	if address == "" {
		return ""
	}

	if chain.IsEVM() {
		if !common.IsHexAddress(address) {
			return fmt.Sprintf("address %q is not a valid EVM address", address)
		}
		return ""
	}

	if chain == types.ChainSOL {
		decoded, err := base58.Decode(address)
		if err != nil {
			return fmt.Sprintf("address %q is not valid base58: %v", address, err)
		}
		if len(decoded) != 32 {
			return fmt.Sprintf("address %q decodes to %d bytes, expected 32", address, len(decoded))
		}
		return ""
	}

	return ""
}

// GuessChain resolves the chain for a message when no hint was provided.
// Priority order: known feed/explorer URLs, native market-cap units, chain
// keywords, then the address format fingerprint. First match wins.
func GuessChain(text, contractAddress string) types.Chain {
	if chain := chainFromURLs(text); chain.IsResolved() {
		return chain
	}

	if m := capUnitChainPattern.FindStringSubmatch(text); m != nil {
		if chain, ok := capUnitChains[strings.ToUpper(m[2])]; ok {
			return chain
		}
	}

	// Pad so the word-boundary keywords match at string edges too
	lower := " " + strings.ToLower(text) + " "
	for _, chain := range chainKeywordOrder {
		for _, keyword := range chainKeywords[chain] {
			if strings.Contains(lower, keyword) {
				return chain
			}
		}
	}

	if contractAddress != "" {
		return ChainFromAddress(contractAddress)
	}

	return types.ChainUnknown
}

// ResolveChain collapses the non-persistable sentinels to concrete defaults:
// EVM-shaped addresses with no other context are assumed BSC, where most of
// the monitored promotions live, and anything still unknown falls back to ETH.
func ResolveChain(chain types.Chain) types.Chain {
	switch chain {
	case types.ChainEVMPartial:
		return types.ChainBSC
	case types.ChainUnknown, "":
		return types.ChainETH
	default:
		return chain
	}
}
