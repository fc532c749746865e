// Package feed contains the external market data collaborators: the pool
// snapshot sources used for reconciliation and the chain-specific holder
// count source.
package feed

import (
	"context"

	"github.com/token-pulse/internal/types"
)

// PoolSnapshot is one liquidity venue's view of a token. A token can trade
// on several pools at once; the market updater aggregates across them.
type PoolSnapshot struct {
	MarketCap    float64  `json:"marketCap"`
	LiquidityUSD float64  `json:"liquidityUsd"`
	PriceUSD     float64  `json:"priceUsd"`
	Buys1h       int      `json:"buys1h"`
	Sells1h      int      `json:"sells1h"`
	Volume1hUSD  float64  `json:"volume1hUsd"`
	PairURL      string   `json:"pairUrl,omitempty"`
	WebsiteLinks []string `json:"websiteLinks,omitempty"`
}

// MarketDataSource fetches pool snapshots for a token. Implementations
// return a NotFoundUpstream categorized error when no source lists the
// token, and a TransientFetchError for network or rate-limit failures.
type MarketDataSource interface {
	Name() string
	FetchPools(ctx context.Context, chain types.Chain, contract string) ([]PoolSnapshot, error)
}

// HolderDataSource counts token holders for chains that expose it. Optional:
// a nil source simply leaves holder counts unset.
type HolderDataSource interface {
	Name() string
	CountHolders(ctx context.Context, contract string) (int, error)
}
