package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/token-pulse/internal/errors"
	"github.com/token-pulse/internal/types"
)

const dexPairsBody = `[
  {
    "chainId": "bsc",
    "pairAddress": "0xpair1",
    "url": "https://dexscreener.com/bsc/0xpair1",
    "priceUsd": "0.000123",
    "txns": {"h1": {"buys": 40, "sells": 12}},
    "volume": {"h1": 52000.5},
    "liquidity": {"usd": 81000},
    "marketCap": 250000,
    "info": {"websites": [{"url": "https://example.org"}, {"url": ""}]}
  },
  {
    "chainId": "bsc",
    "pairAddress": "0xpair2",
    "url": "https://dexscreener.com/bsc/0xpair2",
    "priceUsd": "not-a-number",
    "txns": {"h1": {"buys": 3, "sells": 1}},
    "volume": {"h1": 900},
    "liquidity": {"usd": 4000},
    "marketCap": 0,
    "fdv": 310000
  }
]`

func newDexTestClient(baseURL string) *DexScreenerClient {
	return NewDexScreenerClient(&DexScreenerConfig{
		BaseURL:           baseURL,
		RequestsPerMinute: 6000,
		Timeout:           2 * time.Second,
	})
}

func TestFetchPoolsParsesPairs(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(dexPairsBody))
	}))
	defer server.Close()

	client := newDexTestClient(server.URL)
	pools, err := client.FetchPools(context.Background(), types.ChainBSC, "0xcontract")
	require.NoError(t, err)
	require.Len(t, pools, 2)

	assert.Equal(t, "/token-pairs/v1/bsc/0xcontract", gotPath)

	first := pools[0]
	assert.Equal(t, 250000.0, first.MarketCap)
	assert.Equal(t, 81000.0, first.LiquidityUSD)
	assert.Equal(t, 0.000123, first.PriceUSD)
	assert.Equal(t, 40, first.Buys1h)
	assert.Equal(t, 12, first.Sells1h)
	assert.Equal(t, 52000.5, first.Volume1hUSD)
	assert.Equal(t, "https://dexscreener.com/bsc/0xpair1", first.PairURL)
	assert.Equal(t, []string{"https://example.org"}, first.WebsiteLinks)

	// marketCap omitted, falls back to fully diluted value
	second := pools[1]
	assert.Equal(t, 310000.0, second.MarketCap)
	// unparseable price stays zero
	assert.Equal(t, 0.0, second.PriceUSD)
	assert.Empty(t, second.WebsiteLinks)
}

func TestFetchPoolsEmptyResultIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newDexTestClient(server.URL)
	_, err := client.FetchPools(context.Background(), types.ChainETH, "0xgone")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundUpstream(err))
}

func TestFetchPoolsStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"not found", http.StatusNotFound, apperrors.IsNotFoundUpstream},
		{"rate limited", http.StatusTooManyRequests, apperrors.IsRateLimited},
		{"server error", http.StatusInternalServerError, apperrors.IsRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newDexTestClient(server.URL)
			_, err := client.FetchPools(context.Background(), types.ChainSOL, "mint111")
			require.Error(t, err)
			assert.True(t, tt.check(err))
		})
	}
}

func TestFetchPoolsUnmappedChain(t *testing.T) {
	client := newDexTestClient("http://unused")
	_, err := client.FetchPools(context.Background(), types.Chain("DOGECOIN"), "0xcontract")
	require.Error(t, err)
}
