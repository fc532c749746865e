package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/token-pulse/internal/errors"
	"github.com/token-pulse/internal/types"
	"golang.org/x/time/rate"
)

// DexScreenerClient is the primary market data source. The token-pairs API
// allows 300 requests per minute; the limiter keeps us under that budget
// across all sweep workers sharing the client.
type DexScreenerClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// DexScreenerConfig holds configuration for the DexScreener client
type DexScreenerConfig struct {
	BaseURL           string
	RequestsPerMinute int
	Timeout           time.Duration
}

// NewDexScreenerClient creates a new DexScreener API client
func NewDexScreenerClient(cfg *DexScreenerConfig) *DexScreenerClient {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 300
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &DexScreenerClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 5),
	}
}

// Name identifies the source in errors and reports
func (c *DexScreenerClient) Name() string {
	return "dexscreener"
}

// dexPair mirrors the token-pairs API response shape
type dexPair struct {
	ChainID     string `json:"chainId"`
	PairAddress string `json:"pairAddress"`
	URL         string `json:"url"`
	PriceUsd    string `json:"priceUsd"`
	Txns        struct {
		H1 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h1"`
	} `json:"txns"`
	Volume struct {
		H1 float64 `json:"h1"`
	} `json:"volume"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	MarketCap float64 `json:"marketCap"`
	FDV       float64 `json:"fdv"`
	Info      struct {
		Websites []struct {
			URL string `json:"url"`
		} `json:"websites"`
	} `json:"info"`
}

// FetchPools retrieves all pools for a token. An empty result from the API
// is reported as NotFoundUpstream so the caller can start the delisting path.
func (c *DexScreenerClient) FetchPools(ctx context.Context, chain types.Chain, contract string) ([]PoolSnapshot, error) {
	feedID := chain.MarketFeedID()
	if feedID == "" {
		return nil, errors.NewInvalidParameterError("chain", fmt.Sprintf("no market feed mapping for chain %s", chain))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.NewTransientFetchError(c.Name(), err)
	}

	url := fmt.Sprintf("%s/token-pairs/v1/%s/%s", c.baseURL, feedID, contract)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewInternalError("building dexscreener request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransientFetchError(c.Name(), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.NewRateLimitedError(c.Name())
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NewNotFoundUpstreamError(chain, contract)
	case resp.StatusCode >= 500:
		return nil, errors.NewTransientFetchError(c.Name(), fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, errors.NewInternalError(fmt.Sprintf("dexscreener returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransientFetchError(c.Name(), err)
	}

	var pairs []dexPair
	if err := json.Unmarshal(body, &pairs); err != nil {
		return nil, errors.NewInternalError("decoding dexscreener response", err)
	}

	if len(pairs) == 0 {
		return nil, errors.NewNotFoundUpstreamError(chain, contract)
	}

	pools := make([]PoolSnapshot, 0, len(pairs))
	for _, pair := range pairs {
		pool := PoolSnapshot{
			MarketCap:    pair.MarketCap,
			LiquidityUSD: pair.Liquidity.USD,
			Buys1h:       pair.Txns.H1.Buys,
			Sells1h:      pair.Txns.H1.Sells,
			Volume1hUSD:  pair.Volume.H1,
			PairURL:      pair.URL,
		}
		// Some pairs omit marketCap and only report fully diluted value
		if pool.MarketCap == 0 {
			pool.MarketCap = pair.FDV
		}
		if price, err := strconv.ParseFloat(pair.PriceUsd, 64); err == nil {
			pool.PriceUSD = price
		}
		for _, site := range pair.Info.Websites {
			if site.URL != "" {
				pool.WebsiteLinks = append(pool.WebsiteLinks, site.URL)
			}
		}
		pools = append(pools, pool)
	}

	return pools, nil
}
