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

// GeckoTerminalClient is the secondary market data source, used only to
// re-verify NotFound results from the primary before a token is deleted.
type GeckoTerminalClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGeckoTerminalClient creates a new GeckoTerminal API client
func NewGeckoTerminalClient(baseURL string, timeout time.Duration) *GeckoTerminalClient {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &GeckoTerminalClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		// Public API allows 30 calls per minute
		limiter: rate.NewLimiter(rate.Limit(0.5), 2),
	}
}

// Name identifies the source in errors and reports
func (c *GeckoTerminalClient) Name() string {
	return "geckoterminal"
}

// geckoNetworkIDs maps chains to GeckoTerminal network identifiers where
// they differ from the market feed IDs
var geckoNetworkIDs = map[types.Chain]string{
	types.ChainETH:   "eth",
	types.ChainAVAX:  "avax",
	types.ChainMATIC: "polygon_pos",
}

func (c *GeckoTerminalClient) networkID(chain types.Chain) string {
	if id, ok := geckoNetworkIDs[chain]; ok {
		return id
	}
	return chain.MarketFeedID()
}

type geckoPoolsResponse struct {
	Data []struct {
		Attributes struct {
			BaseTokenPriceUSD string `json:"base_token_price_usd"`
			ReserveInUSD      string `json:"reserve_in_usd"`
			MarketCapUSD      string `json:"market_cap_usd"`
			Transactions      struct {
				H1 struct {
					Buys  int `json:"buys"`
					Sells int `json:"sells"`
				} `json:"h1"`
			} `json:"transactions"`
			VolumeUSD struct {
				H1 string `json:"h1"`
			} `json:"volume_usd"`
		} `json:"attributes"`
	} `json:"data"`
}

// FetchPools retrieves pools from GeckoTerminal. Follows the same error
// contract as the primary source.
func (c *GeckoTerminalClient) FetchPools(ctx context.Context, chain types.Chain, contract string) ([]PoolSnapshot, error) {
	networkID := c.networkID(chain)
	if networkID == "" {
		return nil, errors.NewInvalidParameterError("chain", fmt.Sprintf("no network mapping for chain %s", chain))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.NewTransientFetchError(c.Name(), err)
	}

	url := fmt.Sprintf("%s/api/v2/networks/%s/tokens/%s/pools", c.baseURL, networkID, contract)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewInternalError("building geckoterminal request", err)
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
		return nil, errors.NewInternalError(fmt.Sprintf("geckoterminal returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransientFetchError(c.Name(), err)
	}

	var decoded geckoPoolsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, errors.NewInternalError("decoding geckoterminal response", err)
	}

	if len(decoded.Data) == 0 {
		return nil, errors.NewNotFoundUpstreamError(chain, contract)
	}

	pools := make([]PoolSnapshot, 0, len(decoded.Data))
	for _, item := range decoded.Data {
		attrs := item.Attributes
		pool := PoolSnapshot{
			Buys1h:  attrs.Transactions.H1.Buys,
			Sells1h: attrs.Transactions.H1.Sells,
		}
		pool.MarketCap = parseFloat(attrs.MarketCapUSD)
		pool.LiquidityUSD = parseFloat(attrs.ReserveInUSD)
		pool.PriceUSD = parseFloat(attrs.BaseTokenPriceUSD)
		pool.Volume1hUSD = parseFloat(attrs.VolumeUSD.H1)
		pools = append(pools, pool)
	}

	return pools, nil
}

func parseFloat(s string) float64 {
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return value
}
