package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/token-pulse/internal/errors"
	"golang.org/x/time/rate"
)

// HeliusHolderClient counts Solana token holders through the Helius
// getTokenAccounts RPC. Results are paginated; a page reporting exactly the
// page-size limit means more pages may exist and pagination must continue,
// otherwise holder counts silently undercount at the boundary.
type HeliusHolderClient struct {
	rpcURL     string
	apiKey     string
	pageSize   int
	maxPages   int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// HeliusConfig holds configuration for the Helius holder client
type HeliusConfig struct {
	RPCURL   string
	APIKey   string
	PageSize int
	MaxPages int
	Timeout  time.Duration
}

// NewHeliusHolderClient creates a new Helius holder count client
func NewHeliusHolderClient(cfg *HeliusConfig) *HeliusHolderClient {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 10
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &HeliusHolderClient{
		rpcURL:     cfg.RPCURL,
		apiKey:     cfg.APIKey,
		pageSize:   pageSize,
		maxPages:   maxPages,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(10), 2),
	}
}

// Name identifies the source in errors and reports
func (c *HeliusHolderClient) Name() string {
	return "helius"
}

type tokenAccountsResult struct {
	TokenAccounts []struct {
		Owner string `json:"owner"`
	} `json:"token_accounts"`
}

type rpcResponse struct {
	Result *tokenAccountsResult `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CountHolders returns the number of distinct owners holding the token.
// Pages are fetched until a short page arrives or the page ceiling is hit.
func (c *HeliusHolderClient) CountHolders(ctx context.Context, contract string) (int, error) {
	owners := make(map[string]struct{})

	for page := 1; page <= c.maxPages; page++ {
		accounts, err := c.fetchPage(ctx, contract, page)
		if err != nil {
			return 0, err
		}

		for _, owner := range accounts {
			owners[owner] = struct{}{}
		}

		// A short page is the last page. A full page may not be: keep
		// paginating until the source proves it is done.
		if len(accounts) < c.pageSize {
			break
		}
	}

	return len(owners), nil
}

// fetchPage fetches one page of token accounts and returns the owners
func (c *HeliusHolderClient) fetchPage(ctx context.Context, contract string, page int) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.NewTransientFetchError(c.Name(), err)
	}

	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      "token-holders",
		"method":  "getTokenAccounts",
		"params": map[string]interface{}{
			"mint":  contract,
			"page":  page,
			"limit": c.pageSize,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewInternalError("encoding helius request", err)
	}

	url := c.rpcURL
	if c.apiKey != "" {
		url = fmt.Sprintf("%s?api-key=%s", c.rpcURL, c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewInternalError("building helius request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransientFetchError(c.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.NewRateLimitedError(c.Name())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewTransientFetchError(c.Name(), fmt.Errorf("status %d", resp.StatusCode))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransientFetchError(c.Name(), err)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, errors.NewInternalError("decoding helius response", err)
	}

	if decoded.Error != nil {
		return nil, errors.NewTransientFetchError(c.Name(), fmt.Errorf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message))
	}
	if decoded.Result == nil {
		return nil, errors.NewInternalError("helius response missing result", nil)
	}

	owners := make([]string, 0, len(decoded.Result.TokenAccounts))
	for _, account := range decoded.Result.TokenAccounts {
		owners = append(owners, account.Owner)
	}

	return owners, nil
}
