package feed

import (
	"context"
	"errors"

	"github.com/token-pulse/internal/circuitbreaker"
	apperrors "github.com/token-pulse/internal/errors"
	"github.com/token-pulse/internal/types"
)

// GuardedSource wraps a MarketDataSource with a circuit breaker. While the
// breaker is open, fetches fail fast with a retryable error so the sweep
// counts the token as failed and leaves its row untouched.
type GuardedSource struct {
	source  MarketDataSource
	breaker *circuitbreaker.Breaker
}

// NewGuardedSource wraps source with breaker
func NewGuardedSource(source MarketDataSource, breaker *circuitbreaker.Breaker) *GuardedSource {
	return &GuardedSource{source: source, breaker: breaker}
}

// Name identifies the underlying source
func (g *GuardedSource) Name() string {
	return g.source.Name()
}

// FetchPools delegates to the wrapped source under breaker protection.
// NotFoundUpstream is a valid answer, not an upstream failure, so it does
// not count against the breaker.
func (g *GuardedSource) FetchPools(ctx context.Context, chain types.Chain, contract string) ([]PoolSnapshot, error) {
	var (
		pools    []PoolSnapshot
		fetchErr error
	)
	err := g.breaker.Execute(ctx, func() error {
		pools, fetchErr = g.source.FetchPools(ctx, chain, contract)
		if fetchErr != nil && apperrors.IsNotFoundUpstream(fetchErr) {
			return nil
		}
		return fetchErr
	})
	if errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, circuitbreaker.ErrProbeLimit) {
		return nil, apperrors.NewTransientFetchError(g.source.Name(), err)
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	return pools, nil
}

var _ MarketDataSource = (*GuardedSource)(nil)
