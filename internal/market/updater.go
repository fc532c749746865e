// Package market refreshes token rows from DEX market data feeds. Each
// token is reconciled under a per-key lock so at most one writer touches a
// row at a time, and the previous snapshot shifts into the 1h fields inside
// the storage layer.
package market

import (
	"context"
	"time"

	apperrors "github.com/token-pulse/internal/errors"
	"github.com/token-pulse/internal/feed"
	"github.com/token-pulse/internal/logging"
	"github.com/token-pulse/internal/retry"
	"github.com/token-pulse/internal/storage"
	"github.com/token-pulse/internal/types"
)

// Outcome classifies the result of reconciling one token
type Outcome string

const (
	// OutcomeReconciled means a fresh snapshot was applied
	OutcomeReconciled Outcome = "reconciled"
	// OutcomeNotFound means both feeds report the token gone and its row
	// was removed
	OutcomeNotFound Outcome = "not_found"
	// OutcomeFailed means the refresh could not complete; the row keeps
	// its previous snapshot
	OutcomeFailed Outcome = "failed"
)

// HistorySink receives a point-in-time token snapshot after each applied
// reconciliation. Failures are logged and never affect the outcome.
type HistorySink interface {
	Insert(ctx context.Context, snap *storage.TokenSnapshot) error
}

// Updater reconciles stored tokens against market data feeds
type Updater struct {
	store     storage.Store
	primary   feed.MarketDataSource
	secondary feed.MarketDataSource
	holders   feed.HolderDataSource
	history   HistorySink
	locks     *keyLock
}

// Option configures optional updater collaborators
type Option func(*Updater)

// WithHistorySink enables the token history snapshot stream
func WithHistorySink(sink HistorySink) Option {
	return func(u *Updater) {
		u.history = sink
	}
}

// NewUpdater creates a market updater. The secondary source re-verifies
// delistings before a token row is dropped; holders may be nil when no
// holder feed is configured.
func NewUpdater(store storage.Store, primary, secondary feed.MarketDataSource, holders feed.HolderDataSource, opts ...Option) *Updater {
	u := &Updater{
		store:     store,
		primary:   primary,
		secondary: secondary,
		holders:   holders,
		locks:     newKeyLock(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Reconcile refreshes one token from the feeds and applies the result
func (u *Updater) Reconcile(ctx context.Context, key types.TokenKey) (Outcome, error) {
	unlock := u.locks.Lock(key)
	defer unlock()

	logger := logging.FromContext(ctx).WithComponent("market").WithFields(map[string]interface{}{
		"chain":    key.Chain,
		"contract": key.Contract,
	})

	pools, err := u.fetchPools(ctx, u.primary, key)
	if err != nil {
		if apperrors.IsNotFoundUpstream(err) {
			return u.handleDelisting(ctx, key, logger)
		}
		return OutcomeFailed, err
	}

	return u.applyPools(ctx, key, pools, logger)
}

// fetchPools queries one feed with retries on transient failures
func (u *Updater) fetchPools(ctx context.Context, source feed.MarketDataSource, key types.TokenKey) ([]feed.PoolSnapshot, error) {
	var pools []feed.PoolSnapshot

	cfg := retry.DefaultRetryConfig()
	cfg.MaxAttempts = 3
	cfg.Retryable = func(err error) bool {
		return apperrors.IsRetryable(err) && !apperrors.IsRateLimited(err)
	}

	result := retry.WithExponentialBackoff(ctx, cfg, func(ctx context.Context, attempt int) error {
		var err error
		pools, err = source.FetchPools(ctx, key.Chain, key.Contract)
		return err
	})
	if !result.Success {
		return nil, result.LastError
	}

	return pools, nil
}

// handleDelisting double-checks an apparent delisting against the secondary
// feed. Only when both agree does the token row go away; the mentions
// foreign key cascades with it.
func (u *Updater) handleDelisting(ctx context.Context, key types.TokenKey, logger *logging.Logger) (Outcome, error) {
	if u.secondary != nil {
		pools, err := u.fetchPools(ctx, u.secondary, key)
		if err == nil && len(pools) > 0 {
			logger.WithField("source", u.secondary.Name()).Info("delisting contradicted by secondary feed")
			return u.applyPools(ctx, key, pools, logger)
		}
		if err != nil && !apperrors.IsNotFoundUpstream(err) {
			// Secondary unreachable; keep the row and try again next sweep
			return OutcomeFailed, err
		}
	}

	logger.Info("token delisted, removing")
	if err := u.store.DeleteToken(ctx, key); err != nil {
		return OutcomeFailed, err
	}

	return OutcomeNotFound, nil
}

func (u *Updater) applyPools(ctx context.Context, key types.TokenKey, pools []feed.PoolSnapshot, logger *logging.Logger) (Outcome, error) {
	update := aggregatePools(pools)
	if update == nil {
		return OutcomeFailed, apperrors.NewNotFoundUpstreamError(key.Chain, key.Contract)
	}

	if err := u.store.ApplyMarketSnapshot(ctx, key, update); err != nil {
		return OutcomeFailed, err
	}

	u.refreshHolders(ctx, key, logger)
	u.recordHistory(ctx, key, logger)

	logger.WithFields(map[string]interface{}{
		"market_cap": update.MarketCap,
		"pools":      len(pools),
	}).Debug("market snapshot applied")

	return OutcomeReconciled, nil
}

// recordHistory appends the freshly reconciled row to the history stream
func (u *Updater) recordHistory(ctx context.Context, key types.TokenKey, logger *logging.Logger) {
	if u.history == nil {
		return
	}

	token, err := u.store.GetToken(ctx, key)
	if err != nil || token == nil {
		logger.WithError(err).Warn("failed to read token for history snapshot")
		return
	}

	snap := storage.SnapshotFromToken(token, time.Now().UTC())
	if err := u.history.Insert(ctx, snap); err != nil {
		logger.WithError(err).Warn("failed to append token snapshot")
	}
}

// refreshHolders updates the holder count for chains with a holder feed.
// Holder data is supplementary; failures never fail the reconcile.
func (u *Updater) refreshHolders(ctx context.Context, key types.TokenKey, logger *logging.Logger) {
	if u.holders == nil || key.Chain != types.ChainSOL {
		return
	}

	count, err := u.holders.CountHolders(ctx, key.Contract)
	if err != nil {
		logger.WithError(err).WithField("source", u.holders.Name()).Warn("holder count refresh failed")
		return
	}

	if err := u.store.UpdateHoldersCount(ctx, key, count); err != nil {
		logger.WithError(err).Warn("failed to store holder count")
	}
}

// aggregatePools folds the per-pool snapshots into one token-level update:
// the deepest pool wins market cap and liquidity, the first priced pool
// wins price, and 1h trade activity sums across pools.
func aggregatePools(pools []feed.PoolSnapshot) *storage.TokenMarketUpdate {
	if len(pools) == 0 {
		return nil
	}

	update := &storage.TokenMarketUpdate{}
	priceSet := false

	for _, pool := range pools {
		if pool.MarketCap > update.MarketCap {
			update.MarketCap = pool.MarketCap
			update.DexScreenerURL = pool.PairURL
		}
		if pool.LiquidityUSD > update.Liquidity {
			update.Liquidity = pool.LiquidityUSD
		}
		if !priceSet && pool.PriceUSD > 0 {
			update.Price = pool.PriceUSD
			priceSet = true
		}
		update.Buys1h += pool.Buys1h
		update.Sells1h += pool.Sells1h
		update.Volume1h += pool.Volume1hUSD

		if update.WebsiteURL == "" && len(pool.WebsiteLinks) > 0 {
			update.WebsiteURL = pool.WebsiteLinks[0]
		}
	}

	return update
}
