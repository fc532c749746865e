package sweep

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/token-pulse/internal/config"
	apperrors "github.com/token-pulse/internal/errors"
	"github.com/token-pulse/internal/feed"
	"github.com/token-pulse/internal/market"
	"github.com/token-pulse/internal/storage"
	"github.com/token-pulse/internal/types"
)

// countingFeed serves a canned snapshot for every contract and tracks
// concurrency
type countingFeed struct {
	mu          sync.Mutex
	inFlight    int
	maxSeen     int
	calls       int
	perCall     time.Duration
	notListed   map[string]bool
	rateLimited map[string]bool
}

func (f *countingFeed) Name() string { return "counting" }

func (f *countingFeed) FetchPools(ctx context.Context, chain types.Chain, contract string) ([]feed.PoolSnapshot, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	notListed := f.notListed[contract]
	rateLimited := f.rateLimited[contract]
	f.mu.Unlock()

	if f.perCall > 0 {
		time.Sleep(f.perCall)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if rateLimited {
		return nil, apperrors.NewRateLimitedError("counting")
	}
	if notListed {
		return nil, apperrors.NewNotFoundUpstreamError(chain, contract)
	}
	return []feed.PoolSnapshot{{MarketCap: 1000, PriceUSD: 0.1}}, nil
}

func sweepConfig() config.SweepConfig {
	return config.SweepConfig{
		Interval:    time.Hour,
		Concurrency: 2,
		MinDelay:    time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		MaxErrors:   10,
	}
}

func seedTokens(t *testing.T, store *storage.MemoryStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		created, err := store.EnsureToken(context.Background(), &types.Token{
			Chain:    types.ChainBSC,
			Contract: fmt.Sprintf("0xtoken%02d", i),
		})
		require.NoError(t, err)
		require.True(t, created)
	}
}

func TestSweepReconcilesAllTokens(t *testing.T) {
	store := storage.NewMemoryStore()
	seedTokens(t, store, 6)

	f := &countingFeed{}
	updater := market.NewUpdater(store, f, nil, nil)
	controller := NewController(store, updater, sweepConfig())

	report, err := controller.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, report.Total)
	assert.Equal(t, 6, report.Reconciled)
	assert.Zero(t, report.Failed)
	assert.Empty(t, report.Errors)
	assert.False(t, report.StartedAt.IsZero())
}

func TestSweepRespectsConcurrencyBound(t *testing.T) {
	store := storage.NewMemoryStore()
	seedTokens(t, store, 8)

	f := &countingFeed{perCall: 10 * time.Millisecond}
	updater := market.NewUpdater(store, f, nil, nil)
	controller := NewController(store, updater, sweepConfig())

	_, err := controller.Run(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, f.maxSeen, 2)
}

func TestSweepCountsDelistedAndFailed(t *testing.T) {
	store := storage.NewMemoryStore()
	seedTokens(t, store, 4)

	f := &countingFeed{
		notListed:   map[string]bool{"0xtoken01": true},
		rateLimited: map[string]bool{"0xtoken02": true},
	}
	updater := market.NewUpdater(store, f, nil, nil)
	controller := NewController(store, updater, sweepConfig())

	report, err := controller.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Reconciled)
	assert.Equal(t, 1, report.NotFound)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "0xtoken02", report.Errors[0].Contract)

	// The delisted token is gone, the failed one survives
	gone, _ := store.GetToken(context.Background(), types.TokenKey{Chain: types.ChainBSC, Contract: "0xtoken01"})
	assert.Nil(t, gone)
	kept, _ := store.GetToken(context.Background(), types.TokenKey{Chain: types.ChainBSC, Contract: "0xtoken02"})
	assert.NotNil(t, kept)
}

func TestSweepErrorListIsBounded(t *testing.T) {
	store := storage.NewMemoryStore()
	seedTokens(t, store, 6)

	rateLimited := make(map[string]bool)
	for i := 0; i < 6; i++ {
		rateLimited[fmt.Sprintf("0xtoken%02d", i)] = true
	}
	f := &countingFeed{rateLimited: rateLimited}

	cfg := sweepConfig()
	cfg.MaxErrors = 2
	updater := market.NewUpdater(store, f, nil, nil)
	controller := NewController(store, updater, cfg)

	report, err := controller.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, report.Failed)
	assert.Len(t, report.Errors, 2)
}

func TestSweepLimit(t *testing.T) {
	store := storage.NewMemoryStore()
	seedTokens(t, store, 5)

	f := &countingFeed{}
	cfg := sweepConfig()
	cfg.Limit = 2
	updater := market.NewUpdater(store, f, nil, nil)
	controller := NewController(store, updater, cfg)

	report, err := controller.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Reconciled)
}

func TestSweepCancellation(t *testing.T) {
	store := storage.NewMemoryStore()
	seedTokens(t, store, 50)

	f := &countingFeed{perCall: 20 * time.Millisecond}
	updater := market.NewUpdater(store, f, nil, nil)
	controller := NewController(store, updater, sweepConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	report, err := controller.Run(ctx)
	require.NoError(t, err)
	// The sweep stopped early; whatever completed is reported
	assert.Less(t, report.Reconciled+report.NotFound+report.Failed, 50)
}

func TestSweepEmptyPopulation(t *testing.T) {
	store := storage.NewMemoryStore()
	f := &countingFeed{}
	updater := market.NewUpdater(store, f, nil, nil)
	controller := NewController(store, updater, sweepConfig())

	report, err := controller.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Zero(t, f.calls)
}

func TestPacerWidensAndDecays(t *testing.T) {
	p := newPacer(time.Millisecond, 2*time.Millisecond)
	assert.Equal(t, 1, p.Factor())

	p.RecordRateLimit()
	assert.Equal(t, 2, p.Factor())
	p.RecordRateLimit()
	p.RecordRateLimit()
	assert.Equal(t, 8, p.Factor())

	// Capped
	p.RecordRateLimit()
	assert.Equal(t, 8, p.Factor())

	p.RecordSuccess()
	assert.Equal(t, 4, p.Factor())
	p.RecordSuccess()
	p.RecordSuccess()
	p.RecordSuccess()
	assert.Equal(t, 1, p.Factor())
}

func TestPacerWaitHonorsCancellation(t *testing.T) {
	p := newPacer(time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Wait(ctx)
	assert.Error(t, err)
}
