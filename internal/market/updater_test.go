package market

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/token-pulse/internal/errors"
	"github.com/token-pulse/internal/feed"
	"github.com/token-pulse/internal/storage"
	"github.com/token-pulse/internal/types"
)

// fakeFeed serves canned responses per contract
type fakeFeed struct {
	mu    sync.Mutex
	name  string
	pools map[string][]feed.PoolSnapshot
	errs  map[string]error
	calls int
}

func newFakeFeed(name string) *fakeFeed {
	return &fakeFeed{
		name:  name,
		pools: make(map[string][]feed.PoolSnapshot),
		errs:  make(map[string]error),
	}
}

func (f *fakeFeed) Name() string { return f.name }

func (f *fakeFeed) FetchPools(ctx context.Context, chain types.Chain, contract string) ([]feed.PoolSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[contract]; ok {
		return nil, err
	}
	if pools, ok := f.pools[contract]; ok {
		return pools, nil
	}
	return nil, apperrors.NewNotFoundUpstreamError(chain, contract)
}

type fakeHolders struct {
	count int
	err   error
}

func (f *fakeHolders) Name() string { return "fake-holders" }

func (f *fakeHolders) CountHolders(ctx context.Context, contract string) (int, error) {
	return f.count, f.err
}

func seedToken(t *testing.T, store *storage.MemoryStore, key types.TokenKey, firstCap float64) {
	t.Helper()
	seed := &types.Token{Chain: key.Chain, Contract: key.Contract, Symbol: "TEST"}
	if firstCap > 0 {
		seed.FirstMarketCap = types.Float64Ptr(firstCap)
	}
	created, err := store.EnsureToken(context.Background(), seed)
	require.NoError(t, err)
	require.True(t, created)
}

func TestReconcileAppliesSnapshot(t *testing.T) {
	store := storage.NewMemoryStore()
	key := types.TokenKey{Chain: types.ChainBSC, Contract: "0xabc"}
	seedToken(t, store, key, 100_000)

	primary := newFakeFeed("primary")
	primary.pools[key.Contract] = []feed.PoolSnapshot{
		{MarketCap: 500_000, LiquidityUSD: 40_000, PriceUSD: 0.002, Buys1h: 10, Sells1h: 4, Volume1hUSD: 9_000, PairURL: "https://dexscreener.com/bsc/pair1"},
		{MarketCap: 300_000, LiquidityUSD: 80_000, PriceUSD: 0.0019, Buys1h: 5, Sells1h: 1, Volume1hUSD: 2_000},
	}

	updater := NewUpdater(store, primary, nil, nil)
	outcome, err := updater.Reconcile(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReconciled, outcome)

	token, err := store.GetToken(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, 500_000.0, *token.MarketCap)
	assert.Equal(t, 80_000.0, *token.Liquidity)
	assert.Equal(t, 0.002, *token.Price)
	assert.Equal(t, 15, *token.Buys1h)
	assert.Equal(t, 5, *token.Sells1h)
	assert.Equal(t, 11_000.0, *token.Volume1h)
	assert.Equal(t, "https://dexscreener.com/bsc/pair1", token.DexScreenerURL)
	assert.NotNil(t, token.LatestUpdate)
}

func TestReconcileShiftsPreviousSnapshot(t *testing.T) {
	store := storage.NewMemoryStore()
	key := types.TokenKey{Chain: types.ChainETH, Contract: "0xdef"}
	seedToken(t, store, key, 100_000)

	primary := newFakeFeed("primary")
	primary.pools[key.Contract] = []feed.PoolSnapshot{{MarketCap: 200_000, PriceUSD: 0.01}}

	updater := NewUpdater(store, primary, nil, nil)
	_, err := updater.Reconcile(context.Background(), key)
	require.NoError(t, err)

	primary.mu.Lock()
	primary.pools[key.Contract] = []feed.PoolSnapshot{{MarketCap: 350_000, PriceUSD: 0.015}}
	primary.mu.Unlock()

	_, err = updater.Reconcile(context.Background(), key)
	require.NoError(t, err)

	token, err := store.GetToken(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 350_000.0, *token.MarketCap)
	// Previous snapshot moved into the 1h field
	assert.Equal(t, 200_000.0, *token.MarketCap1h)
	// First-seen values never move
	assert.Equal(t, 100_000.0, *token.FirstMarketCap)
	assert.Equal(t, 0.01, *token.FirstPrice)
}

func TestReconcileDelistingRemovesToken(t *testing.T) {
	store := storage.NewMemoryStore()
	key := types.TokenKey{Chain: types.ChainSOL, Contract: "mint111"}
	seedToken(t, store, key, 0)

	_, err := store.InsertMentionIfAbsent(context.Background(), &types.Mention{
		Chain: key.Chain, Contract: key.Contract, ChannelID: 1, MessageID: 2, MentionTime: time.Now(),
	})
	require.NoError(t, err)

	primary := newFakeFeed("primary")
	secondary := newFakeFeed("secondary")

	updater := NewUpdater(store, primary, secondary, nil)
	outcome, err := updater.Reconcile(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, outcome)

	token, err := store.GetToken(context.Background(), key)
	require.NoError(t, err)
	assert.Nil(t, token)

	// Mentions went with the token
	count, err := store.CountDistinctMentions(context.Background(), key)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReconcileSecondaryContradictsDelisting(t *testing.T) {
	store := storage.NewMemoryStore()
	key := types.TokenKey{Chain: types.ChainETH, Contract: "0xfeed"}
	seedToken(t, store, key, 0)

	primary := newFakeFeed("primary")
	secondary := newFakeFeed("secondary")
	secondary.pools[key.Contract] = []feed.PoolSnapshot{{MarketCap: 77_000, PriceUSD: 0.5}}

	updater := NewUpdater(store, primary, secondary, nil)
	outcome, err := updater.Reconcile(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReconciled, outcome)

	token, err := store.GetToken(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, 77_000.0, *token.MarketCap)
}

func TestReconcileTransientFailureKeepsToken(t *testing.T) {
	store := storage.NewMemoryStore()
	key := types.TokenKey{Chain: types.ChainBSC, Contract: "0xflaky"}
	seedToken(t, store, key, 0)

	primary := newFakeFeed("primary")
	primary.errs[key.Contract] = apperrors.NewRateLimitedError("primary")

	updater := NewUpdater(store, primary, nil, nil)
	outcome, err := updater.Reconcile(context.Background(), key)
	assert.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	token, err := store.GetToken(context.Background(), key)
	require.NoError(t, err)
	assert.NotNil(t, token)
}

func TestReconcileRefreshesSolanaHolders(t *testing.T) {
	store := storage.NewMemoryStore()
	key := types.TokenKey{Chain: types.ChainSOL, Contract: "mint222"}
	seedToken(t, store, key, 0)

	primary := newFakeFeed("primary")
	primary.pools[key.Contract] = []feed.PoolSnapshot{{MarketCap: 10_000, PriceUSD: 0.001}}

	updater := NewUpdater(store, primary, nil, &fakeHolders{count: 4321})
	outcome, err := updater.Reconcile(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReconciled, outcome)

	token, err := store.GetToken(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, token.HoldersCount)
	assert.Equal(t, 4321, *token.HoldersCount)
}

type fakeHistorySink struct {
	mu    sync.Mutex
	snaps []*storage.TokenSnapshot
	err   error
}

func (f *fakeHistorySink) Insert(ctx context.Context, snap *storage.TokenSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.snaps = append(f.snaps, snap)
	return nil
}

func TestReconcileAppendsHistorySnapshot(t *testing.T) {
	store := storage.NewMemoryStore()
	key := types.TokenKey{Chain: types.ChainBSC, Contract: "0xhist"}
	seedToken(t, store, key, 0)

	primary := newFakeFeed("primary")
	primary.pools[key.Contract] = []feed.PoolSnapshot{{MarketCap: 42_000, PriceUSD: 0.003, LiquidityUSD: 9_000}}

	sink := &fakeHistorySink{}
	updater := NewUpdater(store, primary, nil, nil, WithHistorySink(sink))

	_, err := updater.Reconcile(context.Background(), key)
	require.NoError(t, err)

	primary.mu.Lock()
	primary.pools[key.Contract] = []feed.PoolSnapshot{{MarketCap: 55_000, PriceUSD: 0.004}}
	primary.mu.Unlock()

	_, err = updater.Reconcile(context.Background(), key)
	require.NoError(t, err)

	require.Len(t, sink.snaps, 2)
	assert.Equal(t, key.Chain, sink.snaps[0].Chain)
	assert.Equal(t, "TEST", sink.snaps[0].TokenSymbol)
	assert.Equal(t, 42_000.0, sink.snaps[0].MarketCap)
	assert.Equal(t, 55_000.0, sink.snaps[1].MarketCap)
	assert.False(t, sink.snaps[1].SnapshotTime.Before(sink.snaps[0].SnapshotTime))
}

func TestReconcileHistoryFailureDoesNotFail(t *testing.T) {
	store := storage.NewMemoryStore()
	key := types.TokenKey{Chain: types.ChainETH, Contract: "0xsink"}
	seedToken(t, store, key, 0)

	primary := newFakeFeed("primary")
	primary.pools[key.Contract] = []feed.PoolSnapshot{{MarketCap: 1_000, PriceUSD: 0.1}}

	sink := &fakeHistorySink{err: assert.AnError}
	updater := NewUpdater(store, primary, nil, nil, WithHistorySink(sink))

	outcome, err := updater.Reconcile(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReconciled, outcome)
}

func TestAggregatePools(t *testing.T) {
	assert.Nil(t, aggregatePools(nil))

	update := aggregatePools([]feed.PoolSnapshot{
		{MarketCap: 100, LiquidityUSD: 10, Buys1h: 1, Sells1h: 2, Volume1hUSD: 5},
		{MarketCap: 300, LiquidityUSD: 5, PriceUSD: 0.4, Buys1h: 3, Sells1h: 0, Volume1hUSD: 7, WebsiteLinks: []string{"https://a.example.com"}},
	})
	require.NotNil(t, update)
	assert.Equal(t, 300.0, update.MarketCap)
	assert.Equal(t, 10.0, update.Liquidity)
	assert.Equal(t, 0.4, update.Price)
	assert.Equal(t, 4, update.Buys1h)
	assert.Equal(t, 2, update.Sells1h)
	assert.Equal(t, 12.0, update.Volume1h)
	assert.Equal(t, "https://a.example.com", update.WebsiteURL)
}

func TestAggregatePoolsProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	poolGen := gen.Struct(
		reflect.TypeOf(feed.PoolSnapshot{}),
		map[string]gopter.Gen{
			"MarketCap":    gen.Float64Range(0, 1e9),
			"LiquidityUSD": gen.Float64Range(0, 1e8),
			"PriceUSD":     gen.Float64Range(0, 1e3),
			"Buys1h":       gen.IntRange(0, 1000),
			"Sells1h":      gen.IntRange(0, 1000),
			"Volume1hUSD":  gen.Float64Range(0, 1e7),
		},
	)

	properties.Property("market cap is the pool maximum", prop.ForAll(
		func(pools []feed.PoolSnapshot) bool {
			update := aggregatePools(pools)
			if len(pools) == 0 {
				return update == nil
			}
			max := 0.0
			for _, p := range pools {
				if p.MarketCap > max {
					max = p.MarketCap
				}
			}
			return update.MarketCap == max
		},
		gen.SliceOf(poolGen),
	))

	properties.Property("trade activity sums across pools", prop.ForAll(
		func(pools []feed.PoolSnapshot) bool {
			update := aggregatePools(pools)
			if len(pools) == 0 {
				return update == nil
			}
			buys, sells := 0, 0
			for _, p := range pools {
				buys += p.Buys1h
				sells += p.Sells1h
			}
			return update.Buys1h == buys && update.Sells1h == sells
		},
		gen.SliceOf(poolGen),
	))

	properties.TestingRun(t)
}

func TestKeyLockSerializesPerKey(t *testing.T) {
	locks := newKeyLock()
	key := types.TokenKey{Chain: types.ChainETH, Contract: "0x1"}

	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(key)
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
	// All entries released
	assert.Empty(t, locks.locks)
}

func TestKeyLockIndependentKeys(t *testing.T) {
	locks := newKeyLock()

	unlockA := locks.Lock(types.TokenKey{Chain: types.ChainETH, Contract: "0xa"})
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock(types.TokenKey{Chain: types.ChainETH, Contract: "0xb"})
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent key blocked")
	}
	unlockA()
}
