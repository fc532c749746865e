package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/token-pulse/internal/types"
)

func memTestKey(contract string) types.TokenKey {
	return types.TokenKey{Chain: types.ChainETH, Contract: contract}
}

func TestMemoryStoreEnsureTokenIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := testContext(t)

	cap := 250000.0
	created, err := store.EnsureToken(ctx, &types.Token{
		Chain:          types.ChainETH,
		Contract:       "0xabc",
		Symbol:         "MOON",
		FirstMarketCap: &cap,
	})
	require.NoError(t, err)
	assert.True(t, created)

	// A second ensure with a different cap must not move first-seen values
	other := 900000.0
	created, err = store.EnsureToken(ctx, &types.Token{
		Chain:          types.ChainETH,
		Contract:       "0xabc",
		Symbol:         "MOON2",
		FirstMarketCap: &other,
	})
	require.NoError(t, err)
	assert.False(t, created)

	token, err := store.GetToken(ctx, memTestKey("0xabc"))
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "MOON", token.Symbol)
	require.NotNil(t, token.FirstMarketCap)
	assert.Equal(t, 250000.0, *token.FirstMarketCap)
}

func TestMemoryStoreMarketSnapshotShift(t *testing.T) {
	store := NewMemoryStore()
	ctx := testContext(t)
	key := memTestKey("0xabc")

	_, err := store.EnsureToken(ctx, &types.Token{Chain: key.Chain, Contract: key.Contract})
	require.NoError(t, err)

	require.NoError(t, store.ApplyMarketSnapshot(ctx, key, &TokenMarketUpdate{
		MarketCap: 100000,
		Price:     0.01,
	}))
	require.NoError(t, store.ApplyMarketSnapshot(ctx, key, &TokenMarketUpdate{
		MarketCap: 140000,
		Price:     0.014,
	}))

	token, err := store.GetToken(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, token)

	// Current cap moved, the previous one shifted into the 1h slot
	require.NotNil(t, token.MarketCap)
	assert.Equal(t, 140000.0, *token.MarketCap)
	require.NotNil(t, token.MarketCap1h)
	assert.Equal(t, 100000.0, *token.MarketCap1h)

	// First-seen values hold the first snapshot
	require.NotNil(t, token.FirstMarketCap)
	assert.Equal(t, 100000.0, *token.FirstMarketCap)
	require.NotNil(t, token.FirstPrice)
	assert.Equal(t, 0.01, *token.FirstPrice)
}

func TestMemoryStoreMentionDedup(t *testing.T) {
	store := NewMemoryStore()
	ctx := testContext(t)
	key := memTestKey("0xabc")

	_, err := store.EnsureToken(ctx, &types.Token{Chain: key.Chain, Contract: key.Contract})
	require.NoError(t, err)

	mention := &types.Mention{
		Chain:       key.Chain,
		Contract:    key.Contract,
		ChannelID:   100,
		MessageID:   1,
		MentionTime: time.Now(),
	}
	inserted, err := store.InsertMentionIfAbsent(ctx, mention)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.InsertMentionIfAbsent(ctx, mention)
	require.NoError(t, err)
	assert.False(t, inserted)

	count, err := store.CountDistinctMentions(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryStoreDeleteTokenCascades(t *testing.T) {
	store := NewMemoryStore()
	ctx := testContext(t)
	key := memTestKey("0xabc")

	_, err := store.EnsureToken(ctx, &types.Token{Chain: key.Chain, Contract: key.Contract})
	require.NoError(t, err)
	_, err = store.InsertMentionIfAbsent(ctx, &types.Mention{
		Chain: key.Chain, Contract: key.Contract, ChannelID: 100, MessageID: 1, MentionTime: time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteToken(ctx, key))

	token, err := store.GetToken(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, token)

	count, err := store.CountDistinctMentions(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryStoreFindTokenBySymbolAmbiguous(t *testing.T) {
	store := NewMemoryStore()
	ctx := testContext(t)

	_, err := store.EnsureToken(ctx, &types.Token{Chain: types.ChainETH, Contract: "0xaaa", Symbol: "MOON"})
	require.NoError(t, err)

	token, err := store.FindTokenBySymbol(ctx, types.ChainETH, "moon")
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "0xaaa", token.Contract)

	// A second token with the same symbol makes the lookup ambiguous
	_, err = store.EnsureToken(ctx, &types.Token{Chain: types.ChainETH, Contract: "0xbbb", Symbol: "MOON"})
	require.NoError(t, err)

	token, err = store.FindTokenBySymbol(ctx, types.ChainETH, "MOON")
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestMemoryStoreListTokenKeysByActivity(t *testing.T) {
	store := NewMemoryStore()
	ctx := testContext(t)

	for i, contract := range []string{"0xlow", "0xhigh", "0xmid"} {
		_, err := store.EnsureToken(ctx, &types.Token{Chain: types.ChainETH, Contract: contract})
		require.NoError(t, err)
		key := memTestKey(contract)
		require.NoError(t, store.UpdateTokenReach(ctx, key, 1, int64((i+1)*100)))
	}
	// 0xhigh gets the most reach: order should be high, mid, low
	require.NoError(t, store.UpdateTokenReach(ctx, memTestKey("0xhigh"), 3, 900))

	keys, err := store.ListTokenKeys(ctx, &TokenKeyFilter{OrderByActivity: true})
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.Equal(t, "0xhigh", keys[0].Contract)
	assert.Equal(t, "0xmid", keys[1].Contract)
	assert.Equal(t, "0xlow", keys[2].Contract)

	keys, err = store.ListTokenKeys(ctx, &TokenKeyFilter{OrderByActivity: true, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}
