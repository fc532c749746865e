package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/token-pulse/internal/types"
)

// TokenSnapshot is a point-in-time copy of a token row, appended after each
// market reconciliation. History lives next to the mention event stream; the
// Postgres row keeps only the current and previous-hour values.
type TokenSnapshot struct {
	Chain          types.Chain
	Contract       string
	TokenSymbol    string
	MarketCap      float64
	Price          float64
	Liquidity      float64
	Volume1h       float64
	Buys1h         int32
	Sells1h        int32
	HoldersCount   int32
	SpreadCount    int32
	CommunityReach int64
	SnapshotTime   time.Time
}

// SnapshotFromToken builds a history snapshot from a token row
func SnapshotFromToken(token *types.Token, at time.Time) *TokenSnapshot {
	snap := &TokenSnapshot{
		Chain:          token.Chain,
		Contract:       token.Contract,
		TokenSymbol:    token.Symbol,
		SpreadCount:    int32(token.SpreadCount), // #nosec G115 - bounded by mention volume
		CommunityReach: token.CommunityReach,
		SnapshotTime:   at,
	}
	if token.MarketCap != nil {
		snap.MarketCap = *token.MarketCap
	}
	if token.Price != nil {
		snap.Price = *token.Price
	}
	if token.Liquidity != nil {
		snap.Liquidity = *token.Liquidity
	}
	if token.Volume1h != nil {
		snap.Volume1h = *token.Volume1h
	}
	if token.Buys1h != nil {
		snap.Buys1h = int32(*token.Buys1h) // #nosec G115 - hourly trade counts
	}
	if token.Sells1h != nil {
		snap.Sells1h = int32(*token.Sells1h) // #nosec G115 - hourly trade counts
	}
	if token.HoldersCount != nil {
		snap.HoldersCount = int32(*token.HoldersCount) // #nosec G115 - holder counts
	}
	return snap
}

// TokenSnapshotRepository appends token history snapshots to ClickHouse
type TokenSnapshotRepository struct {
	db *ClickHouseDB
}

// NewTokenSnapshotRepository creates a new token snapshot repository
func NewTokenSnapshotRepository(db *ClickHouseDB) *TokenSnapshotRepository {
	return &TokenSnapshotRepository{db: db}
}

// BatchInsert appends multiple snapshots
func (r *TokenSnapshotRepository) BatchInsert(ctx context.Context, snaps []*TokenSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO token_snapshots (
			chain, contract, token_symbol, market_cap, price, liquidity,
			volume_1h, buys_1h, sells_1h, holders_count, spread_count,
			community_reach, snapshot_time
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, snap := range snaps {
		err = batch.Append(
			string(snap.Chain),
			snap.Contract,
			snap.TokenSymbol,
			snap.MarketCap,
			snap.Price,
			snap.Liquidity,
			snap.Volume1h,
			snap.Buys1h,
			snap.Sells1h,
			snap.HoldersCount,
			snap.SpreadCount,
			snap.CommunityReach,
			snap.SnapshotTime,
		)
		if err != nil {
			return fmt.Errorf("failed to append snapshot to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send snapshot batch: %w", err)
	}

	return nil
}

// Insert appends a single snapshot
func (r *TokenSnapshotRepository) Insert(ctx context.Context, snap *TokenSnapshot) error {
	return r.BatchInsert(ctx, []*TokenSnapshot{snap})
}

// History returns a token's snapshots since a point in time, oldest first
func (r *TokenSnapshotRepository) History(ctx context.Context, key types.TokenKey, since time.Time) ([]*TokenSnapshot, error) {
	rows, err := r.db.Conn().Query(ctx, `
		SELECT token_symbol, market_cap, price, liquidity, volume_1h,
		       buys_1h, sells_1h, holders_count, spread_count,
		       community_reach, snapshot_time
		FROM token_snapshots
		WHERE chain = ? AND contract = ? AND snapshot_time >= ?
		ORDER BY snapshot_time
	`, string(key.Chain), key.Contract, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query token history: %w", err)
	}
	defer rows.Close()

	var snaps []*TokenSnapshot
	for rows.Next() {
		snap := &TokenSnapshot{Chain: key.Chain, Contract: key.Contract}
		if err := rows.Scan(
			&snap.TokenSymbol, &snap.MarketCap, &snap.Price, &snap.Liquidity,
			&snap.Volume1h, &snap.Buys1h, &snap.Sells1h, &snap.HoldersCount,
			&snap.SpreadCount, &snap.CommunityReach, &snap.SnapshotTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan token snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}

	return snaps, nil
}
