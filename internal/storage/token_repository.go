package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	apperrors "github.com/token-pulse/internal/errors"
	"github.com/token-pulse/internal/types"
)

// tokenColumns is the scan list shared by all token queries
const tokenColumns = `
	chain, contract, symbol, market_cap, market_cap_1h, first_market_cap,
	price, first_price, liquidity, volume_1h, buys_1h, sells_1h,
	holders_count, spread_count, community_reach, promotion_count,
	dexscreener_url, telegram_url, twitter_url, website_url,
	first_update, latest_update`

// TokenRepository handles token aggregate data access
type TokenRepository struct {
	db *PostgresDB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *PostgresDB) *TokenRepository {
	return &TokenRepository{db: db}
}

func scanToken(row pgx.Row) (*types.Token, error) {
	var t types.Token
	var symbol, dexURL, telegramURL, twitterURL, websiteURL *string
	err := row.Scan(
		&t.Chain, &t.Contract, &symbol, &t.MarketCap, &t.MarketCap1h,
		&t.FirstMarketCap, &t.Price, &t.FirstPrice, &t.Liquidity,
		&t.Volume1h, &t.Buys1h, &t.Sells1h, &t.HoldersCount,
		&t.SpreadCount, &t.CommunityReach, &t.PromotionCount,
		&dexURL, &telegramURL, &twitterURL, &websiteURL,
		&t.FirstUpdate, &t.LatestUpdate,
	)
	if err != nil {
		return nil, err
	}
	if symbol != nil {
		t.Symbol = *symbol
	}
	if dexURL != nil {
		t.DexScreenerURL = *dexURL
	}
	if telegramURL != nil {
		t.TelegramURL = *telegramURL
	}
	if twitterURL != nil {
		t.TwitterURL = *twitterURL
	}
	if websiteURL != nil {
		t.WebsiteURL = *websiteURL
	}
	return &t, nil
}

// EnsureToken inserts the token row if absent, seeding the write-once fields
// from the given values. Returns whether a new row was created. A concurrent
// insert for the same key loses the race cleanly via ON CONFLICT DO NOTHING.
func (r *TokenRepository) EnsureToken(ctx context.Context, seed *types.Token) (bool, error) {
	query := `
		INSERT INTO tokens (
			chain, contract, symbol, first_market_cap, market_cap, first_price,
			price, telegram_url, twitter_url, website_url, first_update
		)
		VALUES ($1, $2, NULLIF($3, ''), $4, $4, $5, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NOW())
		ON CONFLICT (chain, contract) DO NOTHING
	`

	tag, err := r.db.Pool().Exec(ctx, query,
		seed.Chain, seed.Contract, seed.Symbol,
		seed.FirstMarketCap, seed.FirstPrice,
		seed.TelegramURL, seed.TwitterURL, seed.WebsiteURL,
	)
	if err != nil {
		if isContention(err) {
			return false, apperrors.NewStorageContentionError("ensure token", err)
		}
		return false, fmt.Errorf("failed to ensure token: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// GetToken retrieves a token by its key, or nil when absent
func (r *TokenRepository) GetToken(ctx context.Context, key types.TokenKey) (*types.Token, error) {
	query := `SELECT` + tokenColumns + `FROM tokens WHERE chain = $1 AND contract = $2`

	token, err := scanToken(r.db.Pool().QueryRow(ctx, query, key.Chain, key.Contract))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return token, nil
}

// FindTokenBySymbol retrieves a token by symbol and chain when exactly one
// matches; ambiguous symbols return nil so best-effort updates stay safe
func (r *TokenRepository) FindTokenBySymbol(ctx context.Context, chain types.Chain, symbol string) (*types.Token, error) {
	query := `
		SELECT` + tokenColumns + `
		FROM tokens
		WHERE chain = $1 AND upper(symbol) = upper($2)
	`

	rows, err := r.db.Pool().Query(ctx, query, chain, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to find token by symbol: %w", err)
	}
	defer rows.Close()

	var matches []*types.Token
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		matches = append(matches, token)
		if len(matches) > 1 {
			break
		}
	}

	if len(matches) != 1 {
		return nil, nil
	}
	return matches[0], nil
}

// ListTokens retrieves tokens ordered by most recently updated
func (r *TokenRepository) ListTokens(ctx context.Context, limit, offset int) ([]types.Token, error) {
	query := `
		SELECT` + tokenColumns + `
		FROM tokens
		ORDER BY latest_update DESC NULLS LAST, first_update DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool().Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []types.Token
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, *token)
	}

	return tokens, nil
}

// ListTokenKeys retrieves token keys for a sweep. With OrderByActivity the
// highest-reach tokens come first so they are refreshed earliest.
func (r *TokenRepository) ListTokenKeys(ctx context.Context, filter *TokenKeyFilter) ([]types.TokenKey, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT chain, contract FROM tokens`)
	args := []interface{}{}

	if filter != nil && filter.Chain != nil {
		args = append(args, *filter.Chain)
		sb.WriteString(fmt.Sprintf(" WHERE chain = $%d", len(args)))
	}

	if filter != nil && filter.OrderByActivity {
		sb.WriteString(" ORDER BY community_reach DESC, promotion_count DESC")
	}

	if filter != nil && filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	rows, err := r.db.Pool().Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list token keys: %w", err)
	}
	defer rows.Close()

	var keys []types.TokenKey
	for rows.Next() {
		var key types.TokenKey
		if err := rows.Scan(&key.Chain, &key.Contract); err != nil {
			return nil, fmt.Errorf("failed to scan token key: %w", err)
		}
		keys = append(keys, key)
	}

	return keys, nil
}

// ApplyMarketSnapshot merges a market snapshot into the token row. The shift
// of the previous market_cap into market_cap_1h and the write-once guard on
// first_market_cap/first_price happen inside the statement, never from a
// stale read.
func (r *TokenRepository) ApplyMarketSnapshot(ctx context.Context, key types.TokenKey, update *TokenMarketUpdate) error {
	query := `
		UPDATE tokens SET
			market_cap_1h = market_cap,
			market_cap = $3,
			first_market_cap = COALESCE(first_market_cap, $3),
			price = $4,
			first_price = COALESCE(first_price, $4),
			liquidity = $5,
			volume_1h = $6,
			buys_1h = $7,
			sells_1h = $8,
			dexscreener_url = COALESCE(NULLIF($9, ''), dexscreener_url),
			website_url = COALESCE(NULLIF($10, ''), website_url),
			latest_update = NOW()
		WHERE chain = $1 AND contract = $2
	`

	tag, err := r.db.Pool().Exec(ctx, query,
		key.Chain, key.Contract,
		update.MarketCap, update.Price, update.Liquidity, update.Volume1h,
		update.Buys1h, update.Sells1h,
		update.DexScreenerURL, update.WebsiteURL,
	)
	if err != nil {
		if isContention(err) {
			return apperrors.NewStorageContentionError("apply market snapshot", err)
		}
		return fmt.Errorf("failed to apply market snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("token", fmt.Sprintf("%s/%s", key.Chain, key.Contract))
	}

	return nil
}

// UpdateTokenReach writes the recomputed reach aggregates and bumps the
// promotion counter. Touches only the ledger-owned fields.
func (r *TokenRepository) UpdateTokenReach(ctx context.Context, key types.TokenKey, spreadCount int, communityReach int64) error {
	query := `
		UPDATE tokens SET
			spread_count = $3,
			community_reach = $4
		WHERE chain = $1 AND contract = $2
	`

	_, err := r.db.Pool().Exec(ctx, query, key.Chain, key.Contract, spreadCount, communityReach)
	if err != nil {
		if isContention(err) {
			return apperrors.NewStorageContentionError("update token reach", err)
		}
		return fmt.Errorf("failed to update token reach: %w", err)
	}

	return nil
}

// IncrementPromotionCount bumps the monotonic promotion counter
func (r *TokenRepository) IncrementPromotionCount(ctx context.Context, key types.TokenKey) error {
	query := `UPDATE tokens SET promotion_count = promotion_count + 1 WHERE chain = $1 AND contract = $2`

	_, err := r.db.Pool().Exec(ctx, query, key.Chain, key.Contract)
	if err != nil {
		return fmt.Errorf("failed to increment promotion count: %w", err)
	}

	return nil
}

// UpdateHoldersCount writes the latest holder count
func (r *TokenRepository) UpdateHoldersCount(ctx context.Context, key types.TokenKey, count int) error {
	query := `UPDATE tokens SET holders_count = $3 WHERE chain = $1 AND contract = $2`

	_, err := r.db.Pool().Exec(ctx, query, key.Chain, key.Contract, count)
	if err != nil {
		return fmt.Errorf("failed to update holders count: %w", err)
	}

	return nil
}

// DeleteToken removes a token row; the mentions foreign key cascades
func (r *TokenRepository) DeleteToken(ctx context.Context, key types.TokenKey) error {
	query := `DELETE FROM tokens WHERE chain = $1 AND contract = $2`

	_, err := r.db.Pool().Exec(ctx, query, key.Chain, key.Contract)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	return nil
}
