package storage

import (
	"context"
	"fmt"

	apperrors "github.com/token-pulse/internal/errors"
	"github.com/token-pulse/internal/types"
)

// MentionRepository handles mention data access
type MentionRepository struct {
	db *PostgresDB
}

// NewMentionRepository creates a new mention repository
func NewMentionRepository(db *PostgresDB) *MentionRepository {
	return &MentionRepository{db: db}
}

// InsertMentionIfAbsent records a mention keyed by (chain, contract,
// channel_id, message_id). Returns false when the same message already
// mentioned the token, making replays idempotent.
func (r *MentionRepository) InsertMentionIfAbsent(ctx context.Context, mention *types.Mention) (bool, error) {
	query := `
		INSERT INTO mentions (
			chain, contract, channel_id, message_id, token_symbol,
			market_cap_at_mention, mention_time
		)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		ON CONFLICT (chain, contract, channel_id, message_id) DO NOTHING
	`

	tag, err := r.db.Pool().Exec(ctx, query,
		mention.Chain, mention.Contract, mention.ChannelID, mention.MessageID,
		mention.TokenSymbol, mention.MarketCapAtMention, mention.MentionTime,
	)
	if err != nil {
		if isContention(err) {
			return false, apperrors.NewStorageContentionError("insert mention", err)
		}
		return false, fmt.Errorf("failed to insert mention: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// CountDistinctMentions counts mentions for a token across all channels
func (r *MentionRepository) CountDistinctMentions(ctx context.Context, key types.TokenKey) (int, error) {
	query := `SELECT COUNT(*) FROM mentions WHERE chain = $1 AND contract = $2`

	var count int
	err := r.db.Pool().QueryRow(ctx, query, key.Chain, key.Contract).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count mentions: %w", err)
	}

	return count, nil
}

// ListDistinctChannels returns the channels that have mentioned a token
func (r *MentionRepository) ListDistinctChannels(ctx context.Context, key types.TokenKey) ([]int64, error) {
	query := `SELECT DISTINCT channel_id FROM mentions WHERE chain = $1 AND contract = $2`

	rows, err := r.db.Pool().Query(ctx, query, key.Chain, key.Contract)
	if err != nil {
		return nil, fmt.Errorf("failed to list mention channels: %w", err)
	}
	defer rows.Close()

	var channels []int64
	for rows.Next() {
		var channelID int64
		if err := rows.Scan(&channelID); err != nil {
			return nil, fmt.Errorf("failed to scan channel id: %w", err)
		}
		channels = append(channels, channelID)
	}

	return channels, nil
}

// ListMentions retrieves the most recent mentions of a token
func (r *MentionRepository) ListMentions(ctx context.Context, key types.TokenKey, limit int) ([]types.Mention, error) {
	query := `
		SELECT chain, contract, channel_id, message_id,
			COALESCE(token_symbol, ''), market_cap_at_mention, mention_time
		FROM mentions
		WHERE chain = $1 AND contract = $2
		ORDER BY mention_time DESC
		LIMIT $3
	`

	rows, err := r.db.Pool().Query(ctx, query, key.Chain, key.Contract, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentions: %w", err)
	}
	defer rows.Close()

	var mentions []types.Mention
	for rows.Next() {
		var m types.Mention
		err := rows.Scan(&m.Chain, &m.Contract, &m.ChannelID, &m.MessageID,
			&m.TokenSymbol, &m.MarketCapAtMention, &m.MentionTime)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mention: %w", err)
		}
		mentions = append(mentions, m)
	}

	return mentions, nil
}
