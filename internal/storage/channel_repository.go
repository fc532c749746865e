package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/token-pulse/internal/types"
)

// ChannelRepository handles channel metadata access
type ChannelRepository struct {
	db *PostgresDB
}

// NewChannelRepository creates a new channel repository
func NewChannelRepository(db *PostgresDB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// GetChannel retrieves channel metadata, or nil when unknown
func (r *ChannelRepository) GetChannel(ctx context.Context, channelID int64) (*types.Channel, error) {
	query := `
		SELECT channel_id, COALESCE(title, ''), member_count, is_active
		FROM channels
		WHERE channel_id = $1
	`

	var ch types.Channel
	err := r.db.Pool().QueryRow(ctx, query, channelID).Scan(
		&ch.ChannelID, &ch.Title, &ch.MemberCount, &ch.IsActive,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	return &ch, nil
}

// UpsertChannel stores or refreshes channel metadata
func (r *ChannelRepository) UpsertChannel(ctx context.Context, ch *types.Channel) error {
	query := `
		INSERT INTO channels (channel_id, title, member_count, is_active, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, NOW())
		ON CONFLICT (channel_id) DO UPDATE SET
			title = COALESCE(EXCLUDED.title, channels.title),
			member_count = EXCLUDED.member_count,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
	`

	_, err := r.db.Pool().Exec(ctx, query, ch.ChannelID, ch.Title, ch.MemberCount, ch.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert channel: %w", err)
	}

	return nil
}
