package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/token-pulse/internal/types"
)

// MessageRepository handles raw message data access
type MessageRepository struct {
	db *PostgresDB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *PostgresDB) *MessageRepository {
	return &MessageRepository{db: db}
}

// InsertMessages stores a batch of raw messages, skipping duplicates
func (r *MessageRepository) InsertMessages(ctx context.Context, messages []*types.Message) error {
	if len(messages) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO messages (channel_id, message_id, text, sent_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (channel_id, message_id) DO NOTHING
	`
	for _, msg := range messages {
		batch.Queue(query, msg.ChannelID, msg.MessageID, msg.Text, msg.SentAt)
	}

	results := r.db.Pool().SendBatch(ctx, batch)
	defer results.Close()

	for range messages {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert messages: %w", err)
		}
	}

	return nil
}

// MessageExists reports whether a message has already been ingested
func (r *MessageRepository) MessageExists(ctx context.Context, channelID, messageID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM messages WHERE channel_id = $1 AND message_id = $2)`

	var exists bool
	err := r.db.Pool().QueryRow(ctx, query, channelID, messageID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check message existence: %w", err)
	}

	return exists, nil
}
