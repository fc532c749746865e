package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/token-pulse/internal/types"
)

// MentionEvent is an analytics record appended for every accepted mention.
// The aggregate state in Postgres stays authoritative; the event stream is
// for offline analysis only.
type MentionEvent struct {
	Chain              types.Chain
	Contract           string
	TokenSymbol        string
	ChannelID          int64
	MessageID          int64
	MarketCapAtMention float64
	SentimentScore     float64
	HypeScore          float64
	RiskLevel          types.RiskLevel
	MentionTime        time.Time
}

// MentionEventRepository appends mention events to ClickHouse
type MentionEventRepository struct {
	db *ClickHouseDB
}

// NewMentionEventRepository creates a new mention event repository
func NewMentionEventRepository(db *ClickHouseDB) *MentionEventRepository {
	return &MentionEventRepository{db: db}
}

// BatchInsert appends multiple mention events
func (r *MentionEventRepository) BatchInsert(ctx context.Context, events []*MentionEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO mention_events (
			chain, contract, token_symbol, channel_id, message_id,
			market_cap_at_mention, sentiment_score, hype_score, risk_level, mention_time
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, ev := range events {
		err = batch.Append(
			string(ev.Chain),
			ev.Contract,
			ev.TokenSymbol,
			ev.ChannelID,
			ev.MessageID,
			ev.MarketCapAtMention,
			ev.SentimentScore,
			ev.HypeScore,
			string(ev.RiskLevel),
			ev.MentionTime,
		)
		if err != nil {
			return fmt.Errorf("failed to append mention event to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send mention event batch: %w", err)
	}

	return nil
}

// Insert appends a single mention event
func (r *MentionEventRepository) Insert(ctx context.Context, ev *MentionEvent) error {
	return r.BatchInsert(ctx, []*MentionEvent{ev})
}

// CountByChannel returns mention counts per channel over a time window
func (r *MentionEventRepository) CountByChannel(ctx context.Context, since time.Time) (map[int64]uint64, error) {
	rows, err := r.db.Conn().Query(ctx, `
		SELECT channel_id, count() AS mentions
		FROM mention_events
		WHERE mention_time >= ?
		GROUP BY channel_id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query mention counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]uint64)
	for rows.Next() {
		var channelID int64
		var mentions uint64
		if err := rows.Scan(&channelID, &mentions); err != nil {
			return nil, fmt.Errorf("failed to scan mention count: %w", err)
		}
		counts[channelID] = mentions
	}

	return counts, nil
}
