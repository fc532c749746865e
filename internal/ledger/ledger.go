// Package ledger owns the durable record of token mentions. It is the only
// writer of the reach aggregates (spread_count, community_reach,
// promotion_count); market snapshot fields belong to the market updater.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/token-pulse/internal/directory"
	"github.com/token-pulse/internal/logging"
	"github.com/token-pulse/internal/storage"
	"github.com/token-pulse/internal/types"
)

// EventSink receives analytics events for accepted mentions. Failures are
// logged and never affect the ingestion outcome.
type EventSink interface {
	Insert(ctx context.Context, ev *storage.MentionEvent) error
}

// Ledger records promotion signals against tokens
type Ledger struct {
	store     storage.Store
	directory directory.Directory
	cache     *storage.RedisCache
	events    EventSink
	reachTTL  time.Duration
}

// Option configures optional ledger collaborators
type Option func(*Ledger)

// WithReachCache enables the Redis reach cache
func WithReachCache(cache *storage.RedisCache, ttl time.Duration) Option {
	return func(l *Ledger) {
		l.cache = cache
		if ttl > 0 {
			l.reachTTL = ttl
		}
	}
}

// WithEventSink enables the analytics event stream
func WithEventSink(sink EventSink) Option {
	return func(l *Ledger) {
		l.events = sink
	}
}

// NewLedger creates a mention ledger
func NewLedger(store storage.Store, dir directory.Directory, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		directory: dir,
		reachTTL:  5 * time.Minute,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func reachCacheKey(key types.TokenKey) string {
	return fmt.Sprintf("token:reach:%s:%s", key.Chain, key.Contract)
}

// Record applies one promotion signal. Replays of the same (channel,
// message) pair are no-ops; signals without a contract address fall back to
// a best-effort symbol match that only bumps the promotion counter.
func (l *Ledger) Record(ctx context.Context, signal *types.PromotionSignal, channelID, messageID int64) (*types.IngestResult, error) {
	if signal == nil {
		return &types.IngestResult{}, nil
	}

	logger := logging.FromContext(ctx).WithComponent("ledger").WithFields(map[string]interface{}{
		"channel_id": channelID,
		"message_id": messageID,
	})

	if signal.ContractAddress == "" {
		return l.recordSymbolOnly(ctx, signal, logger)
	}

	key := types.TokenKey{Chain: signal.Chain, Contract: signal.ContractAddress}
	mentionCap := types.ParseMarketCap(signal.MarketCapRaw)

	seed := &types.Token{
		Chain:       signal.Chain,
		Contract:    signal.ContractAddress,
		Symbol:      signal.TokenSymbol,
		TelegramURL: signal.TelegramURL,
		TwitterURL:  signal.TwitterURL,
		WebsiteURL:  signal.WebsiteURL,
	}
	if mentionCap > 0 {
		seed.FirstMarketCap = types.Float64Ptr(mentionCap)
	}

	created, err := l.store.EnsureToken(ctx, seed)
	if err != nil {
		return nil, err
	}
	if created {
		logger.WithFields(map[string]interface{}{
			"chain":    key.Chain,
			"contract": key.Contract,
			"symbol":   signal.TokenSymbol,
		}).Info("new token discovered")
	}

	mention := &types.Mention{
		Chain:              key.Chain,
		Contract:           key.Contract,
		ChannelID:          channelID,
		MessageID:          messageID,
		TokenSymbol:        signal.TokenSymbol,
		MarketCapAtMention: mentionCap,
		MentionTime:        signal.MentionTime,
	}

	inserted, err := l.store.InsertMentionIfAbsent(ctx, mention)
	if err != nil {
		return nil, err
	}
	if !inserted {
		logger.Debug("duplicate mention ignored")
		return &types.IngestResult{SignalFound: true, Duplicate: true, TokenKey: &key}, nil
	}

	if err := l.store.IncrementPromotionCount(ctx, key); err != nil {
		logger.WithError(err).Warn("failed to increment promotion count")
	}

	if err := l.recomputeReach(ctx, key); err != nil {
		// Reach is derived state; the next mention or sweep repairs it
		logger.WithError(err).Warn("failed to recompute reach")
	}

	l.emitEvent(ctx, signal, mention, logger)

	return &types.IngestResult{SignalFound: true, MentionCreated: true, TokenKey: &key}, nil
}

// recordSymbolOnly handles signals that carry a symbol but no contract.
// The mention cannot be keyed, so only an unambiguous existing token gets
// its promotion counter bumped.
func (l *Ledger) recordSymbolOnly(ctx context.Context, signal *types.PromotionSignal, logger *logging.Logger) (*types.IngestResult, error) {
	if signal.TokenSymbol == "" {
		return &types.IngestResult{}, nil
	}

	chain := signal.Chain
	if !chain.IsResolved() {
		chain = types.ChainETH
	}

	token, err := l.store.FindTokenBySymbol(ctx, chain, signal.TokenSymbol)
	if err != nil {
		return nil, err
	}
	if token == nil {
		logger.WithField("symbol", signal.TokenSymbol).Debug("symbol-only signal matched no token")
		return &types.IngestResult{SignalFound: true, SymbolOnly: true}, nil
	}

	key := token.Key()
	if err := l.store.IncrementPromotionCount(ctx, key); err != nil {
		return nil, err
	}

	return &types.IngestResult{SignalFound: true, SymbolOnly: true, TokenKey: &key}, nil
}

// recomputeReach rebuilds spread_count and community_reach from the mention
// rows. Spread counts every distinct mention, repeats from one channel
// included; reach sums member counts of active channels only.
func (l *Ledger) recomputeReach(ctx context.Context, key types.TokenKey) error {
	spread, err := l.store.CountDistinctMentions(ctx, key)
	if err != nil {
		return err
	}

	channels, err := l.store.ListDistinctChannels(ctx, key)
	if err != nil {
		return err
	}

	var reach int64
	for _, channelID := range channels {
		active, err := l.directory.IsActive(ctx, channelID)
		if err != nil {
			logging.FromContext(ctx).WithError(err).WithField("channel_id", channelID).
				Warn("failed to check channel activity")
			continue
		}
		if !active {
			continue
		}

		members, err := l.directory.GetMemberCount(ctx, channelID)
		if err != nil {
			logging.FromContext(ctx).WithError(err).WithField("channel_id", channelID).
				Warn("failed to get member count")
			continue
		}
		reach += members
	}

	if err := l.store.UpdateTokenReach(ctx, key, spread, reach); err != nil {
		return err
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, reachCacheKey(key), reach, l.reachTTL); err != nil {
			logging.FromContext(ctx).WithError(err).Debug("reach cache write failed")
		}
	}

	return nil
}

// CachedReach returns the cached community reach for a token, falling back
// to the stored aggregate on a miss
func (l *Ledger) CachedReach(ctx context.Context, key types.TokenKey) (int64, error) {
	if l.cache != nil {
		reach, found, err := l.cache.GetInt64(ctx, reachCacheKey(key))
		if err == nil && found {
			return reach, nil
		}
	}

	token, err := l.store.GetToken(ctx, key)
	if err != nil {
		return 0, err
	}
	if token == nil {
		return 0, nil
	}
	return token.CommunityReach, nil
}

func (l *Ledger) emitEvent(ctx context.Context, signal *types.PromotionSignal, mention *types.Mention, logger *logging.Logger) {
	if l.events == nil {
		return
	}

	ev := &storage.MentionEvent{
		Chain:              mention.Chain,
		Contract:           mention.Contract,
		TokenSymbol:        mention.TokenSymbol,
		ChannelID:          mention.ChannelID,
		MessageID:          mention.MessageID,
		MarketCapAtMention: mention.MarketCapAtMention,
		SentimentScore:     signal.SentimentScore,
		HypeScore:          signal.HypeScore,
		RiskLevel:          signal.RiskLevel,
		MentionTime:        mention.MentionTime,
	}
	if err := l.events.Insert(ctx, ev); err != nil {
		logger.WithError(err).Warn("failed to append mention event")
	}
}
