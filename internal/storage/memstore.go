package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/token-pulse/internal/errors"
	"github.com/token-pulse/internal/types"
)

// MemoryStore is an in-process Store used by tests and local development.
// It mirrors the Postgres semantics: write-once first fields, the snapshot
// shift into the 1h columns, and mention cascade on token deletion.
type MemoryStore struct {
	mu       sync.RWMutex
	tokens   map[types.TokenKey]*types.Token
	mentions map[mentionKey]*types.Mention
	messages map[messageKey]*types.Message
	channels map[int64]*types.Channel
}

type mentionKey struct {
	chain     types.Chain
	contract  string
	channelID int64
	messageID int64
}

type messageKey struct {
	channelID int64
	messageID int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens:   make(map[types.TokenKey]*types.Token),
		mentions: make(map[mentionKey]*types.Mention),
		messages: make(map[messageKey]*types.Message),
		channels: make(map[int64]*types.Channel),
	}
}

func copyToken(t *types.Token) *types.Token {
	clone := *t
	return &clone
}

// EnsureToken inserts the token if absent
func (s *MemoryStore) EnsureToken(ctx context.Context, seed *types.Token) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := seed.Key()
	if _, ok := s.tokens[key]; ok {
		return false, nil
	}

	stored := copyToken(seed)
	if stored.FirstMarketCap != nil && stored.MarketCap == nil {
		stored.MarketCap = types.Float64Ptr(*stored.FirstMarketCap)
	}
	if stored.FirstPrice != nil && stored.Price == nil {
		stored.Price = types.Float64Ptr(*stored.FirstPrice)
	}
	stored.FirstUpdate = time.Now()
	s.tokens[key] = stored
	return true, nil
}

// GetToken retrieves a token, or nil when absent
func (s *MemoryStore) GetToken(ctx context.Context, key types.TokenKey) (*types.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[key]
	if !ok {
		return nil, nil
	}
	return copyToken(token), nil
}

// FindTokenBySymbol returns the single token matching the symbol, or nil
func (s *MemoryStore) FindTokenBySymbol(ctx context.Context, chain types.Chain, symbol string) (*types.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var match *types.Token
	for _, token := range s.tokens {
		if token.Chain == chain && strings.EqualFold(token.Symbol, symbol) {
			if match != nil {
				return nil, nil
			}
			match = token
		}
	}
	if match == nil {
		return nil, nil
	}
	return copyToken(match), nil
}

// ListTokens returns tokens most recently updated first
func (s *MemoryStore) ListTokens(ctx context.Context, limit, offset int) ([]types.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*types.Token, 0, len(s.tokens))
	for _, token := range s.tokens {
		all = append(all, token)
	}
	sort.Slice(all, func(i, j int) bool {
		ti, tj := all[i], all[j]
		switch {
		case ti.LatestUpdate != nil && tj.LatestUpdate != nil:
			return ti.LatestUpdate.After(*tj.LatestUpdate)
		case ti.LatestUpdate != nil:
			return true
		case tj.LatestUpdate != nil:
			return false
		default:
			return ti.FirstUpdate.After(tj.FirstUpdate)
		}
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	result := make([]types.Token, 0, len(all))
	for _, token := range all {
		result = append(result, *copyToken(token))
	}
	return result, nil
}

// ListTokenKeys returns token keys per the filter
func (s *MemoryStore) ListTokenKeys(ctx context.Context, filter *TokenKeyFilter) ([]types.TokenKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make([]*types.Token, 0, len(s.tokens))
	for _, token := range s.tokens {
		if filter != nil && filter.Chain != nil && token.Chain != *filter.Chain {
			continue
		}
		tokens = append(tokens, token)
	}

	if filter != nil && filter.OrderByActivity {
		sort.Slice(tokens, func(i, j int) bool {
			if tokens[i].CommunityReach != tokens[j].CommunityReach {
				return tokens[i].CommunityReach > tokens[j].CommunityReach
			}
			return tokens[i].PromotionCount > tokens[j].PromotionCount
		})
	} else {
		sort.Slice(tokens, func(i, j int) bool {
			return tokens[i].Contract < tokens[j].Contract
		})
	}

	if filter != nil && filter.Limit > 0 && filter.Limit < len(tokens) {
		tokens = tokens[:filter.Limit]
	}

	keys := make([]types.TokenKey, 0, len(tokens))
	for _, token := range tokens {
		keys = append(keys, token.Key())
	}
	return keys, nil
}

// ApplyMarketSnapshot shifts the previous snapshot into the 1h fields and
// merges the new one, honoring the write-once first fields
func (s *MemoryStore) ApplyMarketSnapshot(ctx context.Context, key types.TokenKey, update *TokenMarketUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[key]
	if !ok {
		return apperrors.NewNotFoundError("token", key.Contract)
	}

	token.MarketCap1h = token.MarketCap
	token.MarketCap = types.Float64Ptr(update.MarketCap)
	if token.FirstMarketCap == nil {
		token.FirstMarketCap = types.Float64Ptr(update.MarketCap)
	}
	token.Price = types.Float64Ptr(update.Price)
	if token.FirstPrice == nil {
		token.FirstPrice = types.Float64Ptr(update.Price)
	}
	token.Liquidity = types.Float64Ptr(update.Liquidity)
	token.Volume1h = types.Float64Ptr(update.Volume1h)
	token.Buys1h = types.IntPtr(update.Buys1h)
	token.Sells1h = types.IntPtr(update.Sells1h)
	if update.DexScreenerURL != "" {
		token.DexScreenerURL = update.DexScreenerURL
	}
	if update.WebsiteURL != "" && token.WebsiteURL == "" {
		token.WebsiteURL = update.WebsiteURL
	}
	now := time.Now()
	token.LatestUpdate = &now
	return nil
}

// UpdateTokenReach writes the reach aggregates
func (s *MemoryStore) UpdateTokenReach(ctx context.Context, key types.TokenKey, spreadCount int, communityReach int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token, ok := s.tokens[key]; ok {
		token.SpreadCount = spreadCount
		token.CommunityReach = communityReach
	}
	return nil
}

// IncrementPromotionCount bumps the promotion counter
func (s *MemoryStore) IncrementPromotionCount(ctx context.Context, key types.TokenKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token, ok := s.tokens[key]; ok {
		token.PromotionCount++
	}
	return nil
}

// UpdateHoldersCount writes the holder count
func (s *MemoryStore) UpdateHoldersCount(ctx context.Context, key types.TokenKey, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token, ok := s.tokens[key]; ok {
		token.HoldersCount = types.IntPtr(count)
	}
	return nil
}

// DeleteToken removes a token and cascades its mentions
func (s *MemoryStore) DeleteToken(ctx context.Context, key types.TokenKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, key)
	for mk := range s.mentions {
		if mk.chain == key.Chain && mk.contract == key.Contract {
			delete(s.mentions, mk)
		}
	}
	return nil
}

// InsertMentionIfAbsent records a mention unless it already exists
func (s *MemoryStore) InsertMentionIfAbsent(ctx context.Context, mention *types.Mention) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mk := mentionKey{mention.Chain, mention.Contract, mention.ChannelID, mention.MessageID}
	if _, ok := s.mentions[mk]; ok {
		return false, nil
	}
	clone := *mention
	s.mentions[mk] = &clone
	return true, nil
}

// CountDistinctMentions counts mentions for a token
func (s *MemoryStore) CountDistinctMentions(ctx context.Context, key types.TokenKey) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for mk := range s.mentions {
		if mk.chain == key.Chain && mk.contract == key.Contract {
			count++
		}
	}
	return count, nil
}

// ListDistinctChannels returns the channels that mentioned a token
func (s *MemoryStore) ListDistinctChannels(ctx context.Context, key types.TokenKey) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]struct{})
	for mk := range s.mentions {
		if mk.chain == key.Chain && mk.contract == key.Contract {
			seen[mk.channelID] = struct{}{}
		}
	}

	channels := make([]int64, 0, len(seen))
	for channelID := range seen {
		channels = append(channels, channelID)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return channels, nil
}

// ListMentions returns the most recent mentions of a token
func (s *MemoryStore) ListMentions(ctx context.Context, key types.TokenKey, limit int) ([]types.Mention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mentions []types.Mention
	for mk, mention := range s.mentions {
		if mk.chain == key.Chain && mk.contract == key.Contract {
			mentions = append(mentions, *mention)
		}
	}
	sort.Slice(mentions, func(i, j int) bool {
		return mentions[i].MentionTime.After(mentions[j].MentionTime)
	})
	if limit > 0 && limit < len(mentions) {
		mentions = mentions[:limit]
	}
	return mentions, nil
}

// InsertMessages stores raw messages, skipping duplicates
func (s *MemoryStore) InsertMessages(ctx context.Context, messages []*types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range messages {
		mk := messageKey{msg.ChannelID, msg.MessageID}
		if _, ok := s.messages[mk]; ok {
			continue
		}
		clone := *msg
		s.messages[mk] = &clone
	}
	return nil
}

// MessageExists reports whether a message was ingested
func (s *MemoryStore) MessageExists(ctx context.Context, channelID, messageID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.messages[messageKey{channelID, messageID}]
	return ok, nil
}

// GetChannel retrieves channel metadata, or nil when unknown
func (s *MemoryStore) GetChannel(ctx context.Context, channelID int64) (*types.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.channels[channelID]
	if !ok {
		return nil, nil
	}
	clone := *ch
	return &clone, nil
}

// UpsertChannel stores or refreshes channel metadata
func (s *MemoryStore) UpsertChannel(ctx context.Context, ch *types.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *ch
	s.channels[ch.ChannelID] = &clone
	return nil
}

// MessageCount reports how many messages are stored
func (s *MemoryStore) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

var _ Store = (*MemoryStore)(nil)
