package storage

import (
	"context"

	"github.com/token-pulse/internal/types"
)

// TokenMarketUpdate carries the market snapshot fields owned by the market
// updater. Applied as a partial merge: reach aggregates and other
// ledger-owned fields are never touched by it.
type TokenMarketUpdate struct {
	MarketCap      float64
	Price          float64
	Liquidity      float64
	Volume1h       float64
	Buys1h         int
	Sells1h        int
	DexScreenerURL string
	WebsiteURL     string
}

// TokenKeyFilter selects and orders token keys for a sweep
type TokenKeyFilter struct {
	Chain *types.Chain
	Limit int
	// OrderByActivity ranks tokens by community reach then promotion count;
	// otherwise keys come back in storage order
	OrderByActivity bool
}

// Store is the persistence boundary of the pipeline. One concrete
// implementation is selected at startup and injected into the components
// that need it.
type Store interface {
	// Token aggregate
	EnsureToken(ctx context.Context, seed *types.Token) (created bool, err error)
	GetToken(ctx context.Context, key types.TokenKey) (*types.Token, error)
	FindTokenBySymbol(ctx context.Context, chain types.Chain, symbol string) (*types.Token, error)
	ListTokens(ctx context.Context, limit, offset int) ([]types.Token, error)
	ListTokenKeys(ctx context.Context, filter *TokenKeyFilter) ([]types.TokenKey, error)
	ApplyMarketSnapshot(ctx context.Context, key types.TokenKey, update *TokenMarketUpdate) error
	UpdateTokenReach(ctx context.Context, key types.TokenKey, spreadCount int, communityReach int64) error
	IncrementPromotionCount(ctx context.Context, key types.TokenKey) error
	UpdateHoldersCount(ctx context.Context, key types.TokenKey, count int) error
	DeleteToken(ctx context.Context, key types.TokenKey) error

	// Mention ledger
	InsertMentionIfAbsent(ctx context.Context, mention *types.Mention) (bool, error)
	CountDistinctMentions(ctx context.Context, key types.TokenKey) (int, error)
	ListDistinctChannels(ctx context.Context, key types.TokenKey) ([]int64, error)
	ListMentions(ctx context.Context, key types.TokenKey, limit int) ([]types.Mention, error)

	// Raw messages
	InsertMessages(ctx context.Context, messages []*types.Message) error
	MessageExists(ctx context.Context, channelID, messageID int64) (bool, error)

	// Channel directory data
	GetChannel(ctx context.Context, channelID int64) (*types.Channel, error)
	UpsertChannel(ctx context.Context, ch *types.Channel) error
}

// PostgresStore implements Store on top of pgx repositories
type PostgresStore struct {
	*TokenRepository
	*MentionRepository
	*MessageRepository
	*ChannelRepository
}

// NewPostgresStore creates the pgx-backed store
func NewPostgresStore(db *PostgresDB) *PostgresStore {
	return &PostgresStore{
		TokenRepository:   NewTokenRepository(db),
		MentionRepository: NewMentionRepository(db),
		MessageRepository: NewMessageRepository(db),
		ChannelRepository: NewChannelRepository(db),
	}
}

var _ Store = (*PostgresStore)(nil)
