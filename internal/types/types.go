// Package types provides common type definitions for the token pulse system.
package types

import "time"

// Chain represents a blockchain network that namespaces contract addresses
type Chain string

const (
	// ChainSOL represents the Solana network
	ChainSOL Chain = "SOL"
	// ChainETH represents the Ethereum mainnet
	ChainETH Chain = "ETH"
	// ChainBSC represents the BNB Smart Chain
	ChainBSC Chain = "BSC"
	// ChainARB represents the Arbitrum network
	ChainARB Chain = "ARB"
	// ChainBASE represents the Base network
	ChainBASE Chain = "BASE"
	// ChainAVAX represents the Avalanche network
	ChainAVAX Chain = "AVAX"
	// ChainMATIC represents the Polygon network
	ChainMATIC Chain = "MATIC"
	// ChainOP represents the Optimism network
	ChainOP Chain = "OP"
	// ChainEVMPartial marks an address that is EVM-shaped but whose network
	// could not be resolved from context
	ChainEVMPartial Chain = "EVM"
	// ChainUnknown represents an unresolved chain
	ChainUnknown Chain = "UNKNOWN"
)

// evmChains is the set of chains using 0x hex addresses
var evmChains = map[Chain]bool{
	ChainETH:        true,
	ChainBSC:        true,
	ChainARB:        true,
	ChainBASE:       true,
	ChainAVAX:       true,
	ChainMATIC:      true,
	ChainOP:         true,
	ChainEVMPartial: true,
}

// IsEVM reports whether the chain uses EVM-style hex addresses
func (c Chain) IsEVM() bool {
	return evmChains[c]
}

// IsResolved reports whether the chain is a concrete, persistable network.
// Membership, not exclusion: an arbitrary string is not resolved.
func (c Chain) IsResolved() bool {
	_, ok := marketFeedIDs[c]
	return ok
}

// marketFeedIDs maps chains to the identifiers used by market data feeds
var marketFeedIDs = map[Chain]string{
	ChainSOL:   "solana",
	ChainETH:   "ethereum",
	ChainBSC:   "bsc",
	ChainARB:   "arbitrum",
	ChainBASE:  "base",
	ChainAVAX:  "avalanche",
	ChainMATIC: "polygon",
	ChainOP:    "optimism",
}

// MarketFeedID returns the lowercase chain identifier used by external
// market data feeds, or the empty string for unresolved chains
func (c Chain) MarketFeedID() string {
	return marketFeedIDs[c]
}

// RiskLevel classifies how risky a promoted token looks from its message text
type RiskLevel string

const (
	// RiskLow indicates no notable risk or hype signals
	RiskLow RiskLevel = "low"
	// RiskLowMedium indicates strongly positive sentiment without hype saturation
	RiskLowMedium RiskLevel = "low-medium"
	// RiskMedium indicates elevated hype density or negative sentiment
	RiskMedium RiskLevel = "medium"
	// RiskMediumHigh indicates hype saturation combined with euphoric sentiment
	RiskMediumHigh RiskLevel = "medium-high"
	// RiskHigh indicates an explicit scam/rug keyword was present
	RiskHigh RiskLevel = "high"
	// RiskUnknown indicates scoring was not possible
	RiskUnknown RiskLevel = "unknown"
)

// PromotionSignal is the structured result of extracting one broadcast
// message. It is ephemeral: produced per message and consumed immediately by
// the mention ledger, never persisted as-is.
type PromotionSignal struct {
	TokenSymbol     string    `json:"tokenSymbol,omitempty"`
	ContractAddress string    `json:"contractAddress,omitempty"`
	MarketCapRaw    string    `json:"marketCapRaw,omitempty"`
	Chain           Chain     `json:"chain"`
	TelegramURL     string    `json:"telegramUrl,omitempty"`
	TwitterURL      string    `json:"twitterUrl,omitempty"`
	WebsiteURL      string    `json:"websiteUrl,omitempty"`
	SentimentScore  float64   `json:"sentimentScore"`
	HypeScore       float64   `json:"hypeScore"`
	RiskLevel       RiskLevel `json:"riskLevel"`
	MentionTime     time.Time `json:"mentionTime"`
	Warnings        []string  `json:"warnings,omitempty"`
}

// HasIdentity reports whether the signal carries a resolvable token identity
func (s *PromotionSignal) HasIdentity() bool {
	return s != nil && s.ContractAddress != ""
}

// TokenKey identifies a token row
type TokenKey struct {
	Chain    Chain  `json:"chain"`
	Contract string `json:"contract"`
}

// Token is the persisted mutable aggregate for one (chain, contract) pair.
// Market snapshot fields are owned by the market updater; reach aggregates
// are owned by the mention ledger. Write-once fields use pointers so that
// "never set" is distinguishable from zero.
type Token struct {
	Chain          Chain      `json:"chain"`
	Contract       string     `json:"contract"`
	Symbol         string     `json:"symbol,omitempty"`
	MarketCap      *float64   `json:"marketCap,omitempty"`
	MarketCap1h    *float64   `json:"marketCap1h,omitempty"`
	FirstMarketCap *float64   `json:"firstMarketCap,omitempty"`
	Price          *float64   `json:"price,omitempty"`
	FirstPrice     *float64   `json:"firstPrice,omitempty"`
	Liquidity      *float64   `json:"liquidity,omitempty"`
	Volume1h       *float64   `json:"volume1h,omitempty"`
	Buys1h         *int       `json:"buys1h,omitempty"`
	Sells1h        *int       `json:"sells1h,omitempty"`
	HoldersCount   *int       `json:"holdersCount,omitempty"`
	SpreadCount    int        `json:"spreadCount"`
	CommunityReach int64      `json:"communityReach"`
	PromotionCount int        `json:"promotionCount"`
	DexScreenerURL string     `json:"dexscreenerUrl,omitempty"`
	TelegramURL    string     `json:"telegramUrl,omitempty"`
	TwitterURL     string     `json:"twitterUrl,omitempty"`
	WebsiteURL     string     `json:"websiteUrl,omitempty"`
	FirstUpdate    time.Time  `json:"firstUpdate"`
	LatestUpdate   *time.Time `json:"latestUpdate,omitempty"`
}

// Key returns the token's identity
func (t *Token) Key() TokenKey {
	return TokenKey{Chain: t.Chain, Contract: t.Contract}
}

// Mention is one observed occurrence of a token in a specific message.
// Append-only: unique per (chain, contract, message_id), deleted only by the
// token deletion cascade.
type Mention struct {
	Chain              Chain     `json:"chain"`
	Contract           string    `json:"contract"`
	MessageID          int64     `json:"messageId"`
	ChannelID          int64     `json:"channelId"`
	TokenSymbol        string    `json:"tokenSymbol,omitempty"`
	MarketCapAtMention float64   `json:"marketCapAtMention"`
	MentionTime        time.Time `json:"mentionTime"`
}

// Message is one raw broadcast message as received from a monitored channel
type Message struct {
	ChannelID int64     `json:"channelId"`
	MessageID int64     `json:"messageId"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sentAt"`
}

// Channel describes a monitored channel. The directory data is maintained by
// an external collaborator and is read-only from this system's perspective.
type Channel struct {
	ChannelID   int64  `json:"channelId"`
	Title       string `json:"title,omitempty"`
	MemberCount int64  `json:"memberCount"`
	IsActive    bool   `json:"isActive"`
}

// IngestResult summarizes what happened to one ingested message
type IngestResult struct {
	SignalFound    bool      `json:"signalFound"`
	MentionCreated bool      `json:"mentionCreated"`
	Duplicate      bool      `json:"duplicate"`
	SymbolOnly     bool      `json:"symbolOnly"`
	TokenKey       *TokenKey `json:"tokenKey,omitempty"`
}

// SweepError records one per-token failure inside a sweep
type SweepError struct {
	Chain    Chain  `json:"chain"`
	Contract string `json:"contract"`
	Message  string `json:"message"`
}

// SweepReport summarizes one full pass over a set of token keys. A sweep
// always reports partial success counts plus a bounded error list.
type SweepReport struct {
	Total      int           `json:"total"`
	Reconciled int           `json:"reconciled"`
	NotFound   int           `json:"notFound"`
	Failed     int           `json:"failed"`
	Errors     []SweepError  `json:"errors,omitempty"`
	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"startedAt"`
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Float64Ptr returns a pointer to v
func Float64Ptr(v float64) *float64 { return &v }

// IntPtr returns a pointer to v
func IntPtr(v int) *int { return &v }
