// Package directory resolves channel metadata for reach computation.
// Member counts are served from Redis with a short TTL so recomputing the
// reach of a widely spread token does not hammer Postgres.
package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/token-pulse/internal/logging"
	"github.com/token-pulse/internal/storage"
	"github.com/token-pulse/internal/types"
)

// Directory answers channel questions for the mention ledger
type Directory interface {
	// GetMemberCount returns the channel's subscriber count, 0 when unknown
	GetMemberCount(ctx context.Context, channelID int64) (int64, error)
	// IsActive reports whether the channel still counts toward reach
	IsActive(ctx context.Context, channelID int64) (bool, error)
}

// ChannelStore is the slice of storage the directory needs
type ChannelStore interface {
	GetChannel(ctx context.Context, channelID int64) (*types.Channel, error)
}

// CachedDirectory reads channels from storage through a Redis cache
type CachedDirectory struct {
	store ChannelStore
	cache *storage.RedisCache
	ttl   time.Duration
}

// NewCachedDirectory creates a directory backed by store with a member
// count cache. A nil cache disables caching.
func NewCachedDirectory(store ChannelStore, cache *storage.RedisCache, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDirectory{store: store, cache: cache, ttl: ttl}
}

func memberCountKey(channelID int64) string {
	return fmt.Sprintf("channel:members:%d", channelID)
}

// GetMemberCount returns the cached member count, falling back to storage.
// Cache failures degrade to a storage read, never to an error.
func (d *CachedDirectory) GetMemberCount(ctx context.Context, channelID int64) (int64, error) {
	if d.cache != nil {
		count, found, err := d.cache.GetInt64(ctx, memberCountKey(channelID))
		if err != nil {
			logging.FromContext(ctx).WithError(err).WithField("channel_id", channelID).
				Debug("member count cache read failed")
		} else if found {
			return count, nil
		}
	}

	ch, err := d.store.GetChannel(ctx, channelID)
	if err != nil {
		return 0, err
	}
	if ch == nil {
		return 0, nil
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, memberCountKey(channelID), ch.MemberCount, d.ttl); err != nil {
			logging.FromContext(ctx).WithError(err).WithField("channel_id", channelID).
				Debug("member count cache write failed")
		}
	}

	return ch.MemberCount, nil
}

// IsActive reports whether the channel exists and is still active.
// Unknown channels are treated as inactive.
func (d *CachedDirectory) IsActive(ctx context.Context, channelID int64) (bool, error) {
	ch, err := d.store.GetChannel(ctx, channelID)
	if err != nil {
		return false, err
	}
	if ch == nil {
		return false, nil
	}
	return ch.IsActive, nil
}

var _ Directory = (*CachedDirectory)(nil)
