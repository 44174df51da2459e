package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/prohmpiriya/event-ledger/internal/domain"
	"github.com/prohmpiriya/event-ledger/internal/ledger"
)

const (
	// Cache key layout
	ownerCacheKey        = "ledger:owner"
	eventCountCacheKey   = "ledger:event_count"
	eventDetailKeyPrefix = "event:detail:"
	reservationKeyPrefix = "reservation:"

	eventCacheTTL = 5 * time.Minute
	ownerCacheTTL = time.Hour
)

// Cache is the subset of the Redis client the cached ledger needs.
type Cache interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// CachedLedger wraps a Ledger with Redis read-through caching.
//
// Reads fall back to the underlying ledger on any cache error, and
// writes invalidate before returning, so the cache can only ever serve
// slightly stale data inside the TTL window, never wrong rejections:
// reservation entries are cached only once they exist, because a seat
// is never given back.
type CachedLedger struct {
	next  ledger.Ledger
	cache Cache
}

// NewCachedLedger creates a new CachedLedger.
func NewCachedLedger(next ledger.Ledger, cache Cache) *CachedLedger {
	return &CachedLedger{next: next, cache: cache}
}

// Ensure CachedLedger implements ledger.Ledger
var _ ledger.Ledger = (*CachedLedger)(nil)

func (c *CachedLedger) InitOwner(ctx context.Context, owner domain.Account) error {
	if err := c.next.InitOwner(ctx, owner); err != nil {
		return err
	}
	c.cache.Del(ctx, ownerCacheKey)
	return nil
}

func (c *CachedLedger) Owner(ctx context.Context) (domain.Account, error) {
	if cached, err := c.cache.Get(ctx, ownerCacheKey).Result(); err == nil && cached != "" {
		return domain.Account(cached), nil
	}

	owner, err := c.next.Owner(ctx)
	if err != nil {
		return "", err
	}
	c.cache.Set(ctx, ownerCacheKey, string(owner), ownerCacheTTL)
	return owner, nil
}

func (c *CachedLedger) CreateEvent(ctx context.Context, caller domain.Account, name string, capacity uint32) (uint64, error) {
	id, err := c.next.CreateEvent(ctx, caller, name, capacity)
	if err != nil {
		return 0, err
	}
	c.cache.Del(ctx, eventCountCacheKey)
	return id, nil
}

func (c *CachedLedger) Reserve(ctx context.Context, account domain.Account, eventID uint64) error {
	if err := c.next.Reserve(ctx, account, eventID); err != nil {
		return err
	}
	c.cache.Del(ctx, eventDetailKey(eventID))
	c.cache.Set(ctx, reservationKey(account, eventID), "1", eventCacheTTL)
	return nil
}

func (c *CachedLedger) EventCount(ctx context.Context) (uint64, error) {
	if cached, err := c.cache.Get(ctx, eventCountCacheKey).Result(); err == nil && cached != "" {
		if count, err := strconv.ParseUint(cached, 10, 64); err == nil {
			return count, nil
		}
	}

	count, err := c.next.EventCount(ctx)
	if err != nil {
		return 0, err
	}
	c.cache.Set(ctx, eventCountCacheKey, strconv.FormatUint(count, 10), eventCacheTTL)
	return count, nil
}

func (c *CachedLedger) EventAt(ctx context.Context, id uint64) (*domain.Event, error) {
	key := eventDetailKey(id)
	if cached, err := c.cache.Get(ctx, key).Result(); err == nil && cached != "" {
		var event domain.Event
		if err := json.Unmarshal([]byte(cached), &event); err == nil {
			return &event, nil
		}
	}

	event, err := c.next.EventAt(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(event); err == nil {
		c.cache.Set(ctx, key, string(data), eventCacheTTL)
	}
	return event, nil
}

// HasReserved caches positive answers only. A reservation is permanent
// once made, so a cached true can never go stale; a cached false could.
func (c *CachedLedger) HasReserved(ctx context.Context, account domain.Account, id uint64) (bool, error) {
	key := reservationKey(account, id)
	if cached, err := c.cache.Get(ctx, key).Result(); err == nil && cached == "1" {
		return true, nil
	}

	reserved, err := c.next.HasReserved(ctx, account, id)
	if err != nil {
		return false, err
	}
	if reserved {
		c.cache.Set(ctx, key, "1", eventCacheTTL)
	}
	return reserved, nil
}

func eventDetailKey(id uint64) string {
	return eventDetailKeyPrefix + strconv.FormatUint(id, 10)
}

func reservationKey(account domain.Account, id uint64) string {
	return reservationKeyPrefix + strconv.FormatUint(id, 10) + ":" + string(account)
}
