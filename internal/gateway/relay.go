package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// RelayEntry links a forwarded DM back to its source channel and author.
type RelayEntry struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id,omitempty"`
}

// RelayStore maps DM message ids to relay entries. Both implementations are
// bounded: the in-process one by LRU eviction, the Redis one by TTL.
type RelayStore interface {
	Put(ctx context.Context, dmMessageID string, entry RelayEntry) error
	Get(ctx context.Context, dmMessageID string) (RelayEntry, bool, error)
}

// LRURelay keeps the map in process with a hard size cap.
type LRURelay struct {
	cache *lru.Cache[string, RelayEntry]
}

// NewLRURelay builds a relay bounded to size entries.
func NewLRURelay(size int) (*LRURelay, error) {
	cache, err := lru.New[string, RelayEntry](size)
	if err != nil {
		return nil, err
	}
	return &LRURelay{cache: cache}, nil
}

func (r *LRURelay) Put(ctx context.Context, dmMessageID string, entry RelayEntry) error {
	r.cache.Add(dmMessageID, entry)
	return nil
}

func (r *LRURelay) Get(ctx context.Context, dmMessageID string) (RelayEntry, bool, error) {
	entry, ok := r.cache.Get(dmMessageID)
	return entry, ok, nil
}

// RedisRelay keeps entries in Redis with a TTL, so replies keep working
// across restarts and old entries expire on their own.
type RedisRelay struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRelay builds a relay over the given client.
func NewRedisRelay(client *redis.Client, ttl time.Duration) *RedisRelay {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisRelay{client: client, ttl: ttl}
}

func relayKey(dmMessageID string) string {
	return fmt.Sprintf("relay:%s", dmMessageID)
}

func (r *RedisRelay) Put(ctx context.Context, dmMessageID string, entry RelayEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, relayKey(dmMessageID), raw, r.ttl).Err()
}

func (r *RedisRelay) Get(ctx context.Context, dmMessageID string) (RelayEntry, bool, error) {
	raw, err := r.client.Get(ctx, relayKey(dmMessageID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return RelayEntry{}, false, nil
		}
		return RelayEntry{}, false, err
	}
	var entry RelayEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return RelayEntry{}, false, err
	}
	return entry, true, nil
}
