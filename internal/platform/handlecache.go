package platform

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bundlesync/pkg/rediskey"
)

// HandleCache fronts the platform product-handle lookup with redis. Handles
// change rarely, so a short TTL keeps display links fresh enough; any cache
// failure falls through to the direct lookup.
type HandleCache struct {
	client *Client
	redis  *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewHandleCache(client *Client, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *HandleCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &HandleCache{client: client, redis: rdb, ttl: ttl, log: log}
}

func (h *HandleCache) Handles(ctx context.Context, productIDs []string) (map[string]string, error) {
	if h.redis == nil {
		return h.client.Handles(ctx, productIDs)
	}

	handles := make(map[string]string, len(productIDs))
	missing := productIDs

	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = rediskey.BuildHandleKey(id)
	}

	cached, err := h.redis.MGet(ctx, keys...).Result()
	if err != nil {
		h.log.Debug("handle cache read failed", zap.Error(err))
	} else {
		missing = splitCached(cached, productIDs, handles)
	}

	if len(missing) == 0 {
		return handles, nil
	}

	fresh, err := h.client.Handles(ctx, missing)
	if err != nil {
		if len(handles) > 0 {
			// Partial data still enriches the display.
			return handles, nil
		}
		return nil, err
	}

	for id, handle := range fresh {
		handles[id] = handle
		if err := h.redis.Set(ctx, rediskey.BuildHandleKey(id), handle, h.ttl).Err(); err != nil {
			h.log.Debug("handle cache write failed", zap.String("product_id", id), zap.Error(err))
		}
	}

	return handles, nil
}

// splitCached sorts MGet results into resolved handles and the product IDs
// that still need a direct lookup. The returned slice is freshly allocated;
// the caller's productIDs is never written through.
func splitCached(cached []interface{}, productIDs []string, handles map[string]string) []string {
	missing := make([]string, 0, len(productIDs))
	for i, v := range cached {
		if s, ok := v.(string); ok && s != "" {
			handles[productIDs[i]] = s
			continue
		}
		missing = append(missing, productIDs[i])
	}
	return missing
}
