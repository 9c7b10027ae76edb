package graph

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Kirthidass/Neural-Cortex/cache"
)

const (
	visualGraphCacheTTL     = 60 * time.Second
	visualGraphCacheTimeout = 300 * time.Millisecond
)

// visualCache keeps recently computed visual graphs per user. Strictly
// best-effort: every failure degrades to a recompute.
type visualCache struct {
	client *redis.Client
}

func newVisualCache(client *redis.Client) *visualCache {
	if client == nil {
		return nil
	}
	return &visualCache{client: client}
}

func (v *visualCache) cacheContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), visualGraphCacheTimeout)
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= visualGraphCacheTimeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, visualGraphCacheTimeout)
}

func (v *visualCache) key(userID uint64) string {
	if v == nil || v.client == nil || userID == 0 {
		return ""
	}
	return cache.Key("graph", "visual", strconv.FormatUint(userID, 10))
}

func (v *visualCache) get(ctx context.Context, userID uint64) (*VisualGraph, bool) {
	key := v.key(userID)
	if key == "" {
		return nil, false
	}

	ctx, cancel := v.cacheContext(ctx)
	defer cancel()

	data, err := v.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var cached VisualGraph
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}
	return &cached, true
}

func (v *visualCache) store(ctx context.Context, userID uint64, visual *VisualGraph) {
	key := v.key(userID)
	if key == "" || visual == nil {
		return
	}

	payload, err := json.Marshal(visual)
	if err != nil {
		log.Printf("graph: marshal visual graph cache payload failed: %v", err)
		return
	}

	ctx, cancel := v.cacheContext(ctx)
	defer cancel()

	if err := v.client.Set(ctx, key, payload, visualGraphCacheTTL).Err(); err != nil {
		log.Printf("graph: store visual graph cache failed: %v", err)
	}
}

// Invalidate drops the cached visual graph for the user. Called after any
// ingestion or rebuild that mutates the node set.
func (m *Module) Invalidate(ctx context.Context, userID uint64) {
	if m == nil || m.cache == nil {
		return
	}
	key := m.cache.key(userID)
	if key == "" {
		return
	}

	ctx, cancel := m.cache.cacheContext(ctx)
	defer cancel()

	if err := m.cache.client.Del(ctx, key).Err(); err != nil {
		log.Printf("graph: invalidate visual graph cache failed: %v", err)
	}
}
