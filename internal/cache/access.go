// Package cache keeps short-lived copies of users' accessible project
// sets in Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/huangang/projecthub/internal/membership"
	"github.com/huangang/projecthub/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "projecthub:access:"

// AccessCache wraps a membership.Scope. Redis errors never fail a lookup;
// the cache is bypassed and the wrapped scope answers instead.
//
// Each user has a generation counter that Invalidate bumps. A fill is
// stamped with the generation read before the set was computed, and
// reads only accept an entry stamped with the current generation, so a
// slow fill that lands after an invalidation is ignored.
type AccessCache struct {
	next membership.Scope
	rdb  redis.UniversalClient
	ttl  time.Duration
}

var _ membership.Scope = (*AccessCache)(nil)

type entry struct {
	Gen int64  `json:"gen"`
	IDs []uint `json:"ids"`
}

func NewAccessCache(next membership.Scope, rdb redis.UniversalClient, ttl time.Duration) *AccessCache {
	return &AccessCache{next: next, rdb: rdb, ttl: ttl}
}

func key(userID uint) string {
	return fmt.Sprintf("%s%d", keyPrefix, userID)
}

func genKey(userID uint) string {
	return fmt.Sprintf("%sgen:%d", keyPrefix, userID)
}

func (c *AccessCache) AccessibleProjects(ctx context.Context, userID uint) (membership.ProjectSet, error) {
	vals, err := c.rdb.MGet(ctx, genKey(userID), key(userID)).Result()
	if err != nil {
		logger.Warn().Err(err).Uint("user_id", userID).Msg("[AccessCache] read failed, bypassing cache")
		return c.next.AccessibleProjects(ctx, userID)
	}

	gen, err := parseGen(vals[0])
	if err != nil {
		logger.Warn().Err(err).Uint("user_id", userID).Msg("[AccessCache] bad generation, bypassing cache")
		return c.next.AccessibleProjects(ctx, userID)
	}
	if raw, ok := vals[1].(string); ok {
		var e entry
		if jsonErr := json.Unmarshal([]byte(raw), &e); jsonErr != nil {
			logger.Warn().Uint("user_id", userID).Msg("[AccessCache] discarding malformed entry")
		} else if e.Gen == gen {
			return membership.NewProjectSet(e.IDs...), nil
		}
	}

	set, err := c.next.AccessibleProjects(ctx, userID)
	if err != nil {
		return nil, err
	}

	data, _ := json.Marshal(entry{Gen: gen, IDs: set.IDs()})
	if err := c.rdb.Set(ctx, key(userID), data, c.ttl).Err(); err != nil {
		logger.Warn().Err(err).Uint("user_id", userID).Msg("[AccessCache] write failed")
	}
	return set, nil
}

// Invalidate bumps the users' generations and drops their cached sets
// so the next lookup sees fresh membership.
func (c *AccessCache) Invalidate(ctx context.Context, userIDs ...uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			pipe.Incr(ctx, genKey(id))
			pipe.Del(ctx, key(id))
		}
		return nil
	})
	return err
}

// parseGen reads a generation counter; a missing counter is generation 0.
func parseGen(v interface{}) (int64, error) {
	switch g := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.ParseInt(g, 10, 64)
	}
	return 0, fmt.Errorf("unexpected generation type %T", v)
}

// NewClient builds a Redis client and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}
