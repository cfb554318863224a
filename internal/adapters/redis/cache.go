package redisad

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"sitescan/internal/adapters/cachestore"
	"sitescan/internal/adapters/observability"
	"sitescan/internal/domain"
)

// Cache stores the same text block the file store writes, one key per (domain, source).
type Cache struct {
	c   *redis.Client
	ttl time.Duration // 0 = no expiry
}

func New(addr, pass string, db int, ttl time.Duration) *Cache {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}), ttl)
}

func NewWithClient(c *redis.Client, ttl time.Duration) *Cache {
	return &Cache{c: c, ttl: ttl}
}

func key(host, source string) string { return "complaints:" + cachestore.Key(host, source) }

func (r *Cache) Check(ctx context.Context, host, source string) ([]domain.Complaint, bool) {
	v, err := r.c.Get(ctx, key(host, source)).Result()
	if err == redis.Nil {
		observability.ObserveCache("redis", "miss")
		return nil, false
	}
	if err != nil {
		log.Warn().Err(err).Str("domain", host).Str("source", source).Msg("redis cache read failed")
		observability.ObserveCache("redis", "miss")
		return nil, false
	}
	recs := cachestore.Decode(v)
	if len(recs) == 0 {
		observability.ObserveCache("redis", "miss")
		return nil, false
	}
	observability.ObserveCache("redis", "hit")
	return recs, true
}

func (r *Cache) Save(ctx context.Context, host, source, siteName string, records []domain.Complaint) error {
	if len(records) == 0 {
		return nil
	}
	observability.ObserveCache("redis", "set")
	return r.c.Set(ctx, key(host, source), cachestore.Encode(host, source, siteName, records), r.ttl).Err()
}

func (r *Cache) Del(ctx context.Context, host, source string) error {
	observability.ObserveCache("redis", "del")
	return r.c.Del(ctx, key(host, source)).Err()
}

func (r *Cache) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }
