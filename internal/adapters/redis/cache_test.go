package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	redisad "sitescan/internal/adapters/redis"
	"sitescan/internal/domain"
)

func newCache(t *testing.T, ttl time.Duration) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return redisad.NewWithClient(c, ttl), mr
}

func TestCache_SaveThenCheck(t *testing.T) {
	cache, mr := newCache(t, 0)
	ctx := context.Background()

	if _, ok := cache.Check(ctx, "example.com", domain.SourceSikayetvar); ok {
		t.Fatalf("expected miss")
	}
	recs := []domain.Complaint{
		{Title: "İade yapılmadı", Content: "Para iadesi hala yok", Author: "x", Sentiment: domain.SentimentNegative},
	}
	if err := cache.Save(ctx, "example.com", domain.SourceSikayetvar, "Example", recs); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("complaints:example_com_sikayetvar") {
		t.Fatalf("expected key complaints:example_com_sikayetvar, keys=%v", mr.Keys())
	}
	got, ok := cache.Check(ctx, "example.com", domain.SourceSikayetvar)
	if !ok || len(got) != 1 {
		t.Fatalf("expected hit with 1 record, got ok=%v n=%d", ok, len(got))
	}
	if got[0].Title != "İade yapılmadı" || !got[0].FromCache || got[0].Sentiment != domain.SentimentNegative {
		t.Fatalf("unexpected record: %+v", got[0])
	}
}

func TestCache_EmptySaveIsNoop(t *testing.T) {
	cache, mr := newCache(t, 0)
	if err := cache.Save(context.Background(), "example.com", domain.SourceTrustpilot, "Example", nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected no keys, got %v", mr.Keys())
	}
}

func TestCache_TTLAndServerDown(t *testing.T) {
	cache, mr := newCache(t, time.Minute)
	ctx := context.Background()
	recs := []domain.Complaint{{Title: "t", Content: "c", Sentiment: domain.SentimentNeutral}}
	if err := cache.Save(ctx, "a.com", domain.SourceTrustpilot, "A", recs); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok := cache.Check(ctx, "a.com", domain.SourceTrustpilot); ok {
		t.Fatalf("expired key should miss")
	}

	mr.Close()
	if _, ok := cache.Check(ctx, "a.com", domain.SourceTrustpilot); ok {
		t.Fatalf("unreachable redis should be a miss")
	}
}

func TestCache_Del(t *testing.T) {
	cache, mr := newCache(t, 0)
	ctx := context.Background()
	recs := []domain.Complaint{{Title: "t", Content: "c", Sentiment: domain.SentimentNeutral}}
	if err := cache.Save(ctx, "example.com", domain.SourceTrustpilot, "Example", recs); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := cache.Del(ctx, "example.com", domain.SourceTrustpilot); err != nil {
		t.Fatalf("del: %v", err)
	}
	if mr.Exists("complaints:example_com_trustpilot") {
		t.Fatalf("key still present: %v", mr.Keys())
	}
	if err := cache.Del(ctx, "example.com", domain.SourceTrustpilot); err != nil {
		t.Fatalf("deleting a missing key: %v", err)
	}
}
