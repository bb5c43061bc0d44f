package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"anires-gateway/middleware/ratelimit/application"
	"anires-gateway/middleware/ratelimit/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisWindowStore_FixedWindowThroughService(t *testing.T) {
	_, rdb := newTestRedis(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := NewRedisWindowStore(rdb, WithRedisClock(clock))
	svc := application.Service{Store: store, Limit: 3, Window: time.Minute, Now: clock}
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		dec, err := svc.Decide(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !dec.Allowed {
			t.Fatalf("expected request %d allowed", i)
		}
	}
	dec, err := svc.Decide(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Allowed {
		t.Fatalf("expected 4th request blocked")
	}

	w, ok, err := store.Get(ctx, "10.0.0.1")
	if err != nil || !ok {
		t.Fatalf("expected stored window, ok=%v err=%v", ok, err)
	}
	if w.Count != 4 {
		t.Fatalf("expected count=4, got %d", w.Count)
	}
	if !w.ResetAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("expected ResetAt=%s, got %s", now.Add(time.Minute), w.ResetAt)
	}

	now = now.Add(time.Minute)
	dec, _ = svc.Decide(ctx, "10.0.0.1")
	if !dec.Allowed || dec.Window.Count != 1 {
		t.Fatalf("expected window reset, got %+v", dec)
	}
}

func TestRedisWindowStore_SetsExpiryAfterReset(t *testing.T) {
	mr, rdb := newTestRedis(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	store := NewRedisWindowStore(rdb,
		WithWindowPrefix("test:win:"),
		WithExpiryGrace(10*time.Second),
		WithRedisClock(func() time.Time { return now }),
	)
	_, err := store.Update(context.Background(), "k", func(domain.ClientWindow, bool) domain.ClientWindow {
		return domain.ClientWindow{Count: 1, ResetAt: now.Add(time.Minute)}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !mr.Exists("test:win:k") {
		t.Fatalf("expected key test:win:k to exist")
	}
	if ttl := mr.TTL("test:win:k"); ttl != 70*time.Second {
		t.Fatalf("expected ttl=70s, got %s", ttl)
	}

	mr.FastForward(71 * time.Second)
	if mr.Exists("test:win:k") {
		t.Fatalf("expected key to expire")
	}
}

func TestRedisWindowStore_ConcurrentUpdatesDoNotLoseIncrements(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewRedisWindowStore(rdb, WithMaxRetries(1000))

	const workers, hits = 8, 10
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < hits; j++ {
				if _, err := store.Update(context.Background(), "k", increment); err != nil {
					t.Errorf("update error: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	w, ok, err := store.Get(context.Background(), "k")
	if err != nil || !ok {
		t.Fatalf("expected stored window, ok=%v err=%v", ok, err)
	}
	if w.Count != workers*hits {
		t.Fatalf("expected %d increments, got %d", workers*hits, w.Count)
	}
}

func TestRedisWindowStore_ReturnsErrorWhenRedisDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	store := NewRedisWindowStore(rdb)
	if _, err := store.Update(context.Background(), "k", increment); err == nil {
		t.Fatalf("expected error with redis down")
	}
}
