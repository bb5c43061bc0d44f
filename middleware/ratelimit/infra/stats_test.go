package infra

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"anires-gateway/middleware/ratelimit/domain"
)

func TestMemoryStatsStore_CountsByRouteAndReason(t *testing.T) {
	s := NewMemoryStatsStore()
	ctx := context.Background()

	_ = s.Record(ctx, domain.StatsEvent{Key: "1.1.1.1", Allowed: true, Reason: "allowed", Method: "GET", Path: "/api/x"})
	_ = s.Record(ctx, domain.StatsEvent{Key: "1.1.1.1", Allowed: false, Reason: "rate_limited", Method: "GET", Path: "/api/x"})
	_ = s.Record(ctx, domain.StatsEvent{Key: "2.2.2.2", Allowed: false, Reason: "origin_rejected", Method: "POST", Path: "/admin/"})

	snap := s.Snapshot()
	if snap.Total != (Counters{Allowed: 1, Denied: 2}) {
		t.Fatalf("unexpected total: %+v", snap.Total)
	}
	if got := snap.ByRoute["GET /api/x"]; got != (Counters{Allowed: 1, Denied: 1}) {
		t.Fatalf("unexpected route counters: %+v", got)
	}
	if snap.ByReason["rate_limited"] != 1 || snap.ByReason["origin_rejected"] != 1 {
		t.Fatalf("unexpected reason counters: %+v", snap.ByReason)
	}
	if snap.ByKey != nil {
		t.Fatalf("expected no per-key counters without WithTrackKeys")
	}
}

func TestMemoryStatsStore_TrackKeys(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	_ = s.Record(context.Background(), domain.StatsEvent{Key: "k", Allowed: false})

	if got := s.Snapshot().ByKey["k"]; got.Denied != 1 {
		t.Fatalf("expected 1 denied for k, got %+v", got)
	}
}

func TestRedisStatsStore_Record(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisStatsStore(rdb, WithStatsPrefix("st:"), WithStatsTTL(time.Hour), WithStatsTrackKeys(true))

	at := time.Date(2026, 1, 1, 12, 30, 0, 0, time.UTC)
	err := s.Record(context.Background(), domain.StatsEvent{
		Key: "10.0.0.1", Allowed: false, Reason: "rate_limited", Method: "GET", Path: "/api/claim", At: at,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := mr.HGet("st:total", "denied"); got != "1" {
		t.Fatalf("expected total denied=1, got %q", got)
	}
	if got := mr.HGet("st:reason", "rate_limited"); got != "1" {
		t.Fatalf("expected reason rate_limited=1, got %q", got)
	}
	if got := mr.HGet("st:minute:202601011230", "denied"); got != "1" {
		t.Fatalf("expected minute bucket denied=1, got %q", got)
	}
	if got := mr.HGet("st:route", "GET /api/claim:denied"); got != "1" {
		t.Fatalf("expected route counter, got %q", got)
	}
	if got := mr.HGet("st:minute:202601011230", "rate_limited"); got != "1" {
		t.Fatalf("expected minute bucket reason counter, got %q", got)
	}
	if ttl := mr.TTL("st:key:10.0.0.1"); ttl != time.Hour {
		t.Fatalf("expected key ttl=1h, got %s", ttl)
	}
}

func TestRedisStatsStore_HourBucketAndNone(t *testing.T) {
	mr, rdb := newTestRedis(t)
	at := time.Date(2026, 1, 1, 12, 30, 0, 0, time.UTC)
	ev := domain.StatsEvent{Allowed: true, Reason: "allowed", At: at}

	hourly := NewRedisStatsStore(rdb, WithStatsPrefix("h"), WithStatsBucket("hour"))
	if err := hourly.Record(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mr.HGet("h:hour:2026010112", "allowed"); got != "1" {
		t.Fatalf("expected hour bucket allowed=1, got %q", got)
	}

	flat := NewRedisStatsStore(rdb, WithStatsPrefix("n"), WithStatsBucket("none"))
	if err := flat.Record(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "n:minute:") || strings.HasPrefix(k, "n:hour:") {
			t.Fatalf("expected no time series with bucket=none, found %s", k)
		}
	}
}

type failingStats struct{ err error }

func (f failingStats) Record(context.Context, domain.StatsEvent) error { return f.err }

func TestTeeStatsStore_FansOutAndCombinesErrors(t *testing.T) {
	a := NewMemoryStatsStore()
	b := NewMemoryStatsStore()
	errBoom := errors.New("boom")

	tee := NewTeeStatsStore(a, nil, failingStats{err: errBoom}, b)
	err := tee.Record(context.Background(), domain.StatsEvent{Allowed: true, Reason: "allowed"})

	if !errors.Is(err, errBoom) {
		t.Fatalf("expected combined error to wrap boom, got %v", err)
	}
	if a.Total().Allowed != 1 || b.Total().Allowed != 1 {
		t.Fatalf("expected both memory stores to record, got %+v %+v", a.Total(), b.Total())
	}
}

func TestNewTeeStatsStore_SingleStoreIsReturnedAsIs(t *testing.T) {
	a := NewMemoryStatsStore()
	if got := NewTeeStatsStore(nil, a); got != domain.StatsStore(a) {
		t.Fatalf("expected the single store to be returned unwrapped")
	}
}
