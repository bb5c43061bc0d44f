package infra

import (
	"context"
	"strings"
	"time"

	"anires-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore espelha as decisões do pipeline no Redis para que várias
// instâncias somem nos mesmos contadores.
//
// Layout (prefixo padrão "edge:stats"):
//
//	<prefix>:total           hash allowed/denied, cumulativo
//	<prefix>:reason          hash motivo -> contagem, cumulativo
//	<prefix>:route           hash "METHOD /path:allowed|denied"
//	<prefix>:<bucket>:<ts>   hash allowed/denied/motivo da fatia de tempo, expira em ttl
//	<prefix>:key:<ip>        hash allowed/denied por cliente (WithStatsTrackKeys), expira em ttl
type RedisStatsStore struct {
	rdb redis.UniversalClient

	prefix    string
	ttl       time.Duration
	bucket    string
	trackKeys bool
}

var _ domain.StatsStore = (*RedisStatsStore)(nil)

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

// WithStatsBucket aceita "minute", "hour" ou "none".
func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

// WithStatsTrackKeys liga contadores por IP. Cuidado com a cardinalidade.
func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "edge:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var bucketLayouts = map[string]string{
	"minute": "200601021504",
	"hour":   "2006010215",
}

// bucketKey devolve "" quando a série temporal está desligada.
func (s *RedisStatsStore) bucketKey(at time.Time) string {
	layout, ok := bucketLayouts[s.bucket]
	if !ok {
		return ""
	}
	return s.prefix + ":" + s.bucket + ":" + at.UTC().Format(layout)
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	outcome := "denied"
	if ev.Allowed {
		outcome = "allowed"
	}
	route := strings.TrimSpace(ev.Method + " " + ev.Path)
	client := strings.TrimSpace(string(ev.Key))

	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, s.prefix+":total", outcome, 1)
		if ev.Reason != "" {
			pipe.HIncrBy(ctx, s.prefix+":reason", ev.Reason, 1)
		}
		if route != "" {
			pipe.HIncrBy(ctx, s.prefix+":route", route+":"+outcome, 1)
		}
		if bk := s.bucketKey(at); bk != "" {
			pipe.HIncrBy(ctx, bk, outcome, 1)
			if ev.Reason != "" {
				pipe.HIncrBy(ctx, bk, ev.Reason, 1)
			}
			s.expire(ctx, pipe, bk)
		}
		if s.trackKeys && client != "" {
			kk := s.prefix + ":key:" + client
			pipe.HIncrBy(ctx, kk, outcome, 1)
			s.expire(ctx, pipe, kk)
		}
		return nil
	})
	return err
}

func (s *RedisStatsStore) expire(ctx context.Context, pipe redis.Pipeliner, key string) {
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}
