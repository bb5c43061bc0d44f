package infra

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"anires-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// ErrContention indica que Update desistiu depois de perder a corrida do
// WATCH várias vezes seguidas para a mesma chave.
var ErrContention = errors.New("redis window store: too much contention")

// RedisWindowStore compartilha as janelas entre instâncias do gateway.
//
// Cada chave vira um hash {count, reset_at} (reset_at em ms Unix). O
// read-modify-write roda numa transação otimista (WATCH/MULTI/EXEC), então a
// mesma UpdateFunc do store em memória vale aqui. A chave expira sozinha um
// pouco depois de ResetAt.
type RedisWindowStore struct {
	rdb redis.UniversalClient

	prefix     string
	grace      time.Duration
	maxRetries int
	now        func() time.Time
}

var _ domain.WindowStore = (*RedisWindowStore)(nil)

type RedisStoreOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisStoreOption {
	return func(s *RedisWindowStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithExpiryGrace define quanto tempo depois de ResetAt a chave ainda vive no Redis.
func WithExpiryGrace(d time.Duration) RedisStoreOption {
	return func(s *RedisWindowStore) { s.grace = d }
}

func WithMaxRetries(n int) RedisStoreOption {
	return func(s *RedisWindowStore) { s.maxRetries = n }
}

func WithRedisClock(now func() time.Time) RedisStoreOption {
	return func(s *RedisWindowStore) { s.now = now }
}

func NewRedisWindowStore(rdb redis.UniversalClient, opts ...RedisStoreOption) *RedisWindowStore {
	s := &RedisWindowStore{
		rdb:        rdb,
		prefix:     "ratelimit:window",
		grace:      time.Minute,
		maxRetries: 10,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxRetries <= 0 {
		s.maxRetries = 1
	}
	return s
}

func (s *RedisWindowStore) key(k domain.Key) string {
	return s.prefix + ":" + string(k)
}

// Get lê a janela atual sem alterá-la.
func (s *RedisWindowStore) Get(ctx context.Context, key domain.Key) (domain.ClientWindow, bool, error) {
	vals, err := s.rdb.HMGet(ctx, s.key(key), "count", "reset_at").Result()
	if err != nil {
		return domain.ClientWindow{}, false, fmt.Errorf("redis window get: %w", err)
	}
	w, ok := parseWindow(vals)
	return w, ok, nil
}

func (s *RedisWindowStore) Update(ctx context.Context, key domain.Key, fn domain.UpdateFunc) (domain.ClientWindow, error) {
	rkey := s.key(key)

	var out domain.ClientWindow
	txf := func(tx *redis.Tx) error {
		vals, err := tx.HMGet(ctx, rkey, "count", "reset_at").Result()
		if err != nil {
			return err
		}
		cur, found := parseWindow(vals)
		next := fn(cur, found)

		ttl := next.ResetAt.Sub(s.now()) + s.grace
		if ttl < time.Second {
			ttl = time.Second
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, rkey, "count", next.Count, "reset_at", next.ResetAt.UnixMilli())
			pipe.PExpire(ctx, rkey, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		out = next
		return nil
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, rkey)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.ClientWindow{}, fmt.Errorf("redis window update: %w", err)
	}
	return domain.ClientWindow{}, ErrContention
}

func parseWindow(vals []interface{}) (domain.ClientWindow, bool) {
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return domain.ClientWindow{}, false
	}
	count, err := strconv.ParseInt(fmt.Sprint(vals[0]), 10, 64)
	if err != nil {
		return domain.ClientWindow{}, false
	}
	resetMs, err := strconv.ParseInt(fmt.Sprint(vals[1]), 10, 64)
	if err != nil {
		return domain.ClientWindow{}, false
	}
	return domain.ClientWindow{Count: count, ResetAt: time.UnixMilli(resetMs)}, true
}
