package infra

import (
	"context"
	"sync"

	"anires-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// Snapshot é uma cópia consistente de todos os contadores.
type Snapshot struct {
	Total    Counters            `json:"total"`
	ByRoute  map[string]Counters `json:"byRoute"`
	ByReason map[string]int64    `json:"byReason"`
	ByKey    map[string]Counters `json:"byKey,omitempty"`
}

// MemoryStatsStore é uma implementação simples em memória, exposta pelo
// control plane em /stats.
//
// Não faz expiração: com trackKeys ligado cresce uma entrada por cliente.
type MemoryStatsStore struct {
	mu       sync.Mutex
	total    Counters
	byRoute  map[string]Counters
	byReason map[string]int64
	byKey    map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute:  make(map[string]Counters),
		byReason: make(map[string]int64),
		byKey:    make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)

	c := s.byRoute[route]
	c.add(ev.Allowed)
	s.byRoute[route] = c

	if ev.Reason != "" {
		s.byReason[ev.Reason]++
	}

	if s.trackKeys {
		k := s.byKey[string(ev.Key)]
		k.add(ev.Allowed)
		s.byKey[string(ev.Key)] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{
		Total:    s.total,
		ByRoute:  make(map[string]Counters, len(s.byRoute)),
		ByReason: make(map[string]int64, len(s.byReason)),
	}
	for k, v := range s.byRoute {
		out.ByRoute[k] = v
	}
	for k, v := range s.byReason {
		out.ByReason[k] = v
	}
	if s.trackKeys {
		out.ByKey = make(map[string]Counters, len(s.byKey))
		for k, v := range s.byKey {
			out.ByKey[k] = v
		}
	}
	return out
}
