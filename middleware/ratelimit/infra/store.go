package infra

import (
	"context"
	"sync"
	"time"

	"anires-gateway/middleware/ratelimit/domain"
)

// MemoryWindowStore guarda uma ClientWindow por chave no processo.
//
// Sem janitor as entradas nunca são removidas, só sobrescritas: o mapa cresce
// uma entrada por cliente distinto durante toda a vida do processo.
// StartJanitor (com WithEvictEvery > 0) remove apenas janelas já expiradas,
// que seriam recriadas de qualquer forma no próximo acesso.
type MemoryWindowStore struct {
	mu         sync.Mutex
	windows    map[domain.Key]domain.ClientWindow
	evictEvery time.Duration
	now        func() time.Time
}

var _ domain.WindowStore = (*MemoryWindowStore)(nil)

type StoreOption func(*MemoryWindowStore)

// WithEvictEvery liga a limpeza periódica de janelas expiradas. 0 desliga.
func WithEvictEvery(d time.Duration) StoreOption {
	return func(s *MemoryWindowStore) { s.evictEvery = d }
}

// WithClock troca o relógio usado pela limpeza.
func WithClock(now func() time.Time) StoreOption {
	return func(s *MemoryWindowStore) { s.now = now }
}

func NewMemoryWindowStore(opts ...StoreOption) *MemoryWindowStore {
	s := &MemoryWindowStore{
		windows: make(map[domain.Key]domain.ClientWindow),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryWindowStore) EvictEvery() time.Duration { return s.evictEvery }

func (s *MemoryWindowStore) Get(key domain.Key) (domain.ClientWindow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[key]
	return w, ok
}

// Set substitui a janela inteira (cria ou reinicia).
func (s *MemoryWindowStore) Set(key domain.Key, w domain.ClientWindow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[key] = w
}

// Update implementa domain.WindowStore. fn roda com o lock segurado.
func (s *MemoryWindowStore) Update(_ context.Context, key domain.Key, fn domain.UpdateFunc) (domain.ClientWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.windows[key]
	next := fn(cur, ok)
	s.windows[key] = next
	return next, nil
}

func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Evict remove as janelas expiradas e devolve quantas saíram.
func (s *MemoryWindowStore) Evict() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, w := range s.windows {
		if w.Expired(now) {
			delete(s.windows, k)
			n++
		}
	}
	return n
}

// StartJanitor inicia uma goroutine que chama Evict periodicamente.
// Pare cancelando o contexto. Sem WithEvictEvery não faz nada.
func (s *MemoryWindowStore) StartJanitor(ctx context.Context) {
	if s.evictEvery <= 0 {
		return
	}

	t := time.NewTicker(s.evictEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Evict()
			}
		}
	}()
}
