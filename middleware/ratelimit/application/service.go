package application

import (
	"context"
	"time"

	"anires-gateway/middleware/ratelimit/domain"
)

const (
	DefaultLimit      = 60
	DefaultWindow     = 60 * time.Second
	DefaultRetryAfter = 60 * time.Second
)

// Service concentra a regra de janela fixa do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store      domain.WindowStore
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
	// Now permite injetar um relógio nos testes.
	Now func() time.Time
}

// Decide contabiliza uma requisição de `key` e decide se ela pode seguir.
//
// Janela ausente ou expirada: recomeça com Count=1 e libera. Caso contrário
// incrementa e bloqueia quando Count > Limit. O contador continua subindo
// depois do limite (sem teto e sem rollback), então o bloqueio vale até o fim
// da janela.
//
// Em erro do store a requisição é liberada e o erro devolvido para log.
func (s Service) Decide(ctx context.Context, key domain.Key) (domain.Decision, error) {
	if s.Store == nil {
		return domain.Decision{Allowed: true}, nil
	}
	s = s.withDefaults()
	if key == "" {
		key = domain.UnknownKey
	}

	now := s.Now()
	win, err := s.Store.Update(ctx, key, func(cur domain.ClientWindow, found bool) domain.ClientWindow {
		if !found || cur.Expired(now) {
			return domain.ClientWindow{Count: 1, ResetAt: now.Add(s.Window)}
		}
		cur.Count++
		return cur
	})
	if err != nil {
		return domain.Decision{Allowed: true, Limit: s.Limit}, err
	}

	dec := domain.Decision{Allowed: win.Count <= int64(s.Limit), Limit: s.Limit, Window: win}
	if !dec.Allowed {
		dec.RetryAfter = s.RetryAfter
	}
	return dec, nil
}

func (s Service) withDefaults() Service {
	if s.Limit <= 0 {
		s.Limit = DefaultLimit
	}
	if s.Window <= 0 {
		s.Window = DefaultWindow
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = DefaultRetryAfter
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}
