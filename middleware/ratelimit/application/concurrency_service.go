package application

import (
	"context"
	"time"

	"anires-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService reserva uma vaga na aplicação protegida para cada
// requisição que passou pelos gates de borda.
type ConcurrencyService struct {
	Pool domain.SlotPool
	// AcquireTimeout <= 0 espera enquanto o ctx da requisição viver.
	AcquireTimeout time.Duration
}

// Acquire devolve ok=false quando não houve vaga a tempo; nesse caso release
// é nil. Sem Pool tudo passa.
func (s ConcurrencyService) Acquire(ctx context.Context) (release func(), ok bool) {
	if s.Pool == nil {
		return func() {}, true
	}
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}
	return s.Pool.Acquire(ctx)
}

// Load informa vagas ocupadas e capacidade total (0, 0 sem Pool).
func (s ConcurrencyService) Load() (inUse, capacity int) {
	if s.Pool == nil {
		return 0, 0
	}
	return s.Pool.InUse(), s.Pool.Cap()
}
