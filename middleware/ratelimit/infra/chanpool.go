package infra

import (
	"context"

	"anires-gateway/middleware/ratelimit/domain"
)

// chanPool ocupa um item do buffer por requisição em andamento.
type chanPool chan struct{}

// NewChanPool cria um SlotPool com `max` vagas.
func NewChanPool(max int) domain.SlotPool {
	return make(chanPool, max)
}

func (p chanPool) Acquire(ctx context.Context) (func(), bool) {
	// vaga livre tem prioridade mesmo com o ctx já encerrado
	select {
	case p <- struct{}{}:
		return p.release, true
	default:
	}
	select {
	case p <- struct{}{}:
		return p.release, true
	case <-ctx.Done():
		return nil, false
	}
}

func (p chanPool) release() { <-p }

func (p chanPool) InUse() int { return len(p) }

func (p chanPool) Cap() int { return cap(p) }
