package observability

import (
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// WarnSampler limita a frequência dos avisos repetitivos do pipeline
// (origem não permitida, IP suspeito, limite excedido). Um cliente abusivo
// não pode inundar o log: o excedente é descartado e contado, e a contagem
// sai no próximo aviso emitido como campo "suppressed".
//
// Um *WarnSampler nil não limita nada.
type WarnSampler struct {
	lim        *rate.Limiter
	suppressed atomic.Int64
}

// NewWarnSampler devolve nil quando perSecond <= 0 (sem limite).
func NewWarnSampler(perSecond float64, burst int) *WarnSampler {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &WarnSampler{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (s *WarnSampler) Warn(log *zap.Logger, msg string, fields ...zap.Field) {
	if log == nil {
		return
	}
	if s == nil {
		log.Warn(msg, fields...)
		return
	}
	if !s.lim.Allow() {
		s.suppressed.Add(1)
		return
	}
	if n := s.suppressed.Swap(0); n > 0 {
		fields = append(fields, zap.Int64("suppressed", n))
	}
	log.Warn(msg, fields...)
}

// Suppressed é quantos avisos foram descartados desde o último emitido.
func (s *WarnSampler) Suppressed() int64 {
	if s == nil {
		return 0
	}
	return s.suppressed.Load()
}
