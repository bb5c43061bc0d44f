package ratelimit

import (
	"net/http"
	"time"

	"anires-gateway/internal/observability"
	"anires-gateway/middleware/ratelimit/application"
	"anires-gateway/middleware/ratelimit/domain"
	"anires-gateway/middleware/ratelimit/infra"

	"go.uber.org/zap"
)

// OverloadedMessage é o corpo (texto puro) da resposta quando não há vaga.
const OverloadedMessage = "Serviço temporariamente sobrecarregado. Tente novamente em instantes."

// ConcurrencyOptions limita quantas requisições chegam juntas à aplicação.
// Max <= 0 e Pool nil desligam o limite.
type ConcurrencyOptions struct {
	Max  int
	Pool domain.SlotPool // opcional; compartilhado com o control plane

	RejectStatus   int
	RetryAfter     time.Duration
	AcquireTimeout time.Duration

	Stats domain.StatsStore
	KeyFn KeyFunc
	Now   func() time.Time

	Logger *zap.Logger
	Warn   *observability.WarnSampler
}

func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil && opts.Max > 0 {
		opts.Pool = infra.NewChanPool(opts.Max)
	}
	if opts.Pool == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(false)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := observability.OrNop(opts.Logger)

	svc := application.ConcurrencyService{Pool: opts.Pool, AcquireTimeout: opts.AcquireTimeout}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if ok {
				defer release()
				next.ServeHTTP(w, r)
				return
			}

			key := opts.KeyFn(r)
			inUse, capacity := svc.Load()
			opts.Warn.Warn(log, "Limite de concorrência atingido",
				zap.String("ip", string(key)),
				zap.String("path", r.URL.Path),
				zap.Int("inUse", inUse),
				zap.Int("capacity", capacity),
			)
			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:    key,
					Reason: domain.ReasonOverloaded,
					Method: r.Method,
					Path:   r.URL.Path,
					At:     opts.Now(),
				})
			}
			if opts.RetryAfter > 0 {
				w.Header().Set("Retry-After", formatSeconds(opts.RetryAfter))
			}
			writePlain(w, opts.RejectStatus, OverloadedMessage)
		})
	}
}
