package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"anires-gateway/internal/observability"
	"anires-gateway/middleware/ratelimit/application"
	"anires-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

// RejectMessage é o corpo (texto puro) da resposta 429.
const RejectMessage = "Muitas solicitações. Tente novamente mais tarde."

type KeyFunc func(r *http.Request) domain.Key

type Options struct {
	Store domain.WindowStore
	Stats domain.StatsStore
	KeyFn KeyFunc
	// TrustXForwardedFor só deve ser ligado atrás de um proxy confiável.
	TrustXForwardedFor bool

	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
	Now        func() time.Time

	AddRateLimitHeaders bool

	Logger *zap.Logger
	Warn   *observability.WarnSampler
}

// DefaultKeyFunc identifica o cliente pelo endereço de rede.
// Sem endereço utilizável cai em domain.UnknownKey (balde compartilhado).
func DefaultKeyFunc(trustXFF bool) KeyFunc {
	return func(r *http.Request) domain.Key {
		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return domain.Key(ip)
				}
			}
		}

		// fallback: RemoteAddr
		addr := strings.TrimSpace(r.RemoteAddr)
		host, _, err := net.SplitHostPort(addr)
		if err == nil && host != "" {
			return domain.Key(host)
		}
		if addr != "" {
			return domain.Key(addr)
		}
		return domain.UnknownKey
	}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.TrustXForwardedFor)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := observability.OrNop(opts.Logger)

	svc := application.Service{
		Store:      opts.Store,
		Limit:      opts.Limit,
		Window:     opts.Window,
		RetryAfter: opts.RetryAfter,
		Now:        opts.Now,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			dec, err := svc.Decide(r.Context(), key)
			if err != nil {
				log.Error("rate limit store error", zap.String("key", string(key)), zap.Error(err))
			}

			if opts.AddRateLimitHeaders && err == nil && opts.Store != nil {
				reset := dec.Window.ResetAt.Sub(opts.Now())
				if reset < 0 {
					reset = 0
				}
				w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
				w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining()))
				w.Header().Set("X-RateLimit-Reset", formatSeconds(reset))
			}

			if opts.Stats != nil {
				reason := "allowed"
				if !dec.Allowed {
					reason = "rate_limited"
				}
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     key,
					Allowed: dec.Allowed,
					Reason:  reason,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      opts.Now(),
				})
			}

			if !dec.Allowed {
				opts.Warn.Warn(log, "Limite de taxa excedido para IP",
					zap.String("ip", string(key)),
					zap.Int64("count", dec.Window.Count),
				)
				w.Header().Set("Retry-After", formatSeconds(dec.RetryAfter))
				writePlain(w, http.StatusTooManyRequests, RejectMessage)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writePlain responde texto puro sem o "\n" que http.Error acrescenta.
func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
