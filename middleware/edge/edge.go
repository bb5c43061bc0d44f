package edge

import (
	"net/http"
	"strings"
	"time"

	"anires-gateway/internal/observability"
	"anires-gateway/middleware/ratelimit"
	rldomain "anires-gateway/middleware/ratelimit/domain"
	"anires-gateway/middleware/ratelimit/infra"
	"anires-gateway/middleware/security"
	"anires-gateway/middleware/security/application"
	"anires-gateway/middleware/security/domain"

	"go.uber.org/zap"
)

// RateLimitedPrefix é o único prefixo sujeito a rate limit.
const RateLimitedPrefix = "/api/"

type Options struct {
	Mode           domain.Mode
	AllowedOrigins []string
	SuspiciousIPs  []string
	Headers        security.HeaderSet
	StaticPrefixes []string

	RedirectHTTPS       bool
	TrustForwardedProto bool
	TrustXForwardedFor  bool

	Store               rldomain.WindowStore
	Limit               int
	Window              time.Duration
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
	Now                 func() time.Time

	Stats  rldomain.StatsStore
	Logger *zap.Logger
	Warn   *observability.WarnSampler
}

// Middleware devolve o pipeline completo. AllowedOrigins, Headers e
// StaticPrefixes nil usam os padrões; sem Store cada pipeline ganha seu
// próprio MemoryWindowStore.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.AllowedOrigins == nil {
		opts.AllowedOrigins = domain.DefaultAllowedOrigins
	}
	if opts.StaticPrefixes == nil {
		opts.StaticPrefixes = DefaultStaticPrefixes
	}
	if opts.Headers == nil {
		opts.Headers = security.DefaultHeaders()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Store == nil {
		opts.Store = defaultStore(opts)
	}
	log := observability.OrNop(opts.Logger)

	keyFn := ratelimit.DefaultKeyFunc(opts.TrustXForwardedFor)
	observe := statsObserver(opts.Stats, keyFn, opts.Now)

	rateLimit := ratelimit.Middleware(ratelimit.Options{
		Store:               opts.Store,
		Stats:               opts.Stats,
		KeyFn:               keyFn,
		Limit:               opts.Limit,
		Window:              opts.Window,
		RetryAfter:          opts.RetryAfter,
		Now:                 opts.Now,
		AddRateLimitHeaders: opts.AddRateLimitHeaders,
		Logger:              log,
		Warn:                opts.Warn,
	})
	origin := security.OriginCheck(security.OriginOptions{
		Gate:     application.NewOriginGate(opts.AllowedOrigins, opts.Mode),
		Logger:   log,
		Warn:     opts.Warn,
		Observer: observe,
	})
	suspicious := security.SuspiciousIP(security.IPOptions{
		Gate:     application.NewIPGate(opts.SuspiciousIPs),
		ClientIP: func(r *http.Request) string { return string(keyFn(r)) },
		Logger:   log,
		Warn:     opts.Warn,
		Observer: observe,
	})
	headers := security.Headers(opts.Headers)

	stages := []func(http.Handler) http.Handler{
		onlyPrefix(RateLimitedPrefix, rateLimit),
		origin,
		suspicious,
		headers,
	}
	if opts.RedirectHTTPS {
		stages = append([]func(http.Handler) http.Handler{
			security.HTTPSRedirect(security.RedirectOptions{
				TrustForwardedProto: opts.TrustForwardedProto,
				Observer:            observe,
			}),
		}, stages...)
	}

	return func(next http.Handler) http.Handler {
		gated := chain(next, stages...)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsStatic(r.URL.Path, opts.StaticPrefixes) {
				next.ServeHTTP(w, r)
				return
			}
			gated.ServeHTTP(w, r)
		})
	}
}

// defaultStore compartilha o relógio do pipeline para que a limpeza e o
// janelamento concordem sobre o que já expirou.
func defaultStore(opts Options) *infra.MemoryWindowStore {
	if opts.Now == nil {
		return infra.NewMemoryWindowStore()
	}
	return infra.NewMemoryWindowStore(infra.WithClock(opts.Now))
}

// chain aplica as etapas na ordem dada: a primeira é a mais externa.
func chain(h http.Handler, stages ...func(http.Handler) http.Handler) http.Handler {
	for i := len(stages) - 1; i >= 0; i-- {
		h = stages[i](h)
	}
	return h
}

func onlyPrefix(prefix string, mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, prefix) {
				wrapped.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func statsObserver(stats rldomain.StatsStore, keyFn ratelimit.KeyFunc, now func() time.Time) security.Observer {
	if stats == nil {
		return nil
	}
	return func(r *http.Request, d domain.Decision) {
		_ = stats.Record(r.Context(), rldomain.StatsEvent{
			Key:     keyFn(r),
			Allowed: d.Allowed,
			Reason:  string(d.Reason),
			Method:  r.Method,
			Path:    r.URL.Path,
			At:      now(),
		})
	}
}
