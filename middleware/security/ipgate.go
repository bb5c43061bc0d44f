package security

import (
	"net/http"

	"anires-gateway/internal/observability"
	"anires-gateway/middleware/security/application"

	"go.uber.org/zap"
)

type IPOptions struct {
	Gate application.IPGate
	// ClientIP extrai o IP do cliente (o mesmo identificador do rate limit).
	ClientIP func(r *http.Request) string
	Logger   *zap.Logger
	Warn     *observability.WarnSampler
	Observer Observer
}

// SuspiciousIP responde 403 para IPs da lista de suspeitos.
func SuspiciousIP(opts IPOptions) func(next http.Handler) http.Handler {
	if opts.Gate.Len() == 0 || opts.ClientIP == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	log := observability.OrNop(opts.Logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := opts.ClientIP(r)
			dec := opts.Gate.Check(ip)
			if dec.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			opts.Warn.Warn(log, "Tentativa de acesso de IP suspeito", zap.String("ip", ip))
			opts.Observer.notify(r, dec)
			writePlain(w, dec.Status, DeniedMessage)
		})
	}
}
