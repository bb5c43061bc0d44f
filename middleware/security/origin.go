package security

import (
	"net/http"

	"anires-gateway/internal/observability"
	"anires-gateway/middleware/security/application"
	"anires-gateway/middleware/security/domain"

	"go.uber.org/zap"
)

type OriginOptions struct {
	Gate     application.OriginGate
	Logger   *zap.Logger
	Warn     *observability.WarnSampler
	Observer Observer
}

// OriginCheck aplica o gate de origem. Origem não permitida sempre gera aviso;
// só vira 403 quando o gate decide bloquear.
func OriginCheck(opts OriginOptions) func(next http.Handler) http.Handler {
	log := observability.OrNop(opts.Logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			dec := opts.Gate.Check(origin, r.URL.Path)
			if dec.Reason == domain.ReasonAllowed {
				next.ServeHTTP(w, r)
				return
			}

			opts.Warn.Warn(log, "Tentativa de acesso de origem não permitida",
				zap.String("origin", origin),
				zap.String("path", r.URL.Path),
				zap.Bool("blocked", !dec.Allowed),
			)
			opts.Observer.notify(r, dec)

			if !dec.Allowed {
				writePlain(w, dec.Status, DeniedMessage)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
