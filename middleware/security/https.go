package security

import (
	"net/http"
	"strings"

	"anires-gateway/middleware/security/domain"
)

type RedirectOptions struct {
	// TrustForwardedProto usa X-Forwarded-Proto (proxy/CDN na frente) para
	// descobrir o esquema original.
	TrustForwardedProto bool
	Observer            Observer
}

// Scheme devolve "http" ou "https" para a requisição.
func Scheme(r *http.Request, trustForwardedProto bool) string {
	if trustForwardedProto {
		if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
			first, _, _ := strings.Cut(p, ",")
			return strings.ToLower(strings.TrimSpace(first))
		}
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// HTTPSRedirect responde 301 para a mesma URL em https quando o esquema é
// exatamente "http". Nada mais é feito na requisição redirecionada.
func HTTPSRedirect(opts RedirectOptions) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Scheme(r, opts.TrustForwardedProto) != "http" {
				next.ServeHTTP(w, r)
				return
			}

			target := "https://" + r.Host + r.URL.EscapedPath()
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			opts.Observer.notify(r, domain.Deny(domain.ReasonInsecureScheme, domain.StatusMovedPermanently))
			w.Header().Set("Location", target)
			w.WriteHeader(http.StatusMovedPermanently)
		})
	}
}
