package application

import (
	"net/url"
	"strings"

	"anires-gateway/middleware/security/domain"
)

type allowedOrigin struct {
	raw    string
	scheme string
	host   string
}

// OriginGate compara o header Origin com a lista de origens permitidas.
type OriginGate struct {
	allowed []allowedOrigin
	mode    domain.Mode
}

func NewOriginGate(origins []string, mode domain.Mode) OriginGate {
	g := OriginGate{mode: mode}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		ao := allowedOrigin{raw: o}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			ao.scheme = strings.ToLower(u.Scheme)
			ao.host = strings.ToLower(u.Host)
		}
		g.allowed = append(g.allowed, ao)
	}
	return g
}

func (g OriginGate) Mode() domain.Mode { return g.mode }

// IsAllowed: igual a uma origem da lista, a lista como sufixo literal, ou
// subdomínio (mesmo esquema, host terminando em "."+host permitido).
// Fora de produção também aceita http://localhost:* e *.vercel.app.
func (g OriginGate) IsAllowed(origin string) bool {
	if !g.mode.IsProduction() &&
		(strings.HasPrefix(origin, "http://localhost:") || strings.Contains(origin, ".vercel.app")) {
		return true
	}

	var scheme, host string
	if u, err := url.Parse(origin); err == nil {
		scheme, host = strings.ToLower(u.Scheme), strings.ToLower(u.Host)
	}

	for _, a := range g.allowed {
		if origin == a.raw || strings.HasSuffix(origin, a.raw) {
			return true
		}
		if a.host != "" && host != "" && scheme == a.scheme && strings.HasSuffix(host, "."+a.host) {
			return true
		}
	}
	return false
}

// Check decide sobre uma requisição com header Origin `origin` para `path`.
//
// Sem Origin não há o que checar. Origem fora da lista só bloqueia (403) em
// produção e em /api/ ou /admin/; nos demais casos a requisição segue e a
// decisão sai com ReasonOriginLogged para o chamador registrar o aviso.
func (g OriginGate) Check(origin, path string) domain.Decision {
	if origin == "" || g.IsAllowed(origin) {
		return domain.Allow()
	}
	if g.mode.IsProduction() && IsSensitivePath(path) {
		return domain.Deny(domain.ReasonOriginRejected, domain.StatusForbidden)
	}
	return domain.Decision{Allowed: true, Reason: domain.ReasonOriginLogged}
}

// IsSensitivePath informa se o caminho fica sob /api/ ou /admin/.
func IsSensitivePath(path string) bool {
	return strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/admin/")
}
