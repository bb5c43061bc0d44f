package domain

import "strings"

// Mode é o modo de execução. Só Production endurece o gate de origem.
type Mode string

const (
	ModeProduction  Mode = "production"
	ModeDevelopment Mode = "development"
)

// ParseMode aceita "production"/"prod" (qualquer caixa); o resto é desenvolvimento.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod":
		return ModeProduction
	default:
		return ModeDevelopment
	}
}

func (m Mode) IsProduction() bool { return m == ModeProduction }

// Reason é o motivo de uma decisão do pipeline.
type Reason string

const (
	ReasonAllowed        Reason = "allowed"
	ReasonInsecureScheme Reason = "insecure_scheme"
	ReasonRateLimited    Reason = "rate_limited"
	// ReasonOriginRejected bloqueia: origem fora da lista em rota sensível em produção.
	ReasonOriginRejected Reason = "origin_rejected"
	// ReasonOriginLogged: origem fora da lista, mas a requisição segue (só log).
	ReasonOriginLogged Reason = "origin_logged"
	ReasonSuspiciousIP Reason = "suspicious_ip"
)

const (
	StatusMovedPermanently = 301
	StatusForbidden        = 403
	StatusTooManyRequests  = 429
)

// Decision é o resultado de um gate para uma requisição. Nunca é persistido.
// Status só tem significado quando Allowed=false.
type Decision struct {
	Allowed bool
	Reason  Reason
	Status  int
}

func Allow() Decision { return Decision{Allowed: true, Reason: ReasonAllowed} }

func Deny(reason Reason, status int) Decision {
	return Decision{Allowed: false, Reason: reason, Status: status}
}
