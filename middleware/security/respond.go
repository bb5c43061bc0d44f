package security

import (
	"net/http"

	"anires-gateway/middleware/security/domain"
)

// DeniedMessage é o corpo das respostas 403.
const DeniedMessage = "Acesso negado"

// Observer recebe toda decisão tomada por um gate (para estatísticas).
type Observer func(r *http.Request, d domain.Decision)

func (o Observer) notify(r *http.Request, d domain.Decision) {
	if o != nil {
		o(r, d)
	}
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
