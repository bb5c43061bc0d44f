package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

// Key identifica o cliente na contabilidade do rate limit (normalmente o IP).
type Key string

// UnknownKey é o balde compartilhado por todos os clientes sem endereço
// identificável. Todos eles disputam a mesma janela: o excesso de um limita
// os demais.
const UnknownKey Key = "unknown"

// IsUnknown informa se a chave caiu no balde compartilhado.
func (k Key) IsUnknown() bool { return k == "" || k == UnknownKey }

// ClientWindow é a contabilidade de um cliente na janela fixa corrente.
//
// Count começa em 1 na criação da janela e cresce a cada requisição dentro
// dela, inclusive depois de passar do limite.
type ClientWindow struct {
	Count   int64
	ResetAt time.Time
}

// Expired informa se a janela já terminou em `now`.
func (w ClientWindow) Expired(now time.Time) bool {
	return !now.Before(w.ResetAt)
}

// UpdateFunc recebe a janela atual (found=false se não existir) e devolve a
// janela que deve substituí-la.
type UpdateFunc func(cur ClientWindow, found bool) ClientWindow

// WindowStore guarda uma ClientWindow por chave.
//
// Update deve executar leitura + mutação + escrita como uma unidade atômica
// por chave, para não perder incrementos sob requisições concorrentes.
type WindowStore interface {
	Update(ctx context.Context, key Key, fn UpdateFunc) (ClientWindow, error)
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration

	Limit  int
	Window ClientWindow
}

// Remaining é quantas requisições ainda cabem na janela (nunca negativo).
func (d Decision) Remaining() int {
	r := int64(d.Limit) - d.Window.Count
	if r < 0 {
		return 0
	}
	return int(r)
}
