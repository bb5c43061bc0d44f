// Package application contém os casos de uso (regras de aplicação) para rate limit
// e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, key) aplica a janela fixa e retorna uma Decision
// (allow/deny + retry-after + estado da janela).
package application
