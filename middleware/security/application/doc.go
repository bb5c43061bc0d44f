// Package application contém as decisões puras da borda: gate de origem,
// lista de IPs suspeitos e verificação de domínio oficial.
//
// Tudo aqui recebe strings e configuração já resolvida (inclusive o modo de
// execução) e devolve domain.Decision; não lê ambiente nem conhece net/http.
package application
