// Package domain define os tipos das decisões de segurança da borda
// (modo de execução, motivos, listas padrão) sem dependência de net/http.
package domain
