// Package domain define contratos e tipos de domínio para rate limit por janela
// fixa, limite de concorrência e estatísticas de decisão.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros (relógio e store injetados)
// e trocar o store em memória por um compartilhado sem mexer nas regras.
package domain
