package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão tomada no pipeline de borda
// (rate limit, origem, IP suspeito).
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de séries/chaves em uma base como Redis/Prometheus).
type StatsEvent struct {
	Key     Key
	Allowed bool
	// Reason é o motivo da decisão ("allowed", "rate_limited", "origin_rejected"...).
	Reason string

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas das decisões.
//
// Implementações podem armazenar em Redis, memória, etc.
// O middleware deve tratar erro como best-effort (não derrubar request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
