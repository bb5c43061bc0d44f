// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MemoryWindowStore: janelas fixas por chave em memória, com janitor opcional
//   - RedisWindowStore: as mesmas janelas compartilhadas via Redis (WATCH/MULTI)
//   - MemoryStatsStore / RedisStatsStore: contadores das decisões do pipeline
//   - ChanPool: semáforo simples para limite de concorrência
package infra
