// Package ratelimit fornece adapters HTTP (net/http) para o rate limit por janela
// fixa e para o limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos (Key, ClientWindow, WindowStore, Decision) sem net/http
//   - application: casos de uso (janela fixa allow/deny, acquire/timeout)
//   - infra: stores em memória e Redis, estatísticas, semáforo
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo:
//
//  1. Extrai a chave do cliente (RemoteAddr ou X-Forwarded-For confiável; "unknown" sem endereço)
//  2. Chama a camada application para contabilizar e decidir
//  3. Se bloqueado, responde 429 com Retry-After (rate limit) ou 503 (concorrência)
//  4. Se permitido, chama o próximo handler
//
// O escopo por caminho (/api/ apenas) é decidido pelo pipeline em middleware/edge.
package ratelimit
