// Package security fornece os middlewares HTTP da borda que não são rate limit:
// redirecionamento para HTTPS, gate de origem, bloqueio de IP suspeito e
// injeção dos headers de segurança.
//
// As decisões vêm de security/application; aqui só há tradução para
// status/corpo/headers, log e notificação do Observer.
package security
