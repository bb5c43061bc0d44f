// Package edge monta o pipeline de borda executado uma vez por requisição:
//
//	assets estáticos (bypass) → HTTPS → rate limit (/api/) → origem → IP suspeito → headers → aplicação
//
// Cada etapa pode encerrar a requisição com sua própria resposta; só quem
// passa por todas recebe os headers de segurança e chega à aplicação.
package edge
