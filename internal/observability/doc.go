// Package observability monta o logger zap do gateway e o amostrador de
// avisos usado pelos gates de segurança.
package observability
