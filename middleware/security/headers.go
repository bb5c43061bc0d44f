package security

import "net/http"

// DefaultContentSecurityPolicy restringe scripts, conexões, imagens, estilos e
// frames às APIs de carteira/cripto e aos hosts de blob usados pelo site.
const DefaultContentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline' 'unsafe-eval' https://cdn.jsdelivr.net; " +
	"connect-src 'self' https://*.infura.io https://*.alchemyapi.io https://*.coinbase.com " +
	"https://api.coingecko.com https://api.coinmarketcap.com wss://*.walletconnect.org; " +
	"img-src 'self' data: https://v0.blob.com https://hebbkx1anhila5yf.public.blob.vercel-storage.com; " +
	"style-src 'self' 'unsafe-inline'; font-src 'self' data:; " +
	"frame-src 'self' https://*.walletconnect.com https://*.coinbase.com; " +
	"object-src 'none'; base-uri 'self'; form-action 'self'; " +
	"frame-ancestors 'none'; upgrade-insecure-requests;"

// HeaderSet é o conjunto fixo de headers de resposta.
type HeaderSet map[string]string

// DefaultHeaders devolve uma cópia nova do conjunto padrão.
func DefaultHeaders() HeaderSet {
	return HeaderSet{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"X-XSS-Protection":          "1; mode=block",
		"Referrer-Policy":           "strict-origin-when-cross-origin",
		"Strict-Transport-Security": "max-age=63072000; includeSubDomains; preload",
		"Content-Security-Policy":   DefaultContentSecurityPolicy,
		"Permissions-Policy":        "camera=(), microphone=(), geolocation=(), interest-cohort=()",
	}
}

// WithCSP devolve uma cópia com outra Content-Security-Policy (vazio mantém a atual).
func (h HeaderSet) WithCSP(csp string) HeaderSet {
	out := make(HeaderSet, len(h))
	for k, v := range h {
		out[k] = v
	}
	if csp != "" {
		out["Content-Security-Policy"] = csp
	}
	return out
}

// Headers grava o conjunto no momento em que a resposta sai (WriteHeader,
// primeiro Write ou Flush), por cima do que a aplicação ou o proxy tenham
// colocado. Usa Set, então nem empilhar o middleware nem um header igual
// vindo do upstream duplica valores.
func Headers(set HeaderSet) func(next http.Handler) http.Handler {
	if set == nil {
		set = DefaultHeaders()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hw := &headerWriter{ResponseWriter: w, set: set}
			next.ServeHTTP(hw, r)
			// handler que não escreveu nada: o servidor manda 200 com estes headers
			hw.apply()
		})
	}
}

type headerWriter struct {
	http.ResponseWriter
	set     HeaderSet
	applied bool
}

func (w *headerWriter) apply() {
	if w.applied {
		return
	}
	w.applied = true
	h := w.ResponseWriter.Header()
	for k, v := range w.set {
		h.Set(k, v)
	}
}

func (w *headerWriter) WriteHeader(status int) {
	w.apply()
	w.ResponseWriter.WriteHeader(status)
}

func (w *headerWriter) Write(b []byte) (int, error) {
	w.apply()
	return w.ResponseWriter.Write(b)
}

func (w *headerWriter) Flush() {
	w.apply()
	_ = http.NewResponseController(w.ResponseWriter).Flush()
}

// Unwrap deixa http.ResponseController chegar no writer original.
func (w *headerWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
