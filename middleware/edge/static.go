package edge

import "strings"

// DefaultStaticPrefixes são os caminhos que nunca passam pelo pipeline.
var DefaultStaticPrefixes = []string{
	"_next/static",
	"_next/image",
	"favicon.ico",
	"images",
	"assets",
	"fonts",
}

// IsStatic compara o caminho sem a barra inicial com os prefixos, sem exigir
// fronteira de segmento (/imagesfoo também é estático).
func IsStatic(path string, prefixes []string) bool {
	p := strings.TrimPrefix(path, "/")
	for _, prefix := range prefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}
