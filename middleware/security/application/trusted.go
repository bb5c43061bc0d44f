package application

import (
	"net"
	"strings"
)

// IsTrustedHost informa se host (com ou sem porta) é um domínio oficial ou
// subdomínio de um deles.
func IsTrustedHost(host string, trusted []string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" {
		return false
	}
	for _, d := range trusted {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// IsLocalHost trata localhost (com ou sem porta) como conexão local de desenvolvimento.
func IsLocalHost(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return host == "localhost"
}
