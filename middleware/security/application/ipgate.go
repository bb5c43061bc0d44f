package application

import (
	"net/netip"
	"strings"

	"anires-gateway/middleware/security/domain"
)

// IPGate bloqueia IPs de uma lista estática. Entradas podem ser IPs ou CIDRs.
type IPGate struct {
	addrs    map[netip.Addr]struct{}
	raw      map[string]struct{}
	prefixes []netip.Prefix
}

func NewIPGate(entries []string) IPGate {
	g := IPGate{
		addrs: make(map[netip.Addr]struct{}),
		raw:   make(map[string]struct{}),
	}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if p, err := netip.ParsePrefix(e); err == nil {
			g.prefixes = append(g.prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			g.addrs[a.Unmap()] = struct{}{}
			continue
		}
		// entradas que não são IP (ex.: "unknown") comparam como texto
		g.raw[e] = struct{}{}
	}
	return g
}

func (g IPGate) Len() int { return len(g.addrs) + len(g.raw) + len(g.prefixes) }

func (g IPGate) IsBlocked(ip string) bool {
	ip = strings.TrimSpace(ip)
	if _, ok := g.raw[ip]; ok {
		return true
	}
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()
	if _, ok := g.addrs[a]; ok {
		return true
	}
	for _, p := range g.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

func (g IPGate) Check(ip string) domain.Decision {
	if g.IsBlocked(ip) {
		return domain.Deny(domain.ReasonSuspiciousIP, domain.StatusForbidden)
	}
	return domain.Allow()
}
