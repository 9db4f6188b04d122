// Package proxy decides which peers may set forwarding headers.
package proxy

import (
	"net"
	"net/http"
)

// Trust is the set of proxy networks allowed to set X-Forwarded-* headers.
type Trust []*net.IPNet

// Parse accepts CIDR blocks and single addresses; invalid entries are
// skipped.
func Parse(entries []string) Trust {
	var out Trust
	for _, entry := range entries {
		if _, ipnet, err := net.ParseCIDR(entry); err == nil {
			out = append(out, ipnet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 128
		if ip.To4() != nil {
			bits = 32
			ip = ip.To4()
		}
		out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return out
}

func (t Trust) Contains(ip net.IP) bool {
	for _, ipnet := range t {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}

// FromTrusted reports whether the request's direct peer is a listed proxy.
// An empty Trust lists nobody.
func (t Trust) FromTrusted(r *http.Request) bool {
	ip := ParseAddr(r.RemoteAddr)
	return ip != nil && t.Contains(ip)
}

// ParseAddr parses "host:port" or a bare address.
func ParseAddr(addr string) net.IP {
	host, _, err := net.SplitHostPort(addr)
	if err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}
