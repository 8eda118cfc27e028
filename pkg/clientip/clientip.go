// Package clientip resolves the client address used to key the auth
// failure tracker. Proxy headers are checked before falling back to the
// socket address so a deployment behind Cloudflare or nginx still rate
// limits the real client instead of the proxy.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// GetIP returns the client's IP address from the request.
// Priority: CF-Connecting-IP, X-Forwarded-For (first valid entry),
// X-Real-IP, then RemoteAddr.
func GetIP(r *http.Request) string {
	if ip := parseIP(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		for entry := range strings.SplitSeq(forwarded, ",") {
			if ip := parseIP(entry); ip != "" {
				return ip
			}
		}
	}

	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port is already a bare IP.
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

// parseIP validates and normalizes one candidate, returning "" for junk.
func parseIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ip := net.ParseIP(raw)
	if ip == nil {
		return ""
	}
	return ip.String()
}
