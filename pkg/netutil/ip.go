package netutil

import (
	"net"
	"net/http"
	"strings"
)

const forwardedForHeader = "X-Forwarded-For"

// GetClientIp returns the originating IP of an HTTP request. The left-most
// X-Forwarded-For entry is preferred when present, so this must only be
// trusted behind a proxy that sets the header.
func GetClientIp(r *http.Request) string {
	if forwarded := r.Header.Get(forwardedForHeader); len(forwarded) > 0 {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
