package httpkit

// Client address resolution. The resolved value is the rate limiting key for
// anonymous visitors, so it is never empty.

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientIPContextKey string

const clientIPKey clientIPContextKey = "client_ip"

// UnknownClient is used when no address can be derived from the request.
const UnknownClient = "unknown"

// ResolveClientIP returns the best available client address: the first entry
// of X-Forwarded-For, then X-Real-IP, then the RemoteAddr host, then
// UnknownClient.
//
// SECURITY: forwarded headers are only trustworthy behind a proxy that
// overwrites them. The portfolio is deployed behind one.
func ResolveClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if idx := strings.Index(xff, ","); idx != -1 {
			first = xff[:idx]
		}
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	if remote != "" {
		return remote
	}
	return UnknownClient
}

// ClientIP returns middleware that resolves the client address once and
// stores it in the request context for ClientIPFromContext.
func ClientIP() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ResolveClientIP(r)
			LogField(r, "client_ip", ip)
			ctx := context.WithValue(r.Context(), clientIPKey, ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIPFromContext returns the address stored by ClientIP, resolving it
// from the request when the middleware did not run.
func ClientIPFromContext(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey).(string); ok && ip != "" {
		return ip
	}
	return ResolveClientIP(r)
}
