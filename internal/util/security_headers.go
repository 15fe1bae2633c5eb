package util

import (
	"net/http"
	"strings"
)

var (
	baseHeaders = map[string]string{
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "no-referrer",
		"Permissions-Policy":     "geolocation=(), camera=(), microphone=()",
	}
	apiHeaders = map[string]string{
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'; base-uri 'none'",
	}
	// The gallery page embeds media from another origin.
	mediaHeaders = map[string]string{
		"Cross-Origin-Resource-Policy": "cross-origin",
	}
)

const hstsValue = "max-age=31536000; includeSubDomains"

// WithSecurityHeaders sets response hardening headers. HSTS is sent on direct
// TLS, or when a trusted proxy reports https via X-Forwarded-Proto.
func WithSecurityHeaders(proxies *TrustedProxies, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		setAll(h, baseHeaders)
		if strings.HasPrefix(r.URL.Path, "/media/") {
			setAll(h, mediaHeaders)
		} else {
			setAll(h, apiHeaders)
		}
		if servedOverHTTPS(r, proxies) {
			h.Set("Strict-Transport-Security", hstsValue)
		}
		next.ServeHTTP(w, r)
	})
}

func setAll(h http.Header, values map[string]string) {
	for k, v := range values {
		h.Set(k, v)
	}
}

func servedOverHTTPS(r *http.Request, proxies *TrustedProxies) bool {
	if r.TLS != nil {
		return true
	}
	if !proxies.FromProxy(r) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
}
