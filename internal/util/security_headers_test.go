package util

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithSecurityHeaders(t *testing.T) {
	proxies, err := NewTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("proxies: %v", err)
	}
	h := WithSecurityHeaders(proxies, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		path   string
		remote string
		proto  string
		tls    bool
		want   map[string]string
	}{
		{
			name:   "api over plain http",
			path:   "/api/photos",
			remote: "203.0.113.9:5000",
			want: map[string]string{
				"X-Content-Type-Options":       "nosniff",
				"X-Frame-Options":              "DENY",
				"Cross-Origin-Resource-Policy": "",
				"Strict-Transport-Security":    "",
			},
		},
		{
			name:   "media is embeddable",
			path:   "/media/photos/abc.jpg",
			remote: "203.0.113.9:5000",
			want: map[string]string{
				"X-Content-Type-Options":       "nosniff",
				"X-Frame-Options":              "",
				"Content-Security-Policy":      "",
				"Cross-Origin-Resource-Policy": "cross-origin",
			},
		},
		{
			name:   "forwarded https from trusted proxy",
			path:   "/api/photos",
			remote: "10.1.2.3:443",
			proto:  "https",
			want:   map[string]string{"Strict-Transport-Security": hstsValue},
		},
		{
			name:   "forwarded https from stranger is ignored",
			path:   "/api/photos",
			remote: "203.0.113.9:5000",
			proto:  "https",
			want:   map[string]string{"Strict-Transport-Security": ""},
		},
		{
			name:   "direct tls",
			path:   "/healthz",
			remote: "203.0.113.9:5000",
			tls:    true,
			want:   map[string]string{"Strict-Transport-Security": hstsValue},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			req.RemoteAddr = tc.remote
			if tc.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tc.proto)
			}
			if tc.tls {
				req.TLS = &tls.ConnectionState{}
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			for header, want := range tc.want {
				if got := rec.Header().Get(header); got != want {
					t.Fatalf("%s = %q, want %q", header, got, want)
				}
			}
		})
	}
}
