package util

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWithRequestLog(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantLevel string
		wantCode  float64
		wantOut   float64
	}{
		{
			name:      "implicit ok",
			handler:   func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("hello")) },
			wantLevel: "INFO",
			wantCode:  200,
			wantOut:   5,
		},
		{
			name:      "client error",
			handler:   func(w http.ResponseWriter, _ *http.Request) { http.Error(w, "nope", http.StatusNotFound) },
			wantLevel: "WARN",
			wantCode:  404,
			wantOut:   5,
		},
		{
			name:      "server error",
			handler:   func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			wantLevel: "ERROR",
			wantCode:  502,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("abc"))
			req = req.WithContext(ContextWithLogger(req.Context(), logger))

			WithRequestLog(tc.handler).ServeHTTP(httptest.NewRecorder(), req)

			var line map[string]any
			if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
				t.Fatalf("decode log line %q: %v", buf.String(), err)
			}
			if line["msg"] != "http_request" || line["level"] != tc.wantLevel {
				t.Fatalf("unexpected line %v", line)
			}
			if line["status"] != tc.wantCode || line["bytes_out"] != tc.wantOut || line["bytes_in"] != float64(3) {
				t.Fatalf("unexpected counters %v", line)
			}
			if line["path"] != "/api/upload" || line["method"] != http.MethodPost {
				t.Fatalf("unexpected request fields %v", line)
			}
		})
	}
}
