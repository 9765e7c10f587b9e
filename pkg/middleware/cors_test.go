package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	allowedOrigins := []string{"http://localhost:5173", "http://crm.example.com"}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	corsHandler := CORS(allowedOrigins)(handler)

	tests := []struct {
		name       string
		origin     string
		method     string
		wantOrigin string
	}{
		{
			name:       "allowed origin",
			origin:     "http://localhost:5173",
			method:     http.MethodGet,
			wantOrigin: "http://localhost:5173",
		},
		{
			name:       "another allowed origin",
			origin:     "http://crm.example.com",
			method:     http.MethodGet,
			wantOrigin: "http://crm.example.com",
		},
		{
			name:   "disallowed origin",
			origin: "http://evil.com",
			method: http.MethodGet,
		},
		{
			name:       "preflight request",
			origin:     "http://localhost:5173",
			method:     http.MethodOptions,
			wantOrigin: "http://localhost:5173",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/progress", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			}

			rec := httptest.NewRecorder()
			corsHandler.ServeHTTP(rec, req)

			acao := rec.Header().Get("Access-Control-Allow-Origin")
			if acao != tt.wantOrigin {
				t.Errorf("expected Access-Control-Allow-Origin %q, got %q", tt.wantOrigin, acao)
			}
			if tt.wantOrigin != "" {
				if creds := rec.Header().Get("Access-Control-Allow-Credentials"); creds != "true" {
					t.Errorf("expected credentials allowed for %s, got %q", tt.origin, creds)
				}
			}
		})
	}
}
