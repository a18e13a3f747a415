package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCORS(t *testing.T) {
	const frontend = "http://localhost:5173"
	tests := []struct {
		name        string
		origins     []string
		method      string
		origin      string
		allowOrigin string
	}{
		{"configured origin", []string{frontend}, http.MethodGet, frontend, frontend},
		{"unknown origin", []string{frontend}, http.MethodGet, "http://evil.example.com", ""},
		{"empty list allows any", nil, http.MethodGet, "http://anything.example.com", "http://anything.example.com"},
		{"star allows any", []string{"*"}, http.MethodGet, "http://other.example.com", "http://other.example.com"},
		{"preflight", []string{frontend}, http.MethodOptions, frontend, frontend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CORS(tt.origins))
			router.Any("/api/payments/webhook", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(tt.method, "/api/payments/webhook", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
				req.Header.Set("Access-Control-Request-Headers", "Content-Type, Stripe-Signature")
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.allowOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, expected %q", got, tt.allowOrigin)
			}
			if tt.allowOrigin != "" && w.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Error("credentials should be allowed for accepted origins")
			}
			if tt.method == http.MethodOptions {
				if w.Code != http.StatusNoContent && w.Code != http.StatusOK {
					t.Errorf("preflight status = %d, expected 200 or 204", w.Code)
				}
				if w.Header().Get("Access-Control-Allow-Headers") == "" {
					t.Error("Access-Control-Allow-Headers should be set on preflight")
				}
			}
		})
	}
}
