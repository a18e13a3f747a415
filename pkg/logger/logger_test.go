package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGinLogger_RequestID(t *testing.T) {
	r := gin.New()
	r.Use(GinLogger())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/ping", nil)
		r.ServeHTTP(w, req)

		id := w.Header().Get(RequestIDHeader)
		if len(id) != 36 {
			t.Fatalf("expected uuid request id, got %q", id)
		}
		if w.Body.String() != id {
			t.Errorf("context id %q does not match header %q", w.Body.String(), id)
		}
	})

	t.Run("propagated", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/ping", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		r.ServeHTTP(w, req)

		if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
			t.Errorf("expected propagated id, got %q", got)
		}
	})
}

func TestGinRecovery(t *testing.T) {
	r := gin.New()
	r.Use(GinLogger(), GinRecovery())
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/panic", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"error":"internal server error"`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestRedactQuery(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"", ""},
		{"page=2&per_page=20", "page=2&per_page=20"},
		{"token=eyJhbGci", "token=REDACTED"},
		{"access_token=abc&page=1", "access_token=REDACTED&page=1"},
		{"%zz", "[unparseable]"},
	}
	for _, tt := range tests {
		if got := redactQuery(tt.raw); got != tt.expected {
			t.Errorf("redactQuery(%q) = %q, expected %q", tt.raw, got, tt.expected)
		}
	}
}

func TestFromContext_CarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.InfoLevel)
	defer Init("info")

	r := gin.New()
	r.Use(GinLogger())
	r.GET("/api/projects", func(c *gin.Context) {
		FromContext(c).Info().Msg("listing projects")
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest("GET", "/api/projects", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	r.ServeHTTP(httptest.NewRecorder(), req)

	first, _, _ := strings.Cut(buf.String(), "\n")
	if !strings.Contains(first, `"request_id":"req-42"`) || !strings.Contains(first, "listing projects") {
		t.Errorf("handler log line = %s", first)
	}
	if FromContext(nil) == nil {
		t.Error("FromContext(nil) should fall back to the global logger")
	}
}
