package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSPreflight(t *testing.T) {
	handler := CORS(CORSConfig{})(okHandler())
	req := httptest.NewRequest(http.MethodOptions, "/v1/execute", nil)
	req.Header.Set("Origin", "https://market.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow origin = %q", got)
	}
	if res.Header().Get("Access-Control-Max-Age") == "" {
		t.Fatalf("expected max age on preflight")
	}
}

func TestCORSEchoesListedOrigin(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://market.example"}, AllowCredentials: true})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/listings", nil)
	req.Header.Set("Origin", "https://market.example")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "https://market.example" {
		t.Fatalf("allow origin = %q", got)
	}
	if res.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials header")
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/listings", nil)
	req.Header.Set("Origin", "https://evil.example")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
