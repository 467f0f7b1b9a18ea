package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"github.com/EmpoweredVote/lots-backend/internal/middleware"
)

func ok() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/test", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestCORSMiddleware_AllowedOrigin verifies the origin is echoed back.
func TestCORSMiddleware_AllowedOrigin(t *testing.T) {
	h := middleware.CORSMiddleware([]string{"https://lots.example"})(ok())

	rec := serve(h, http.MethodGet, "https://lots.example")

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://lots.example" {
		t.Errorf("expected origin to be echoed, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

// TestCORSMiddleware_UnknownOrigin verifies unknown origins get no CORS grant.
func TestCORSMiddleware_UnknownOrigin(t *testing.T) {
	h := middleware.CORSMiddleware([]string{"https://lots.example"})(ok())

	rec := serve(h, http.MethodGet, "https://evil.example")

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allow-origin header, got %q", got)
	}
}

// TestCORSMiddleware_Preflight verifies OPTIONS short-circuits with 204.
func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	h := middleware.CORSMiddleware([]string{"https://lots.example"})(inner)

	rec := serve(h, http.MethodOptions, "https://lots.example")

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if called {
		t.Error("inner handler should not run for preflight")
	}
}

// TestRateLimit_ShedsBurst verifies requests beyond the burst get 429.
func TestRateLimit_ShedsBurst(t *testing.T) {
	h := middleware.RateLimit(0.001, 2)(ok())

	codes := []int{
		serve(h, http.MethodPost, "").Code,
		serve(h, http.MethodPost, "").Code,
		serve(h, http.MethodPost, "").Code,
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("expected first two requests to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("expected 429 on third request, got %d", codes[2])
	}
}

// TestRateLimit_Disabled verifies a zero rate passes everything through.
func TestRateLimit_Disabled(t *testing.T) {
	h := middleware.RateLimit(0, 0)(ok())
	for i := 0; i < 5; i++ {
		if code := serve(h, http.MethodPost, "").Code; code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
}

// TestRequestLogger_PassesThrough verifies the wrapped handler still writes.
func TestRequestLogger_PassesThrough(t *testing.T) {
	h := middleware.RequestLogger(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	if code := serve(h, http.MethodGet, "").Code; code != http.StatusTeapot {
		t.Errorf("expected 418, got %d", code)
	}
}
