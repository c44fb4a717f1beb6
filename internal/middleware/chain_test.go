package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// newTestChain はアプリケーションと同じ順序でミドルウェアを組み立てる。
// Recovery -> SecurityHeaders -> CORS -> ClientID -> RateLimit -> (CSRF) -> Handler
func newTestChain(t *testing.T, handler http.HandlerFunc) http.Handler {
	t.Helper()

	rl := newTestRateLimiter(t, RateLimiterConfig{GeneralRate: 0.1, GeneralBurst: 2, ShareRate: 0.1, ShareBurst: 1})

	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware(nil))
	r.Use(NewSecurityHeadersMiddleware())
	r.Use(NewCORSMiddleware("http://localhost:5173"))
	r.Use(NewClientIDMiddleware(ClientIDConfig{MaxAge: 3600}))
	r.Use(rl.GeneralMiddleware())
	r.Get("/api/csrf-token", NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP)
	r.Group(func(r chi.Router) {
		r.Use(NewCSRFMiddleware(CSRFConfig{}))
		r.Get("/api/timers", handler)
		r.Post("/api/timers", handler)
		r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})
	})
	return r
}

// TestMiddlewareChain_GETRequest はGETリクエストがチェーンを通過し、クライアントIDが注入されることを検証する。
func TestMiddlewareChain_GETRequest(t *testing.T) {
	var capturedID string
	chain := newTestChain(t, func(w http.ResponseWriter, r *http.Request) {
		capturedID, _ = ClientIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	chain.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/timers", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if capturedID == "" {
		t.Error("client id should be injected")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should be set")
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Error("Cache-Control should be no-store")
	}
	if findResponseCookie(w.Result(), csrfCookieName) == nil {
		t.Error("CSRF cookie should be issued on GET")
	}
}

// TestMiddlewareChain_POSTWithCSRFToken はトークン取得後のPOSTが通ることを検証する。
func TestMiddlewareChain_POSTWithCSRFToken(t *testing.T) {
	chain := newTestChain(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	tokenRes := httptest.NewRecorder()
	chain.ServeHTTP(tokenRes, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(tokenRes.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/timers", nil)
	for _, c := range tokenRes.Result().Cookies() {
		req.AddCookie(c)
	}
	req.Header.Set(csrfHeaderName, body.Token)
	w := httptest.NewRecorder()
	chain.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
}

// TestMiddlewareChain_POSTWithoutCSRFToken_Returns403 はトークン無しのPOSTが拒否されることを検証する。
func TestMiddlewareChain_POSTWithoutCSRFToken_Returns403(t *testing.T) {
	chain := newTestChain(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	w := httptest.NewRecorder()
	chain.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/timers", nil))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

// TestMiddlewareChain_PanicRecovered はpanicが500の統一エラーに変換されることを検証する。
func TestMiddlewareChain_PanicRecovered(t *testing.T) {
	chain := newTestChain(t, func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	chain.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
	}
}

// TestMiddlewareChain_RateLimitPerClient は同一クライアントCookieでレート制限されることを検証する。
func TestMiddlewareChain_RateLimitPerClient(t *testing.T) {
	chain := newTestChain(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	first := httptest.NewRecorder()
	chain.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/timers", nil))
	clientCookie := findResponseCookie(first.Result(), ClientIDCookieName)
	if clientCookie == nil {
		t.Fatal("client id cookie should be issued")
	}

	statuses := []int{}
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/timers", nil)
		req.AddCookie(clientCookie)
		w := httptest.NewRecorder()
		chain.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusTooManyRequests {
		t.Errorf("statuses = %v, want [200 429]", statuses)
	}
}
