package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowedMethods = "GET, POST, DELETE, OPTIONS"
	corsExposedHeaders = "Retry-After"
	corsMaxAge         = "86400"
)

// NewCORSMiddleware は指定されたオリジンに対するCORSミドルウェアを返す。
// credentials送信と共存するため、ワイルドカード(*)は使用しない。
//
// Originヘッダーが無いリクエスト（同一オリジン、CLI）と許可オリジンからのリクエストにだけ
// CORSヘッダーを付与する。それ以外のオリジンからのプリフライトは403で拒否する。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	allowedOrigin = strings.TrimRight(allowedOrigin, "/")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			allowed := origin == "" || origin == allowedOrigin

			if allowed {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", allowedOrigin)
				h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
				h.Set("Access-Control-Allow-Headers", "Content-Type, "+csrfHeaderName)
				h.Set("Access-Control-Expose-Headers", corsExposedHeaders)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Max-Age", corsMaxAge)
			}

			if r.Method == http.MethodOptions {
				if !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
