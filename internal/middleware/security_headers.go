package middleware

import "net/http"

// securityHeaders は全レスポンスに付与するヘッダー。
//
// レスポンスはJSONのみなので、CSPはすべてのリソース読み込みを禁止する。
// タイマー一覧はCookieごとに異なるため、キャッシュも禁止する。
// 共有URLのクエリにはトークンが含まれるため、Refererは送らせない。
var securityHeaders = []struct {
	name  string
	value string
}{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Cache-Control", "no-store"},
	{"Cross-Origin-Resource-Policy", "same-site"},
}

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, h := range securityHeaders {
				w.Header().Set(h.name, h.value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
