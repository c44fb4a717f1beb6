// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ClientIDCookieName はクライアント識別子を保持するCookieの名前。
// 認証は行わないため、レート制限とログの相関にのみ使う。
const ClientIDCookieName = "countdown_client"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// clientIDContextKey はリクエストコンテキストにクライアントIDを格納するためのキー。
var clientIDContextKey = contextKey("client_id")

// ClientIDConfig はクライアントIDミドルウェアの設定。
type ClientIDConfig struct {
	CookieSecure bool
	CookieDomain string
	MaxAge       int
}

// NewClientIDMiddleware は匿名クライアントIDをCookieから読み取り、
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookieが無い、またはUUIDとして不正な場合は新しいIDを発行してCookieに設定する。
func NewClientIDMiddleware(config ClientIDConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ""
			if cookie, err := r.Cookie(ClientIDCookieName); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					clientID = id.String()
				}
			}

			if clientID == "" {
				clientID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     ClientIDCookieName,
					Value:    clientID,
					Path:     "/",
					Domain:   config.CookieDomain,
					MaxAge:   config.MaxAge,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), clientIDContextKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIDFromContext はリクエストコンテキストからクライアントIDを取得する。
// クライアントIDミドルウェアを通過したリクエストでのみ有効。
func ClientIDFromContext(ctx context.Context) (string, error) {
	clientID, ok := ctx.Value(clientIDContextKey).(string)
	if !ok || clientID == "" {
		return "", fmt.Errorf("client ID not found in context")
	}
	return clientID, nil
}

// ContextWithClientID はコンテキストにクライアントIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDContextKey, clientID)
}
