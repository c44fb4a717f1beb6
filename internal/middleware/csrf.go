package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/countdown/internal/model"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	// フロントエンドからJavaScriptで読み取れるよう、HttpOnlyではない。
	csrfCookieName = "csrf_token"

	// csrfHeaderName はリクエストヘッダーからCSRFトークンを読み取る際のヘッダー名。
	csrfHeaderName = "X-CSRF-Token"

	// csrfCookieMaxAge はCSRFトークンCookieの有効期間（秒）。
	csrfCookieMaxAge = 86400
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

// errCSRFValidation はCSRF検証失敗時のレスポンス。
var errCSRFValidation = &model.APIError{
	Code:     "CSRF_VALIDATION_FAILED",
	Message:  "CSRFトークンの検証に失敗しました。",
	Category: "system",
	Action:   "GET /api/csrf-token でトークンを取得し、X-CSRF-Tokenヘッダーに設定してください。",
}

// NewCSRFMiddleware はCSRFトークンの生成・検証ミドルウェアを返す。
// 安全なメソッド（GET, HEAD, OPTIONS）はトークン検証をスキップし、
// CSRFトークンCookieを設定する。
// 状態変更メソッド（POST, PUT, PATCH, DELETE）はCookieとヘッダーのトークン一致を必須とする。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				if _, err := r.Cookie(csrfCookieName); err != nil {
					if _, err := issueCSRFToken(w, config); err != nil {
						slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			if reason := csrfFailureReason(r); reason != "" {
				slog.Warn("CSRF validation failed: "+reason,
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, errCSRFValidation)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler はCSRFトークン取得エンドポイントのハンドラーを返す。
// GET /api/csrf-token
// 既存のCSRFトークンCookieがある場合はそれを返し、なければ新規生成する。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string

		cookie, err := r.Cookie(csrfCookieName)
		if err == nil && cookie.Value != "" {
			token = cookie.Value
		} else {
			token, err = issueCSRFToken(w, config)
			if err != nil {
				slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"token": token,
		})
	})
}

// csrfFailureReason はトークン検証に失敗した理由を返す。成功時は空文字列。
func csrfFailureReason(r *http.Request) string {
	cookieToken, err := r.Cookie(csrfCookieName)
	if err != nil || cookieToken.Value == "" {
		return "missing cookie token"
	}

	headerToken := r.Header.Get(csrfHeaderName)
	if headerToken == "" {
		return "missing header token"
	}

	if cookieToken.Value != headerToken {
		return "token mismatch"
	}
	return ""
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// issueCSRFToken は新しいトークンを生成してCookieに設定する。
func issueCSRFToken(w http.ResponseWriter, config CSRFConfig) (string, error) {
	token, err := generateCSRFToken()
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: false, // フロントエンドから読み取り可能
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// generateCSRFToken は暗号的に安全なCSRFトークンを生成する。
func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
