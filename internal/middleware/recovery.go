package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware はpanicを500レスポンスに変換するミドルウェアを返す。
// http.ErrAbortHandlerはnet/httpに処理させるため再送出する。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				attrs := []any{
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				}
				if clientID, err := ClientIDFromContext(r.Context()); err == nil {
					attrs = append(attrs, slog.String("client_id", clientID))
				}
				logger.Error("panic recovered", attrs...)

				WriteInternalServerError(w)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
