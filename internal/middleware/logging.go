package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードと書き込みバイト数を記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、bytes、duration_ms、client_id（発行済みの場合）を含む。
//
// 共有URLのクエリ（dataトークン）はログに残さない。
// 代わりに共有リンクへのアクセスであることをshare_link属性で示す。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			durationMs := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Int("bytes", rec.bytes),
				slog.Float64("duration_ms", durationMs),
			}
			if strings.HasPrefix(r.URL.Path, "/stopwatch/") {
				args = append(args, slog.Bool("share_link", true))
			}
			if clientID, err := ClientIDFromContext(r.Context()); err == nil {
				args = append(args, slog.String("client_id", clientID))
			}

			logger.Log(r.Context(), levelForStatus(rec.statusCode), "http_request", args...)
		})
	}
}

// levelForStatus は5xxをError、4xxをWarn、それ以外をInfoとする。
func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
