package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/countdown/internal/metrics"
	"github.com/hitoshi/countdown/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	HTTPRecorder      middleware.HTTPRecorder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	ClientID          middleware.ClientIDConfig
	CSRF              middleware.CSRFConfig

	// メトリクス公開
	Gatherer prometheus.Gatherer

	// タイマー
	TimerStore   TimerStore
	TimerService TimerService

	// 共有リンク
	ShareLinks     ShareLinkBuilder
	ShareResolver  ShareResolver
	TombstoneStore TombstoneStore
	BaseURL        string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Metrics → CORS → ClientID → Logging → RateLimit(General) → CSRF
//
// /health と /metrics はクライアントIDの発行とリクエストログの対象外。
// /api/csrf-token はCSRFチェックの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.HTTPRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPRecorder))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	timerHandler := NewTimerHandler(deps.TimerStore, deps.TimerService, deps.ShareLinks, deps.BaseURL)
	shareHandler := NewShareHandler(deps.ShareResolver, deps.TimerStore, deps.TombstoneStore, deps.TimerService, deps.BaseURL)

	// --- 運用向けのルート ---
	r.Get("/health", HandleHealth)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.SetupMetricsRoute(deps.Gatherer))
	}

	// --- クライアント向けのルート ---
	// ミドルウェアスタック: ClientID → Logging → RateLimit(General)
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewClientIDMiddleware(deps.ClientID))
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

			// タイマー管理
			r.Route("/api/timers", func(r chi.Router) {
				r.Get("/", timerHandler.HandleList)
				r.Post("/", timerHandler.HandleCreate)
				r.Delete("/", timerHandler.HandleClear)
				r.Get("/stats", timerHandler.HandleStats)

				r.Route("/{id}", func(r chi.Router) {
					r.Delete("/", timerHandler.HandleDelete)
					r.Post("/pause", timerHandler.HandlePause)
					r.Post("/resume", timerHandler.HandleResume)

					// POST /api/timers/{id}/share - 共有リンク生成（専用レート制限を追加）
					r.With(deps.RateLimiter.ShareLinkMiddleware()).Post("/share", timerHandler.HandleShare)
				})
			})

			r.Get("/api/share/resolve", shareHandler.HandleResolve)

			// 共有リンクの受信
			r.Route("/stopwatch/{id}", func(r chi.Router) {
				r.Get("/", shareHandler.HandleOpen)
				r.Delete("/", shareHandler.HandleDelete)
				r.Post("/import", shareHandler.HandleImport)
			})
		})
	})

	return r
}
