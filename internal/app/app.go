package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/countdown/internal/config"
	"github.com/hitoshi/countdown/internal/handler"
	"github.com/hitoshi/countdown/internal/logger"
	"github.com/hitoshi/countdown/internal/metrics"
	"github.com/hitoshi/countdown/internal/middleware"
	"github.com/hitoshi/countdown/internal/model"
	"github.com/hitoshi/countdown/internal/security"
	"github.com/hitoshi/countdown/internal/share"
	"github.com/hitoshi/countdown/internal/store"
	"github.com/hitoshi/countdown/internal/timer"
)

// Init はアプリケーションの初期化を行う。
// 設定を読み込み、LOG_LEVELに従ったJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数と設定ファイルから設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでログを再構成する
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	logger.SetupDefault(w, level)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	switch cmd {
	case CommandResolve:
		if len(args) < 2 {
			return errors.New("usage: countdown resolve <share-url>")
		}
		return runResolve(w, args[1])
	default:
		slog.Info("starting application",
			slog.String("command", string(cmd)),
			slog.String("port", cfg.ServerPort),
			slog.String("base_url", cfg.BaseURL),
		)
		return runServe(cfg)
	}
}

// server は起動に必要なHTTPサーバーと後始末が必要な依存をまとめる。
type server struct {
	http        *http.Server
	rateLimiter *middleware.RateLimiter
}

// newServer は設定から全依存関係をワイヤリングしたHTTPサーバーを構築する。
func newServer(cfg *config.Config, log *slog.Logger, reg *prometheus.Registry) *server {
	// 1. メトリクス
	collector := metrics.NewCollector(reg)

	// 2. Cookieストア
	cookieCfg := store.CookieConfig{
		MaxAge: cfg.CookieMaxAge,
		Secure: cfg.CookieSecure,
		Domain: cfg.CookieDomain,
	}
	timerStore := store.NewTimerStore(cookieCfg, log, collector)
	tombstoneStore := store.NewTombstoneStore(cookieCfg, log, collector)

	// 3. 共有コーデックとリゾルバ
	codec := share.NewCodec(share.WithLogger(log), share.WithRecorder(collector))
	resolver := share.NewResolver(codec)

	// 4. タイマー操作
	timerService := timer.NewService(
		timer.WithSanitizer(security.NewNameSanitizer()),
		timer.WithRecorder(collector),
	)

	// 5. ルーターの構築
	// configのレート制限はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.ShareRate = rate.Limit(float64(cfg.RateLimitShare) / 60.0)
	rateLimiterCfg.ShareBurst = cfg.RateLimitShare
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)

	deps := &handler.RouterDeps{
		Logger:            log,
		HTTPRecorder:      collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		ClientID: middleware.ClientIDConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			MaxAge:       cfg.CookieMaxAge,
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Gatherer: reg,

		TimerStore:   timerStore,
		TimerService: timerService,

		ShareLinks:     resolver,
		ShareResolver:  resolver,
		TombstoneStore: tombstoneStore,
		BaseURL:        cfg.BaseURL,
	}

	return &server{
		http: &http.Server{
			Addr:         ":" + cfg.ServerPort,
			Handler:      handler.NewRouter(deps),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		rateLimiter: rateLimiter,
	}
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := newServer(cfg, slog.Default(), reg)
	defer srv.rateLimiter.Stop()

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", srv.http.Addr),
		)
		if err := srv.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenErr <- err
		}
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// resolveResult はresolveサブコマンドの出力。
type resolveResult struct {
	Valid      bool   `json:"valid"`
	ID         string `json:"id,omitempty"`
	Name       string `json:"name,omitempty"`
	TargetDate string `json:"target_date,omitempty"`
	ErrorType  string `json:"error_type,omitempty"`
	Message    string `json:"message,omitempty"`
}

// runResolve は共有URLを1件検証し、結果をJSONでwに書き出す。
// 解決に失敗した場合は結果を書き出したうえでエラーを返す。
func runResolve(w io.Writer, rawURL string) error {
	resolver := share.NewResolver(share.NewCodec(share.WithLogger(slog.Default())))
	outcome := resolver.Validate(rawURL)

	result := resolveResult{Valid: outcome.IsValid}
	if outcome.IsValid && outcome.Timer != nil {
		result.ID = outcome.Timer.ID
		result.Name = outcome.Timer.Name
		result.TargetDate = model.FormatTimestamp(outcome.Timer.TargetDate)
	} else {
		result.ErrorType = string(outcome.ErrorType)
		result.Message = outcome.Message
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	if resErr := outcome.Err(); resErr != nil {
		return resErr
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
