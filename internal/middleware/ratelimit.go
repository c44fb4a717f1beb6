package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	ShareRate       rate.Limit    // 共有リンク生成のレート（req/sec）。30/60
	ShareBurst      int           // 共有リンク生成のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/client、共有リンク生成 30 req/min/client
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0), // 2 req/sec
		GeneralBurst:    120,
		ShareRate:       rate.Limit(30.0 / 60.0), // 0.5 req/sec
		ShareBurst:      30,
		CleanupInterval: 5 * time.Minute,
	}
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はクライアントごとのレート制限を管理する。
// API全般のレート制限と共有リンク生成のレート制限の2種類を提供する。
type RateLimiter struct {
	config RateLimiterConfig

	generalMu       sync.RWMutex
	generalLimiters map[string]*clientLimiter

	shareMu       sync.RWMutex
	shareLimiters map[string]*clientLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:          config,
		generalLimiters: make(map[string]*clientLimiter),
		shareLimiters:   make(map[string]*clientLimiter),
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// ClientIDMiddlewareの後に配置する。IDが無い場合はリモートアドレスで識別する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientKey(r)

			limiter := rl.getOrCreateGeneralLimiter(clientID)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.GeneralRate)
				slog.Warn("rate limit exceeded",
					slog.String("client_id", clientID),
					slog.String("limit_type", "general"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ShareLinkMiddleware は共有リンク生成専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) ShareLinkMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientKey(r)

			limiter := rl.getOrCreateShareLimiter(clientID)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.ShareRate)
				slog.Warn("rate limit exceeded",
					slog.String("client_id", clientID),
					slog.String("limit_type", "share_link"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	rl.generalMu.RLock()
	defer rl.generalMu.RUnlock()
	return len(rl.generalLimiters)
}

// ShareLimiterCount は現在管理されている共有リンク生成リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) ShareLimiterCount() int {
	rl.shareMu.RLock()
	defer rl.shareMu.RUnlock()
	return len(rl.shareLimiters)
}

// getOrCreateGeneralLimiter はクライアントのAPI全般リミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateGeneralLimiter(clientID string) *rate.Limiter {
	return getOrCreate(&rl.generalMu, rl.generalLimiters, clientID, rl.config.GeneralRate, rl.config.GeneralBurst)
}

// getOrCreateShareLimiter はクライアントの共有リンク生成リミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateShareLimiter(clientID string) *rate.Limiter {
	return getOrCreate(&rl.shareMu, rl.shareLimiters, clientID, rl.config.ShareRate, rl.config.ShareBurst)
}

// getOrCreate はmuで保護されたlimitersからリミッターを取得し、無ければ作成する。
func getOrCreate(mu *sync.RWMutex, limiters map[string]*clientLimiter, clientID string, r rate.Limit, burst int) *rate.Limiter {
	mu.RLock()
	cl, exists := limiters[clientID]
	mu.RUnlock()

	if exists {
		mu.Lock()
		cl.lastAccess = time.Now()
		mu.Unlock()
		return cl.limiter
	}

	mu.Lock()
	defer mu.Unlock()

	// ダブルチェック
	if cl, exists := limiters[clientID]; exists {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(r, burst)
	limiters[clientID] = &clientLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := time.Now()

	evict(&rl.generalMu, rl.generalLimiters, now, ttl)
	evict(&rl.shareMu, rl.shareLimiters, now, ttl)
}

func evict(mu *sync.RWMutex, limiters map[string]*clientLimiter, now time.Time, ttl time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	for clientID, cl := range limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(limiters, clientID)
		}
	}
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     "RATE_LIMIT_EXCEEDED",
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	})
}

// clientKey はレート制限のキーを返す。
// クライアントIDが無いリクエスト（Cookie無効など）はリモートアドレスで識別する。
func clientKey(r *http.Request) string {
	if clientID, err := ClientIDFromContext(r.Context()); err == nil {
		return clientID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "addr:" + r.RemoteAddr
	}
	return "addr:" + host
}
