// Package store はクライアントのCookieを使ったタイマー一覧の永続化を提供する。
//
// サーバー側には何も保存しない。リクエストのCookieから読み込み、
// レスポンスのSet-Cookieで一覧全体を置き換える（後勝ち）。
// 失敗はすべてストアの境界でログに記録して握りつぶし、呼び出し側には
// 安全なフォールバック値だけを返す。
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/countdown/internal/model"
	"github.com/hitoshi/countdown/internal/uricomponent"
)

const (
	// DefaultMaxAge はCookieの既定の有効期間（約1年、秒）。
	DefaultMaxAge = 60 * 60 * 24 * 365

	// maxCookieBytes はブラウザが1つのCookieに許容するおおよその上限。
	maxCookieBytes = 4096
)

// errCookieTooLarge はエンコード後のCookieが上限を超えたことを表す。
var errCookieTooLarge = errors.New("cookie value exceeds browser size limit")

// CookieConfig はSet-Cookieの属性を保持する。
type CookieConfig struct {
	MaxAge int
	Secure bool
	Domain string
}

// DefaultCookieConfig はデフォルトのCookie設定を返す。
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{MaxAge: DefaultMaxAge}
}

// FailureRecorder は永続化失敗を記録するインターフェース。
// metrics.Collectorが実装する。
type FailureRecorder interface {
	RecordStoreFailure(op string)
}

type noopRecorder struct{}

func (noopRecorder) RecordStoreFailure(string) {}

// jsonCookie は値をJSON→パーセントエンコードしてCookieに格納する共通処理。
type jsonCookie struct {
	name     string
	config   CookieConfig
	logger   *slog.Logger
	recorder FailureRecorder
}

func newJSONCookie(name string, config CookieConfig, logger *slog.Logger, recorder FailureRecorder) jsonCookie {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if config.MaxAge == 0 {
		config.MaxAge = DefaultMaxAge
	}
	return jsonCookie{name: name, config: config, logger: logger, recorder: recorder}
}

// encode は値をCookie値にエンコードする。
func (c jsonCookie) encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", c.name, err)
	}
	value := uricomponent.Encode(string(data))
	if len(c.name)+len(value)+1 > maxCookieBytes {
		return "", fmt.Errorf("%s (%d bytes): %w", c.name, len(value), errCookieTooLarge)
	}
	return value, nil
}

// decode はCookie値をvにデコードする。
func (c jsonCookie) decode(value string, v any) error {
	data, err := uricomponent.Decode(value)
	if err != nil {
		return fmt.Errorf("decode %s: %w", c.name, err)
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", c.name, err)
	}
	return nil
}

// write はvをエンコードしてSet-Cookieする。失敗時はエラーを返すだけで書き込まない。
func (c jsonCookie) write(w http.ResponseWriter, v any) error {
	value, err := c.encode(v)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		Domain:   c.config.Domain,
		MaxAge:   c.config.MaxAge,
		HttpOnly: true,
		Secure:   c.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// read はリクエストのCookieをvにデコードする。
// Cookieが存在しない場合はhttp.ErrNoCookieを返す。
func (c jsonCookie) read(r *http.Request, v any) error {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return err
	}
	if cookie.Value == "" {
		return http.ErrNoCookie
	}
	return c.decode(cookie.Value, v)
}

// expire はCookieを即時失効させる。
func (c jsonCookie) expire(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		Domain:   c.config.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// fail は永続化失敗をログとメトリクスに記録する。
func (c jsonCookie) fail(op string, err error) {
	pf := &model.PersistenceFailure{Op: op, Err: err}
	c.logger.Error("cookie persistence failed",
		slog.String("cookie", c.name),
		slog.String("op", op),
		slog.String("error", pf.Error()),
	)
	c.recorder.RecordStoreFailure(op)
}
