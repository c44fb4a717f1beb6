// Package share はタイマーの共有トークンのエンコード・デコードと、
// 共有URLの生成・解析・検証を提供する。
//
// トークンはタイマーの最小限の射影 {id, name, targetDate} だけを運ぶ。
// status / createdAt / completedAt はリンクに載せず、デコード時に
// status=active、createdAt=デコード時刻として再構築する。
package share

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/countdown/internal/model"
	"github.com/hitoshi/countdown/internal/uricomponent"
)

// errInvalidStructure はデコード結果が構造検証を通らなかったことを表す。
var errInvalidStructure = errors.New("invalid timer structure")

// Recorder は共有処理の結果を記録するインターフェース。
// metrics.Collectorが実装する。
type Recorder interface {
	RecordCodecFailure(op string)
	RecordShareLinkCreated()
	RecordShareResolution(result string)
}

type noopRecorder struct{}

func (noopRecorder) RecordCodecFailure(string)    {}
func (noopRecorder) RecordShareLinkCreated()      {}
func (noopRecorder) RecordShareResolution(string) {}

// shareRecord はトークンに格納するJSON表現。
type shareRecord struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TargetDate string `json:"targetDate"`
}

// Codec は共有トークンのエンコードとデコードを行う。
type Codec struct {
	logger   *slog.Logger
	now      func() time.Time
	recorder Recorder
}

// CodecOption はCodecの設定を変更する。
type CodecOption func(*Codec)

// WithLogger はデコード失敗の原因を記録するロガーを設定する。
func WithLogger(logger *slog.Logger) CodecOption {
	return func(c *Codec) { c.logger = logger }
}

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// WithRecorder はメトリクスの記録先を設定する。
func WithRecorder(recorder Recorder) CodecOption {
	return func(c *Codec) { c.recorder = recorder }
}

// NewCodec はCodecを生成する。
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{
		logger:   slog.Default(),
		now:      time.Now,
		recorder: noopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode はタイマーを共有トークンに変換する。
// JSON → パーセントエンコード → base64（URLセーフ・パディングなし）の順に適用する。
// シリアライズできないタイマーにはmodel.ErrEncodeFailureをラップしたエラーを返す。
func (c *Codec) Encode(t model.Timer) (string, error) {
	token, err := encode(t)
	if err != nil {
		c.logger.Error("failed to encode share token",
			slog.String("timer_id", t.ID),
			slog.String("error", err.Error()),
		)
		c.recorder.RecordCodecFailure("encode")
		return "", fmt.Errorf("%w: %v", model.ErrEncodeFailure, err)
	}
	return token, nil
}

func encode(t model.Timer) (string, error) {
	if t.ID == "" {
		return "", fmt.Errorf("timer id is empty")
	}
	if t.TargetDate.IsZero() {
		return "", fmt.Errorf("timer %s has no target date", t.ID)
	}
	if y := t.TargetDate.UTC().Year(); y < 0 || y > 9999 {
		return "", fmt.Errorf("timer %s target year %d out of range", t.ID, y)
	}

	data, err := json.Marshal(shareRecord{
		ID:         t.ID,
		Name:       truncateRunes(t.Name, model.MaxNameLength),
		TargetDate: model.FormatTimestamp(t.TargetDate),
	})
	if err != nil {
		return "", fmt.Errorf("marshal share record: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString([]byte(uricomponent.Encode(string(data)))), nil
}

// Decode は共有トークンをタイマーに復元する。
// 失敗理由に関わらずmodel.ErrDecodeFailureだけを返し、原因はログに記録する。
func (c *Codec) Decode(token string) (model.Timer, error) {
	t, err := c.decode(token)
	if err != nil {
		c.logger.Warn("failed to decode share token",
			slog.Int("token_length", len(token)),
			slog.String("error", err.Error()),
		)
		c.recorder.RecordCodecFailure("decode")
		return model.Timer{}, model.ErrDecodeFailure
	}
	return t, nil
}

func (c *Codec) decode(token string) (model.Timer, error) {
	raw, err := decodeBase64(token)
	if err != nil {
		return model.Timer{}, fmt.Errorf("base64: %w", err)
	}

	text, err := uricomponent.Decode(string(raw))
	if err != nil {
		return model.Timer{}, err
	}

	var data any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return model.Timer{}, fmt.Errorf("json: %w", err)
	}

	if !IsValidStructure(data) {
		return model.Timer{}, errInvalidStructure
	}

	m := data.(map[string]any)
	target, err := model.ParseTimestamp(m["targetDate"].(string))
	if err != nil {
		return model.Timer{}, err
	}

	return model.Timer{
		ID:         m["id"].(string),
		Name:       m["name"].(string),
		TargetDate: target,
		Status:     model.TimerStatusActive,
		CreatedAt:  c.now(),
	}, nil
}

// IsValidStructure はデコードしたJSON値がタイマーの射影として妥当かを判定する。
// オブジェクトであること、id・nameが文字列であること、nameが50文字以下であること、
// targetDateが日時として解釈できる文字列であることを要求する。
func IsValidStructure(data any) bool {
	m, ok := data.(map[string]any)
	if !ok || m == nil {
		return false
	}

	if _, ok := m["id"].(string); !ok {
		return false
	}

	name, ok := m["name"].(string)
	if !ok || utf8.RuneCountInString(name) > model.MaxNameLength {
		return false
	}

	targetDate, ok := m["targetDate"].(string)
	if !ok {
		return false
	}
	if _, err := model.ParseTimestamp(targetDate); err != nil {
		return false
	}

	return true
}

// decodeBase64 はURLセーフ・標準どちらのアルファベットも、パディングの有無も受け付ける。
// クエリ解析で+が空白に化けた場合も復元する。
func decodeBase64(token string) ([]byte, error) {
	s := strings.ReplaceAll(token, " ", "+")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	s = strings.TrimRight(s, "=")
	return base64.RawURLEncoding.DecodeString(s)
}

// truncateRunes は文字列を先頭からmaxルーンまでに切り詰める。
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
