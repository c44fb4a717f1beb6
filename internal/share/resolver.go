package share

import (
	"net/url"
	"slices"
	"strings"

	"github.com/hitoshi/countdown/internal/model"
)

const (
	// MinTokenLength は妥当なトークンとみなす最小文字数。
	MinTokenLength = 10

	// SharePathSegment は共有URLのパスに含まれるべきセグメント。
	SharePathSegment = "/stopwatch/"

	// DataQueryParam はトークンを運ぶクエリパラメータ名。
	DataQueryParam = "data"
)

// 解決失敗時のメッセージ。
const (
	MsgInvalidLinkFormat = "invalid share link format"
	MsgDamagedLink       = "share link is invalid or damaged"
	MsgInvalidData       = "timer data is invalid or damaged"
	MsgCorruptedData     = "timer data is corrupted"
	MsgIDMismatch        = "timer data is invalid: ID mismatch"
	MsgDeleted           = "this timer was deleted and is no longer available"
	MsgExpired           = "this timer has already completed and cannot be shared"
)

// Link は共有URLから取り出したタイマーIDとトークン。
type Link struct {
	TimerID string
	Token   string
}

// ValidationOutcome は共有URL検証の結果。
// 成功時はIsValidとTimerのみが設定され、失敗時はMessageとErrorTypeが設定される。
type ValidationOutcome struct {
	IsValid   bool
	Timer     *model.Timer
	Message   string
	ErrorType model.ResolutionErrorType
}

// Err は失敗時にResolutionErrorを返す。成功時はnil。
func (o ValidationOutcome) Err() *model.ResolutionError {
	if o.IsValid {
		return nil
	}
	return &model.ResolutionError{Type: o.ErrorType, Message: o.Message}
}

func failure(errType model.ResolutionErrorType, msg string) ValidationOutcome {
	return ValidationOutcome{Message: msg, ErrorType: errType}
}

// validateOptions はValidateの追加条件。
type validateOptions struct {
	deleted []string
}

// ValidateOption はValidateの追加条件を指定する。
type ValidateOption func(*validateOptions)

// WithDeleted はユーザーが削除済みの共有タイマーIDを指定する。
// 該当するIDのトークンはinvalid_dataとして拒否される。
func WithDeleted(ids []string) ValidateOption {
	return func(o *validateOptions) { o.deleted = ids }
}

// Resolver は共有URLの生成と解決を行う。
// 解決はURL文字列だけを入力とする同期・一回限りの処理で、リトライしない。
type Resolver struct {
	codec *Codec
}

// NewResolver はResolverを生成する。
func NewResolver(codec *Codec) *Resolver {
	return &Resolver{codec: codec}
}

// Codec は内部で使うCodecを返す。
func (r *Resolver) Codec() *Codec {
	return r.codec
}

// BuildShareLink は "{baseURL}/stopwatch/{id}?data={token}" 形式の共有URLを生成する。
func (r *Resolver) BuildShareLink(t model.Timer, baseURL string) (string, error) {
	token, err := r.codec.Encode(t)
	if err != nil {
		return "", err
	}
	r.codec.recorder.RecordShareLinkCreated()
	return strings.TrimRight(baseURL, "/") + SharePathSegment + url.PathEscape(t.ID) + "?" + DataQueryParam + "=" + token, nil
}

// Parse は共有URLからタイマーID（パスの最後のセグメント）とトークンを取り出す。
// IDはエスケープされたパスで区切ってから復元するため、"/" を含むIDも扱える。
// URLとして解釈できない、またはどちらかが欠けている場合はnilを返す。
func Parse(rawURL string) *Link {
	u, ok := parseAbsolute(rawURL)
	if !ok {
		return nil
	}

	segments := strings.Split(u.EscapedPath(), "/")
	timerID, err := url.PathUnescape(segments[len(segments)-1])
	if err != nil {
		return nil
	}
	token := u.Query().Get(DataQueryParam)

	if timerID == "" || token == "" {
		return nil
	}
	return &Link{TimerID: timerID, Token: token}
}

// Validate は共有URLを段階的に検証する。
//
//	ParseURL → CheckTokenLength → DecodeToken → CheckIdMatch → CheckNotDeleted → CheckNotExpired
//
// 最初に失敗した段階の分類（invalid_url / invalid_data）とメッセージを返す。
func (r *Resolver) Validate(rawURL string, opts ...ValidateOption) ValidationOutcome {
	var o validateOptions
	for _, opt := range opts {
		opt(&o)
	}

	outcome := r.validate(rawURL, o)
	if outcome.IsValid {
		r.codec.recorder.RecordShareResolution("success")
	} else {
		r.codec.recorder.RecordShareResolution(string(outcome.ErrorType))
	}
	return outcome
}

func (r *Resolver) validate(rawURL string, o validateOptions) ValidationOutcome {
	u, ok := parseAbsolute(rawURL)
	if !ok || !strings.Contains(u.Path, SharePathSegment) {
		return failure(model.ResolutionInvalidURL, MsgInvalidLinkFormat)
	}

	link := Parse(rawURL)
	if link == nil {
		return failure(model.ResolutionInvalidURL, MsgDamagedLink)
	}

	if len(link.Token) < MinTokenLength {
		return failure(model.ResolutionInvalidData, MsgInvalidData)
	}

	timer, err := r.codec.Decode(link.Token)
	if err != nil {
		return failure(model.ResolutionInvalidData, MsgCorruptedData)
	}

	if timer.ID != link.TimerID {
		return failure(model.ResolutionInvalidData, MsgIDMismatch)
	}

	if slices.Contains(o.deleted, timer.ID) {
		return failure(model.ResolutionInvalidData, MsgDeleted)
	}

	if !timer.TargetDate.After(r.codec.now()) {
		return failure(model.ResolutionInvalidData, MsgExpired)
	}

	return ValidationOutcome{IsValid: true, Timer: &timer}
}

// parseAbsolute はスキームとホストを持つ絶対URLだけを受け付ける。
func parseAbsolute(rawURL string) (*url.URL, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	return u, true
}

