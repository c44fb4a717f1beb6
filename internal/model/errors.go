// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, timer, share, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeValidation      = "VALIDATION_FAILED"
	ErrCodeTimerNotFound   = "TIMER_NOT_FOUND"
	ErrCodeDuplicateTimer  = "DUPLICATE_TIMER"
	ErrCodeTimerCompleted  = "TIMER_COMPLETED"
	ErrCodeEncodeFailed    = "ENCODE_FAILED"
	ErrCodeDecodeFailed    = "DECODE_FAILED"
	ErrCodeInvalidShareURL = "INVALID_SHARE_URL"
	ErrCodeInvalidData     = "INVALID_SHARE_DATA"
)

// ドメインのセンチネルエラー。呼び出し側はerrors.Isで判定する。
var (
	// ErrEncodeFailure はタイマーを共有トークンにシリアライズできなかったことを表す。
	ErrEncodeFailure = errors.New("could not generate link")
	// ErrDecodeFailure は共有トークンが壊れているか構造検証に失敗したことを表す。
	// 元の原因はログにのみ記録し、呼び出し側には公開しない。
	ErrDecodeFailure = errors.New("corrupted timer data")
	// ErrTimerNotFound は指定IDのタイマーがリストに存在しないことを表す。
	ErrTimerNotFound = errors.New("timer not found")
	// ErrDuplicateTimer は同じIDのタイマーが既にリストに存在することを表す。
	ErrDuplicateTimer = errors.New("timer already exists")
	// ErrTimerCompleted は完了済みタイマーに対する状態変更を表す。
	ErrTimerCompleted = errors.New("timer already completed")
)

// ResolutionErrorType は共有URL解決失敗の機械可読な分類。
type ResolutionErrorType string

const (
	// ResolutionInvalidURL はURL自体が不正であることを表す。
	ResolutionInvalidURL ResolutionErrorType = "invalid_url"
	// ResolutionInvalidData はトークンの内容が不正であることを表す。
	ResolutionInvalidData ResolutionErrorType = "invalid_data"
	// ResolutionNetwork は通信層の失敗を表す。リゾルバ自身は生成しない。
	ResolutionNetwork ResolutionErrorType = "network"
	// ResolutionUnknown は分類不能な失敗を表す。
	ResolutionUnknown ResolutionErrorType = "unknown"
)

// ResolutionError は共有URLの解決失敗を表す。常に回復可能。
type ResolutionError struct {
	Type    ResolutionErrorType
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// PersistenceFailure はCookieストアの保存・読み込み・削除の失敗を表す。
// ストアの境界で握りつぶされ、ログとメトリクスにのみ現れる。
type PersistenceFailure struct {
	Op  string // save, load, clear
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *PersistenceFailure) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *PersistenceFailure) Unwrap() error {
	return e.Err
}

// NewValidationError はフォーム検証エラーを生成する。
func NewValidationError(reasons []string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容が不正です: %v", reasons),
		Category: "validation",
		Action:   "タイマー名（1〜50文字）と未来の目標日時を指定してください。",
	}
}

// NewTimerNotFoundError はタイマー未検出エラーを生成する。
func NewTimerNotFoundError(timerID string) *APIError {
	return &APIError{
		Code:     ErrCodeTimerNotFound,
		Message:  fmt.Sprintf("指定されたタイマーが見つかりません: %s", timerID),
		Category: "timer",
		Action:   "タイマーIDを確認してください。",
	}
}

// NewDuplicateTimerError は既に登録済みのタイマーを再度追加しようとした場合のエラーを生成する。
func NewDuplicateTimerError(timerID string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateTimer,
		Message:  fmt.Sprintf("このタイマーは既に追加されています: %s", timerID),
		Category: "timer",
		Action:   "タイマー一覧から該当タイマーを確認してください。",
	}
}

// NewTimerCompletedError は完了済みタイマーを操作しようとした場合のエラーを生成する。
func NewTimerCompletedError(timerID string) *APIError {
	return &APIError{
		Code:     ErrCodeTimerCompleted,
		Message:  fmt.Sprintf("タイマーは既に完了しています: %s", timerID),
		Category: "timer",
		Action:   "完了したタイマーは一時停止・再開できません。",
	}
}

// NewEncodeFailedError は共有リンク生成失敗エラーを生成する。
func NewEncodeFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeEncodeFailed,
		Message:  "共有リンクを生成できませんでした。",
		Category: "share",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewDecodeFailedError は共有データ破損エラーを生成する。
func NewDecodeFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeDecodeFailed,
		Message:  "タイマーデータが破損しています。",
		Category: "share",
		Action:   "共有元に新しいリンクを発行してもらってください。",
	}
}

// NewResolutionAPIError は共有URL解決失敗をAPIErrorに変換する。
func NewResolutionAPIError(resErr *ResolutionError) *APIError {
	code := ErrCodeInvalidData
	if resErr.Type == ResolutionInvalidURL {
		code = ErrCodeInvalidShareURL
	}
	return &APIError{
		Code:     code,
		Message:  resErr.Message,
		Category: "share",
		Action:   "リンクを確認するか、トップページに戻ってください。",
	}
}
