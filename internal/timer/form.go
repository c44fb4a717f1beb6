// Package timer はタイマー一覧に対する操作（作成・一時停止・再開・削除・取り込み・検索・集計）を提供する。
// 一覧は呼び出し側から明示的に渡され、各操作は新しいスライスを返す。
package timer

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/countdown/internal/model"
)

// FormData はタイマー作成フォームの入力値。
// TargetDate のゼロ値は未入力を表す。
type FormData struct {
	Name       string
	TargetDate time.Time
}

// フォーム検証の失敗理由
const (
	ReasonNameRequired       = "タイマー名は必須です"
	ReasonNameTooLong        = "タイマー名は50文字以内で入力してください"
	ReasonTargetDateRequired = "目標日時は必須です"
	ReasonTargetDateNotAhead = "目標日時は未来の日時を指定してください"
)

// ValidationError はフォーム検証エラーを表す。
type ValidationError struct {
	Reasons []string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid timer form: %s", strings.Join(e.Reasons, "; "))
}

// ValidateForm はフォーム入力を検証し、失敗理由の一覧を返す。
// 問題がなければ空のスライスを返す。
func ValidateForm(form FormData, now time.Time) []string {
	reasons := validateName(form.Name)

	switch {
	case form.TargetDate.IsZero():
		reasons = append(reasons, ReasonTargetDateRequired)
	case !form.TargetDate.After(now):
		reasons = append(reasons, ReasonTargetDateNotAhead)
	}

	return reasons
}

// validateName はタイマー名が空白除去後に1〜50文字であるかを検証する。
func validateName(name string) []string {
	reasons := []string{}

	name = strings.TrimSpace(name)
	if name == "" {
		reasons = append(reasons, ReasonNameRequired)
	}
	if utf8.RuneCountInString(name) > model.MaxNameLength {
		reasons = append(reasons, ReasonNameTooLong)
	}
	return reasons
}
