// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizer はタイマー名からHTMLマークアップを取り除く。
// タイマー名は共有リンク経由で他人のブラウザに表示されるため、
// 保存前および共有タイマー取り込み時にプレーンテキストへ正規化する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService はタイマー名のサニタイズ機能のインターフェースを定義する。
type NameSanitizerService interface {
	// SanitizeName はタグをすべて除去し、前後の空白を取り除いたプレーンテキストを返す。
	// script, styleなどの要素は中身ごと除去される。
	// 出力を再度渡しても変化しない（冪等）。
	SanitizeName(name string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// maxSanitizePasses はサニタイズを繰り返す上限回数。
const maxSanitizePasses = 8

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeName はタイマー名をプレーンテキストに正規化する。
// bluemondayはエンティティをエスケープして返すため、JSONに保存する前に元に戻す。
// 元に戻した結果がタグになる場合（"&lt;b&gt;" など）があるので、変化しなくなるまで繰り返す。
func (s *nameSanitizer) SanitizeName(name string) string {
	current := strings.TrimSpace(name)
	for range maxSanitizePasses {
		next := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(current)))
		if next == current {
			break
		}
		current = next
	}
	return current
}
