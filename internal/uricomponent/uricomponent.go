// Package uricomponent はJavaScriptのencodeURIComponent/decodeURIComponentと
// 互換のパーセントエンコーディングを提供する。
// Cookie値と共有トークンの両方で同じ規則を使う。
package uricomponent

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

const upperhex = "0123456789ABCDEF"

// shouldEscape はencodeURIComponentがエスケープするバイトかどうかを返す。
// 非予約文字 A-Z a-z 0-9 - _ . ! ~ * ' ( ) のみそのまま残す。
func shouldEscape(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return false
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return false
	}
	return true
}

// Encode は文字列をUTF-8バイト単位でパーセントエンコードする。
func Encode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldEscape(c) {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Decode はEncodeの逆変換を行う。
// "+" は空白に変換しない。不正な%シーケンスや不正なUTF-8はエラーになる。
func Decode(s string) (string, error) {
	out, err := url.PathUnescape(s)
	if err != nil {
		return "", fmt.Errorf("percent-decode: %w", err)
	}
	if !utf8.ValidString(out) {
		return "", fmt.Errorf("percent-decode: invalid UTF-8 sequence")
	}
	return out, nil
}
