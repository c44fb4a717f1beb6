package model

import (
	"fmt"
	"time"
)

// TimerStatus はタイマーの状態を表す。
type TimerStatus string

const (
	// TimerStatusActive はカウントダウン中の状態。
	TimerStatusActive TimerStatus = "active"
	// TimerStatusPaused はユーザー操作で一時停止された状態。
	TimerStatusPaused TimerStatus = "paused"
	// TimerStatusCompleted は目標日時を過ぎた状態。
	// 保存値ではなく now >= TargetDate から導出される。
	TimerStatusCompleted TimerStatus = "completed"
)

// Valid は既知のステータスかどうかを返す。
func (s TimerStatus) Valid() bool {
	switch s {
	case TimerStatusActive, TimerStatusPaused, TimerStatusCompleted:
		return true
	default:
		return false
	}
}

// MaxNameLength はタイマー名の最大文字数（ルーン数）。
const MaxNameLength = 50

// TimestampLayout はCookieと共有トークンで使う日時フォーマット。
// JavaScriptのDate.prototype.toISOString()と同じ形になる。
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timer はカウントダウンタイマーを表す。
type Timer struct {
	ID          string
	Name        string
	TargetDate  time.Time
	Status      TimerStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// FormatTimestamp は日時をUTCのISO-8601文字列に変換する。
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// timestampLayouts はParseTimestampが受け付けるフォーマット。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp はISO-8601形式の日時文字列をパースする。
// タイムゾーン指定のない形式はUTCとして扱う。
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp: %q", s)
}
