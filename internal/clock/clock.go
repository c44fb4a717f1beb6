// Package clock はタイマーの残り時間と完了状態を計算する純粋関数を提供する。
// ポーリング間隔は呼び出し側が決める。
package clock

import (
	"fmt"
	"time"

	"github.com/hitoshi/countdown/internal/model"
)

const (
	msPerSecond = int64(1000)
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
)

// TimeLeft はnowから見たtargetまでの残り時間を返す。負にはならない。
func TimeLeft(target, now time.Time) time.Duration {
	d := target.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// CalculateTimeLeft は現在時刻から見たtargetまでの残り時間を返す。
func CalculateTimeLeft(target time.Time) time.Duration {
	return TimeLeft(target, time.Now())
}

// IsCompletedAt はnow時点でタイマーが完了しているかを返す。
// 保存されたステータスに関わらず、目標日時を過ぎていれば完了とみなす。
func IsCompletedAt(t model.Timer, now time.Time) bool {
	return TimeLeft(t.TargetDate, now) <= 0
}

// IsCompleted は現在時刻でタイマーが完了しているかを返す。
func IsCompleted(t model.Timer) bool {
	return IsCompletedAt(t, time.Now())
}

// EffectiveStatus は表示用のステータスを返す。
// 完了判定は保存されたステータス（pausedを含む）より優先される。
func EffectiveStatus(t model.Timer, now time.Time) model.TimerStatus {
	if IsCompletedAt(t, now) {
		return model.TimerStatusCompleted
	}
	if t.Status == model.TimerStatusPaused {
		return model.TimerStatusPaused
	}
	return model.TimerStatusActive
}

// FormatTime はミリ秒を表示用の文字列に整形する。
//
//	1日未満:   HH:MM:SS:mmm
//	1日以上:   DD:HH:MM:SS（4番目のフィールドは秒になる）
//
// 0以下は 00:00:00:000 になる。日数は切り詰めない。
func FormatTime(milliseconds int64) string {
	if milliseconds <= 0 {
		return "00:00:00:000"
	}

	days := milliseconds / msPerDay
	hours := (milliseconds % msPerDay) / msPerHour
	minutes := (milliseconds % msPerHour) / msPerMinute
	seconds := (milliseconds % msPerMinute) / msPerSecond
	ms := milliseconds % msPerSecond

	if days > 0 {
		return fmt.Sprintf("%02d:%02d:%02d:%02d", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d:%03d", hours, minutes, seconds, ms)
}

// FormatDuration はtime.DurationをFormatTimeで整形する。
func FormatDuration(d time.Duration) string {
	return FormatTime(d.Milliseconds())
}
