package timer

import (
	"time"

	"github.com/hitoshi/countdown/internal/clock"
	"github.com/hitoshi/countdown/internal/model"
)

// Stats はタイマー一覧の状態別件数。
type Stats struct {
	Total     int
	Active    int
	Paused    int
	Completed int
}

// CalculateStats は導出ステータスに基づいて件数を集計する。
// 目標日時を過ぎたタイマーは保存上のステータスに関係なくCompletedに数える。
func CalculateStats(list []model.Timer, now time.Time) Stats {
	stats := Stats{Total: len(list)}
	for _, t := range list {
		switch clock.EffectiveStatus(t, now) {
		case model.TimerStatusCompleted:
			stats.Completed++
		case model.TimerStatusPaused:
			stats.Paused++
		default:
			stats.Active++
		}
	}
	return stats
}
